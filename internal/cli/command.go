package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one thumbs subcommand.
type Command struct {
	// Flags are the command's own flags, parsed after the command name.
	Flags *flag.FlagSet

	// Usage follows "thumbs" in help output and starts with the command
	// name, e.g. "warm [-r] <path>...".
	Usage string

	// Short is the line shown in the command list.
	Short string

	// Long is shown by "thumbs <cmd> --help". Short is used when empty.
	Long string

	// Examples are full invocations listed in command help.
	Examples []string

	// NeedsPaths rejects a call without arguments with [ErrNoPaths]
	// before Exec runs.
	NeedsPaths bool

	// Exec runs the command with the arguments left after flag parsing.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the first word of Usage.
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// HelpLine returns the entry for the command list.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-22s %s", c.Usage, c.Short)
}

// PrintHelp writes usage, description, flags and examples to stdout.
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: thumbs", c.Usage)
	o.Println()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	o.Println(desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.Printf("%s", buf.String())
	}

	if len(c.Examples) > 0 {
		o.Println()
		o.Println("Examples:")

		for _, ex := range c.Examples {
			o.Println("  thumbs", ex)
		}
	}
}

// Run parses flags, checks arguments and calls Exec. It returns the exit
// code: 1 on a usage error, a failed Exec or any warning.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{})

	err := c.Flags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)
			return 0
		}

		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o)

		return 1
	}

	if c.NeedsPaths && c.Flags.NArg() == 0 {
		o.ErrPrintln("error:", ErrNoPaths)
		o.ErrPrintln("usage: thumbs", c.Usage)

		return 1
	}

	err = c.Exec(ctx, o, c.Flags.Args())
	if err != nil {
		// Warnings first: they explain partial work done before the failure.
		o.Finish()
		o.ErrPrintln("error:", err)

		return 1
	}

	return o.Finish()
}
