package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// StatusCmd returns the status command.
func StatusCmd(a *app) *Command {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	recursive := fs.BoolP("recursive", "r", false, "Descend into directories")

	return &Command{
		Flags: fs,
		Usage: "status [-r] <path>...",
		Short: "Show cache state per image",
		Long: "Print one line per image: fresh, outdated, missing or uncacheable,\n" +
			"followed by the absolute path. Nothing is decoded.",
		Examples:   []string{"status photo.jpg", "status -r ~/Pictures"},
		NeedsPaths: true,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execStatus(o, a, args, *recursive)
		},
	}
}

func execStatus(o *IO, a *app, args []string, recursive bool) error {
	for _, path := range collectFiles(o, a.fs, a.cfg.WorkDir, args, recursive) {
		st, err := a.cache.Status(path)
		if err != nil {
			o.Warn(path, err.Error())

			continue
		}

		o.Printf("%-11s %s\n", st, path)
	}

	return nil
}
