package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/thumbs/internal/config"
	"github.com/calvinalkan/thumbs/internal/metrics"
)

// Errors returned by commands.
var (
	ErrNoPaths        = errors.New("at least one path is required")
	ErrNoFiles        = errors.New("no files to process")
	ErrPrivateCache   = errors.New("cache is private, nothing would be written")
	ErrUnknownCommand = errors.New("unknown command")
)

// globalFlags are the flags accepted before the command name.
type globalFlags struct {
	set *flag.FlagSet

	workDir    string
	configPath string
	cacheDir   string
	private    bool
	workers    int
	logLevel   string
	logFormat  string
	metrics    bool
	help       bool
}

func newGlobalFlags() *globalFlags {
	g := &globalFlags{set: flag.NewFlagSet("thumbs", flag.ContinueOnError)}

	fs := g.set
	fs.SetInterspersed(false)
	fs.SetOutput(&strings.Builder{}) // discard pflag output

	fs.StringVarP(&g.workDir, "cwd", "C", "", "Run as if started in `dir`")
	fs.StringVarP(&g.configPath, "config", "c", "", "Use config `file` instead of .thumbs.json")
	fs.StringVar(&g.cacheDir, "cache-dir", "", "Thumbnail cache `dir`")
	fs.BoolVar(&g.private, "private", false, "Never write to the cache")
	fs.IntVarP(&g.workers, "workers", "j", 0, "Decode worker `count`")
	fs.StringVar(&g.logLevel, "log-level", "", "Log `level`: debug, info, warn, error")
	fs.StringVar(&g.logFormat, "log-format", "", "Log `format`: text, json")
	fs.BoolVar(&g.metrics, "metrics", false, "Print metrics to stderr on exit")
	fs.BoolVarP(&g.help, "help", "h", false, "Show help")

	return g
}

// Run is the main entry point. Returns exit code.
//
// The first signal received on sigCh cancels the running command. sigCh may
// be nil.
func Run(in io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	g := newGlobalFlags()

	if len(args) > 0 {
		args = args[1:]
	}

	err := g.set.Parse(args)
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, g, nil)

		return 1
	}

	rest := g.set.Args()

	if g.help || len(rest) == 0 {
		printUsage(out, g, commandList(nil))

		return 0
	}

	workDir, err := resolveWorkDir(g.workDir)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDir:    workDir,
		ConfigPath: g.configPath,
		Overrides: config.Overrides{
			CacheDir:  g.cacheDir,
			Private:   g.private,
			Workers:   g.workers,
			LogLevel:  g.logLevel,
			LogFormat: g.logFormat,
		},
		Env: env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	a, err := newApp(cfg, env, errOut)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	cmds := commandList(a)

	name := rest[0]

	cmd, ok := findCommand(cmds, name)
	if !ok {
		fprintln(errOut, "error:", fmt.Errorf("%w: %s", ErrUnknownCommand, name))
		printUsage(errOut, g, cmds)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	code := cmd.Run(ctx, NewIO(in, out, errOut), rest[1:])

	if g.metrics {
		err := metrics.WriteText(errOut, a.reg)
		if err != nil {
			fprintln(errOut, "error:", err)

			return 1
		}
	}

	return code
}

// commandList returns every command. a may be nil when only help is needed.
func commandList(a *app) []*Command {
	return []*Command{
		WarmCmd(a),
		StatusCmd(a),
		GCCmd(a),
		BrowseCmd(a),
		PrintConfigCmd(a),
	}
}

func findCommand(cmds []*Command, name string) (*Command, bool) {
	for _, c := range cmds {
		if c.Name() == name {
			return c, true
		}
	}

	return nil, false
}

func resolveWorkDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("cannot get working directory: %w", err)
		}

		return wd, nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	return abs, nil
}

func printUsage(w io.Writer, g *globalFlags, cmds []*Command) {
	fprintln(w, "Usage: thumbs [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Thumbnail cache maintenance and grid browsing.")

	if len(cmds) > 0 {
		fprintln(w)
		fprintln(w, "Commands:")

		for _, c := range cmds {
			fprintln(w, c.HelpLine())
		}
	}

	fprintln(w)
	fprintln(w, "Flags:")

	var buf strings.Builder
	g.set.SetOutput(&buf)
	g.set.PrintDefaults()
	_, _ = io.WriteString(w, buf.String())

	fprintln(w)
	fprintln(w, "Run 'thumbs <command> --help' for command flags.")
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
