package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/thumbs/internal/grid"
)

// WarmCmd returns the warm command.
func WarmCmd(a *app) *Command {
	fs := flag.NewFlagSet("warm", flag.ContinueOnError)
	recursive := fs.BoolP("recursive", "r", false, "Descend into directories")

	return &Command{
		Flags: fs,
		Usage: "warm [-r] <path>...",
		Short: "Fill the thumbnail cache",
		Long: "Decode every image that has no fresh cache entry and write its thumbnail.\n" +
			"Images that cannot be decoded are reported and skipped.",
		Examples:   []string{"warm a.jpg b.png", "warm -r ~/Pictures", "-j 8 warm -r ."},
		NeedsPaths: true,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execWarm(ctx, o, a, args, *recursive)
		},
	}
}

func execWarm(ctx context.Context, o *IO, a *app, args []string, recursive bool) error {
	if a.cfg.Private {
		return ErrPrivateCache
	}

	paths := collectFiles(o, a.fs, a.cfg.WorkDir, args, recursive)
	if len(paths) == 0 {
		return ErrNoFiles
	}

	e, err := a.newEngine(grid.NewFileList(paths...))
	if err != nil {
		return err
	}

	defer e.Close()

	pf, stop, err := a.startPrefetcher(ctx, e)
	if err != nil {
		return err
	}

	runErr := pf.Run(ctx)

	err = errors.Join(runErr, stop())
	if err != nil {
		return fmt.Errorf("warm: %w", err)
	}

	failed := len(paths) - e.Count()

	o.Printf("files=%d\n", len(paths))
	o.Printf("failed=%d\n", failed)

	if failed > 0 {
		kept := make(map[string]bool, e.Count())
		for i := range e.Count() {
			kept[e.Files().At(i).Path] = true
		}

		for _, p := range paths {
			if !kept[p] {
				o.Warn(p, "could not be decoded")
			}
		}

		o.Warn("warm", fmt.Sprintf("%d of %d files could not be decoded", failed, len(paths)))
	}

	return nil
}
