package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/thumbs/internal/thumbcache"
)

// GCCmd returns the gc command.
func GCCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("gc", flag.ContinueOnError),
		Usage: "gc",
		Short: "Remove cache entries of deleted images",
		Long: "Walk the cache and delete every thumbnail whose source file no longer exists.\n" +
			"Only one collection runs at a time.",
		Examples: []string{"gc", "--cache-dir /tmp/thumbs gc"},
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("gc takes no arguments, got %q", args[0])
			}

			return execGC(ctx, o, a)
		},
	}
}

func execGC(ctx context.Context, o *IO, a *app) error {
	stats, err := a.cache.GC(ctx)
	if err != nil {
		if errors.Is(err, thumbcache.ErrGCBusy) {
			return fmt.Errorf("%w (another thumbs gc is running)", err)
		}

		return err
	}

	o.Printf("removed=%d\n", stats.Removed)
	o.Printf("kept=%d\n", stats.Kept)

	if stats.Failed > 0 {
		o.Warn(a.cfg.CacheRoot, fmt.Sprintf("%d cache entries could not be checked, rerun with --log-level=debug", stats.Failed))
	}

	return nil
}
