package cli

import (
	"context"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(io, a)
		},
	}
}

func execPrintConfig(io *IO, a *app) error {
	cfg := a.cfg

	sizes := make([]string, len(cfg.ThumbSizes))
	for i, s := range cfg.ThumbSizes {
		sizes[i] = strconv.Itoa(s)
	}

	io.Println("work_dir=" + cfg.WorkDir)
	io.Println("cache_root=" + cfg.CacheRoot)
	io.Println("private=" + strconv.FormatBool(cfg.Private))
	io.Println("thumb_sizes=" + strings.Join(sizes, ","))
	io.Println("zoom_level=" + strconv.Itoa(cfg.ZoomLevel))
	io.Println("grid_gap=" + strconv.Itoa(cfg.GridGap))
	io.Println("prefetch_margin=" + strconv.Itoa(cfg.PrefetchMargin))
	io.Println("workers=" + strconv.Itoa(cfg.Workers))
	io.Println("queue_capacity=" + strconv.Itoa(cfg.QueueCapacity))
	io.Println("log_level=" + cfg.LogLevel)
	io.Println("log_format=" + cfg.LogFormat)

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
