package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/bindweld/bindweld/pkg/engine"
	"github.com/bindweld/bindweld/pkg/mcp"
	"github.com/bindweld/bindweld/pkg/util"
)

var version = "0.1.0-dev"

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "bindweld",
		Usage: "Generate safe Go bindings for C++ APIs from a directive file",
		Commands: []*cli.Command{
			generateCommand(),
			watchCommand(),
			inspectCommand(),
			serveCommand(),
			versionCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		kind := "error"
		if engine.IsConfigError(err) {
			kind = "configuration error"
		}
		fmt.Fprintf(os.Stderr, "bindweld: %s: %v\n", kind, err)
		os.Exit(1)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{Name: "include-dir", Aliases: []string{"I"}, Usage: "directory searched for included headers (repeatable)"},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory for the artifact pair"},
		&cli.StringFlag{Name: "cache-dir", Usage: "extraction cache directory (empty disables caching)"},
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn, error"},
		&cli.StringFlag{Name: "log-format", Value: "text", Usage: "text or json"},
	}
}

// setup merges file config under flags and builds the logger, engine
// and run options shared by every command.
func setup(c *cli.Command) (*engine.Engine, engine.Options, *slog.Logger, error) {
	fc, err := loadFileConfig()
	if err != nil {
		return nil, engine.Options{}, nil, err
	}

	logCfg := util.DefaultLoggerConfig()
	if fc.Log.Level != "" {
		logCfg.Level = util.LogLevel(fc.Log.Level)
	}
	if fc.Log.Format != "" {
		logCfg.Format = util.LogFormat(fc.Log.Format)
	}
	if c.IsSet("log-level") || fc.Log.Level == "" {
		logCfg.Level = util.LogLevel(c.String("log-level"))
	}
	if c.IsSet("log-format") || fc.Log.Format == "" {
		logCfg.Format = util.LogFormat(c.String("log-format"))
	}
	logger := util.NewLogger(logCfg)

	opts := engine.Options{
		IncludeDirs: fc.IncludeDirs,
		OutDir:      fc.OutDir,
		CacheDir:    fc.CacheDir,
	}
	if dirs := c.StringSlice("include-dir"); len(dirs) > 0 {
		opts.IncludeDirs = append(opts.IncludeDirs, dirs...)
	}
	if c.IsSet("out") {
		opts.OutDir = c.String("out")
	}
	if c.IsSet("cache-dir") {
		opts.CacheDir = c.String("cache-dir")
	}

	eng, err := engine.New(logger, opts.CacheDir)
	if err != nil {
		return nil, engine.Options{}, nil, err
	}
	return eng, opts, logger, nil
}

func directiveArg(c *cli.Command) (string, error) {
	if c.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one directive file argument")
	}
	return c.Args().First(), nil
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Run the pipeline once and write the artifact pair",
		ArgsUsage: "<directives.weld>",
		Flags: append(commonFlags(),
			&cli.BoolFlag{Name: "dry-run", Usage: "run the full pipeline but write nothing"},
			&cli.BoolFlag{Name: "json", Usage: "print the generation report as JSON on stdout"},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			path, err := directiveArg(c)
			if err != nil {
				return err
			}
			eng, opts, _, err := setup(c)
			if err != nil {
				return err
			}
			defer eng.Close()
			opts.DryRun = c.Bool("dry-run")

			report, err := eng.Run(path, opts)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(report)
			}
			printSummary(report)
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Regenerate whenever headers or the directive file change",
		ArgsUsage: "<directives.weld>",
		Flags: append(commonFlags(),
			&cli.IntFlag{Name: "debounce", Value: 200, Usage: "milliseconds to group rapid changes"},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			path, err := directiveArg(c)
			if err != nil {
				return err
			}
			eng, opts, logger, err := setup(c)
			if err != nil {
				return err
			}
			defer eng.Close()

			wopts := engine.DefaultWatchOptions()
			wopts.DebounceMs = int(c.Int("debounce"))
			w, err := engine.NewWatcher(eng, wopts, logger)
			if err != nil {
				return err
			}
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			return w.Start(path, opts)
		},
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Run the pipeline without writing artifacts and query the result",
		ArgsUsage: "<directives.weld>",
		Flags: append(commonFlags(),
			&cli.StringFlag{Name: "name", Usage: "filter entities by name substring"},
			&cli.StringFlag{Name: "kind", Usage: "filter entities by kind"},
			&cli.BoolFlag{Name: "stubs", Usage: "list only the stubbed symbols"},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			path, err := directiveArg(c)
			if err != nil {
				return err
			}
			eng, opts, _, err := setup(c)
			if err != nil {
				return err
			}
			defer eng.Close()
			opts.DryRun = true

			report, err := eng.Run(path, opts)
			if err != nil {
				return err
			}
			qs := engine.NewQueryService(report)
			if c.Bool("stubs") {
				return printJSON(qs.Stubs())
			}
			return printJSON(qs.Entities(c.String("name"), c.String("kind")))
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "Serve the generation report over MCP on stdin/stdout",
		ArgsUsage: "<directives.weld>",
		Flags:     commonFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			path, err := directiveArg(c)
			if err != nil {
				return err
			}
			eng, opts, logger, err := setup(c)
			if err != nil {
				return err
			}
			defer eng.Close()
			opts.DryRun = true

			report, err := eng.Run(path, opts)
			if err != nil {
				return err
			}
			logger.Info("serving report over MCP", "entities", len(report.Entities))
			return mcp.NewServer(engine.NewQueryService(report)).ServeStdio()
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the bindweld version",
		Action: func(ctx context.Context, c *cli.Command) error {
			fmt.Println("bindweld", version)
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(r *engine.Report) {
	fmt.Printf("module %s: %d entities, %d stubs\n", r.ModName, len(r.Entities), len(r.Stubs))
	if r.Artifacts.Bridge != "" {
		fmt.Printf("  bridge: %s\n", r.Artifacts.Bridge)
		fmt.Printf("  shim:   %s, %s\n", r.Artifacts.ShimHeader, r.Artifacts.ShimSource)
	}
	for _, s := range r.Stubs {
		fmt.Printf("  stub: %s (%s)\n", s.Name, s.Reason)
	}
}
