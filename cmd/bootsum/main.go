package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/bootsum/bootsum/pkg/config"
	"github.com/bootsum/bootsum/pkg/paths"
	"github.com/bootsum/bootsum/pkg/volume"
)

const appVersion = "0.3.0"

func main() {
	app := &cli.App{
		Name:  "bootsum",
		Usage: "verify boot media integrity before chain loading",
		Before: func(c *cli.Context) error {
			configureLogging(c.Bool("verbose"))
			return nil
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				EnvVars: []string{"BOOTSUM_CONFIG"},
				Usage:   "config file path",
			},
			&cli.StringFlag{
				Name:  "color",
				Usage: "colored output (auto, always, never)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "verbose output",
			},
		},
		Commands: []*cli.Command{
			verifyCmd(),
			hashCmd(),
			manifestCmd(),
			statusCmd(),
			{
				Name:  "version",
				Usage: "print version",
				Action: func(c *cli.Context) error {
					fmt.Println(appVersion)
					return nil
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func configureLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	))
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("color") {
		cfg.Console.Color = c.String("color")
	}
	switch cfg.Console.Color {
	case "auto", "always", "never":
	default:
		return nil, fmt.Errorf(
			"invalid color mode %q (want auto, always, or never)",
			cfg.Console.Color,
		)
	}
	return cfg, nil
}

func rootArg(c *cli.Context) string {
	if c.NArg() > 0 {
		return c.Args().Get(0)
	}
	return "."
}

func rootSizeLookup(rt volume.Root) func(string) (int64, bool) {
	return func(path string) (int64, bool) {
		native, err := paths.EncodeNative(path)
		if err != nil {
			return 0, false
		}
		return rt.Size(native)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
