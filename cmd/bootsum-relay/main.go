package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bootsum/bootsum/pkg/relay"
)

const appVersion = "0.3.0"

func main() {
	app := &cli.App{
		Name:  "bootsum-relay",
		Usage: "collect verification telemetry from booting machines",
		Before: func(c *cli.Context) error {
			configureLogging(c.Bool("verbose"))
			return nil
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Value: ":8618",
				Usage: "listen address",
			},
			&cli.StringFlag{
				Name:    "token",
				EnvVars: []string{"BOOTSUM_RELAY_TOKEN"},
				Usage:   "bearer token clients must present",
			},
			&cli.StringFlag{
				Name:  "log-dir",
				Usage: "directory for per-session JSONL logs",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "verbose output",
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
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

func serveAction(c *cli.Context) error {
	logDir := c.String("log-dir")
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}

	collector := &relay.Collector{
		Token:   c.String("token"),
		Dir:     logDir,
		Version: appVersion,
	}

	mux := http.NewServeMux()
	mux.Handle("/relay", collector)
	mux.HandleFunc("/healthz",
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, "ok")
		},
	)

	srv := &http.Server{
		Addr:    c.String("listen"),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening",
			"addr", srv.Addr,
			"auth", collector.Token != "",
			"log_dir", logDir,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second,
		)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}
