package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/bootsum/bootsum/pkg/boot"
	"github.com/bootsum/bootsum/pkg/config"
	"github.com/bootsum/bootsum/pkg/console"
	"github.com/bootsum/bootsum/pkg/manifest"
	"github.com/bootsum/bootsum/pkg/relay"
	"github.com/bootsum/bootsum/pkg/sysinfo"
	"github.com/bootsum/bootsum/pkg/verify"
	"github.com/bootsum/bootsum/pkg/volume"
)

func verifyCmd() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "verify a medium against its checksum manifest",
		ArgsUsage: "[root]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "manifest",
				Usage: "manifest file name",
			},
			&cli.BoolFlag{
				Name:  "unattended",
				Usage: "never prompt; gate on any failure",
			},
			&cli.BoolFlag{
				Name:  "no-chain",
				Usage: "report only, do not chain load",
			},
			&cli.StringFlag{
				Name:  "relay",
				Usage: "relay collector URL",
			},
			&cli.IntFlag{
				Name:  "chunk-kib",
				Usage: "read chunk size in KiB",
			},
		},
		Action: verifyAction,
	}
}

func verifyAction(c *cli.Context) error {
	if c.NArg() > 1 {
		return fmt.Errorf("usage: bootsum verify [root]")
	}
	rootDir := rootArg(c)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyVerifyFlags(c, cfg)

	cons := console.New(cfg.Console.Color)
	info := sysinfo.New()
	testMode := info.IsTestSystem()

	cons.Banner("bootsum " + appVersion)
	if vendor := info.SysVendor(); vendor != "" {
		cons.Infof("System: %s %s", vendor, info.ProductName())
	}
	cons.Infof("Secure Boot status: %s", info.SecureBoot())
	if testMode {
		cons.Testf("test system detected")
	}

	ctx, stopSignals := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stopSignals()

	res, loader, loaderPath := runVerification(
		ctx, cfg, cons, rootDir, testMode,
	)

	dec := verify.Decide(res, decisionMode(cfg, cons, testMode))

	if loader == nil {
		return cli.Exit("", exitCode(res))
	}

	countdown := true
	switch dec {
	case verify.Terminate:
		return cli.Exit("", exitCode(res))
	case verify.ConfirmRequired:
		if !cons.Confirm("Proceed with boot?") {
			return cli.Exit("", exitCode(res))
		}
		countdown = false
	}

	if countdown && !testMode {
		if !cons.Countdown(ctx, "Proceeding", cfg.Loader.CountdownSec) {
			return cli.Exit("", exitCode(res))
		}
	}

	cons.Infof("chain loading %s", loaderPath)
	if err := loader.Start(loaderPath); err != nil {
		cons.Failf("could not launch original boot loader: %v", err)
		return cli.Exit("", 2)
	}
	return nil
}

func applyVerifyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("manifest") {
		cfg.Manifest = c.String("manifest")
	}
	if c.IsSet("unattended") {
		cfg.Unattended = c.Bool("unattended")
	}
	if c.IsSet("no-chain") {
		cfg.Loader.Enabled = !c.Bool("no-chain")
	}
	if c.IsSet("relay") {
		cfg.Relay.URL = c.String("relay")
	}
	if c.IsSet("chunk-kib") {
		cfg.ChunkKiB = c.Int("chunk-kib")
	}
}

// runVerification opens the medium, parses the manifest, and hashes
// every entry. It never aborts early on verification errors; fatal
// setup errors come back as a FatalError result so the same boot gate
// applies.
func runVerification(
	ctx context.Context,
	cfg *config.Config,
	cons *console.Console,
	rootDir string,
	testMode bool,
) (verify.RunResult, boot.Loader, string) {
	var loader boot.Loader
	var loaderPath string
	if cfg.Loader.Enabled {
		execLoader := &boot.ExecLoader{Dir: rootDir}
		if cfg.Loader.Path != "" {
			loader, loaderPath = execLoader, cfg.Loader.Path
		} else if path, err := execLoader.Locate(); err == nil {
			loader, loaderPath = execLoader, path
		} else {
			cons.Warnf("original boot loader not found: %v", err)
		}
	}

	rt, err := volume.DirVolume{Dir: rootDir}.OpenRoot()
	if err != nil {
		cons.Failf("could not open root directory: %v", err)
		return verify.Fatal(err), loader, loaderPath
	}
	defer rt.Close()

	mf, err := rt.Open(cfg.Manifest)
	if err != nil {
		cons.Failf("could not open %s: %v", cfg.Manifest, err)
		return verify.Fatal(fmt.Errorf("open manifest: %w", err)),
			loader, loaderPath
	}
	m, err := manifest.Load(mf, manifest.Options{
		SizeLookup: rootSizeLookup(rt),
	})
	mf.Close()
	if err != nil {
		cons.Failf("could not parse %s: %v", cfg.Manifest, err)
		return verify.Fatal(fmt.Errorf("parse manifest: %w", err)),
			loader, loaderPath
	}

	if testMode {
		cons.Testf("TotalBytes = 0x%X", m.TotalBytes)
	}
	cons.Infof("%d entries to verify (%s)",
		len(m.Entries), console.HumanBytes(m.TotalBytes),
	)
	if m.Rejected > 0 {
		cons.Warnf("%d invalid manifest line%s ignored",
			m.Rejected, plural(m.Rejected),
		)
	}

	progSinks := []verify.ProgressSink{cons.ProgressSink()}
	failSinks := []verify.FailureSink{cons.FailureSink()}

	var rep *relay.Reporter
	if cfg.Relay.URL != "" {
		rep, err = relay.Dial(ctx, cfg.Relay.URL, cfg.Relay.Token)
		if err != nil {
			slog.Warn("relay unavailable",
				"url", cfg.Relay.URL, "err", err,
			)
			rep = nil
		} else {
			defer rep.Close()
			host, _ := os.Hostname()
			rep.Begin(host, cfg.Manifest, len(m.Entries), m.TotalBytes)
			progSinks = append(progSinks, rep.ProgressSink())
			failSinks = append(failSinks, rep.FailureSink())
		}
	}

	if !testMode && cons.Interactive {
		cons.Noticef("[Press any key to cancel]")
	}
	vctx, stopWatch := cons.WatchCancel(ctx)
	defer stopWatch()

	v := &verify.Verifier{
		Root:      rt,
		Progress:  verify.MultiProgress(progSinks...),
		Failures:  verify.MultiFailure(failSinks...),
		ChunkSize: cfg.ChunkBytes(),
	}
	res := v.Run(vctx, m)
	stopWatch()
	cons.EndProgress()

	if res.Cancelled {
		cons.Warnf("verification cancelled")
	}
	if res.Failed() == 0 && !res.Cancelled {
		cons.Okf("%s", res.Summary())
	} else {
		cons.Warnf("%s", res.Summary())
	}

	if rep != nil {
		rep.Summary(res)
	}
	return res, loader, loaderPath
}

func decisionMode(
	cfg *config.Config,
	cons *console.Console,
	testMode bool,
) verify.Mode {
	switch {
	case testMode:
		return verify.TestMode
	case cfg.Unattended || !cons.Interactive:
		return verify.Unattended
	default:
		return verify.Interactive
	}
}

func exitCode(res verify.RunResult) int {
	switch {
	case res.Status == verify.FatalError:
		return 2
	case res.Failed() > 0:
		return 1
	case res.Cancelled:
		return 130
	default:
		return 0
	}
}
