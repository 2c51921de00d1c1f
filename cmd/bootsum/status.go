package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bootsum/bootsum/pkg/boot"
	"github.com/bootsum/bootsum/pkg/console"
	"github.com/bootsum/bootsum/pkg/manifest"
	"github.com/bootsum/bootsum/pkg/relay"
	"github.com/bootsum/bootsum/pkg/sysinfo"
	"github.com/bootsum/bootsum/pkg/volume"
)

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "check medium, loader, and collector readiness",
		ArgsUsage: "[root]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "manifest",
				Usage: "manifest file name",
			},
			&cli.StringFlag{
				Name:  "relay",
				Usage: "relay collector URL",
			},
		},
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	if c.NArg() > 1 {
		return fmt.Errorf("usage: bootsum status [root]")
	}
	rootDir := rootArg(c)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("manifest") {
		cfg.Manifest = c.String("manifest")
	}
	if c.IsSet("relay") {
		cfg.Relay.URL = c.String("relay")
	}

	fmt.Printf("bootsum %s (%s/%s)\n",
		appVersion, runtime.GOOS, runtime.GOARCH,
	)
	fmt.Printf("Root: %s\n", rootDir)

	rt, err := volume.DirVolume{Dir: rootDir}.OpenRoot()
	if err != nil {
		fmt.Printf("  Volume: FAIL (%v)\n", err)
		return fmt.Errorf("volume check failed")
	}
	fmt.Printf("  Volume: ok\n")
	defer rt.Close()

	failed := false

	f, err := rt.Open(cfg.Manifest)
	if err != nil {
		fmt.Printf("  Manifest: FAIL (%v)\n", err)
		failed = true
	} else {
		m, err := manifest.Load(f, manifest.Options{
			SizeLookup: rootSizeLookup(rt),
		})
		f.Close()
		if err != nil {
			fmt.Printf("  Manifest: FAIL (%v)\n", err)
			failed = true
		} else {
			fmt.Printf("  Manifest: ok (%d entries, %s)\n",
				len(m.Entries), console.HumanBytes(m.TotalBytes),
			)
		}
	}

	loader := &boot.ExecLoader{Dir: rootDir}
	if path, err := loader.Locate(); err != nil {
		fmt.Printf("  Loader: missing (%s)\n", boot.LoaderName())
	} else {
		fmt.Printf("  Loader: ok (%s)\n", path)
	}

	info := sysinfo.New()
	if vendor := info.SysVendor(); vendor != "" {
		fmt.Printf("  System: %s %s\n", vendor, info.ProductName())
	}
	fmt.Printf("  Secure Boot: %s\n", info.SecureBoot())
	if info.IsTestSystem() {
		fmt.Printf("  Test mode: yes\n")
	}
	if console.New(cfg.Console.Color).Interactive {
		fmt.Printf("  Console: interactive\n")
	} else {
		fmt.Printf("  Console: non-interactive\n")
	}

	if cfg.Relay.URL != "" {
		ctx, cancel := context.WithTimeout(
			c.Context, 10*time.Second,
		)
		defer cancel()
		rep, err := relay.Dial(ctx, cfg.Relay.URL, cfg.Relay.Token)
		if err != nil {
			fmt.Printf("  Relay: FAIL (%v)\n", err)
			failed = true
		} else {
			fmt.Printf("  Relay: ok (collector %s)\n",
				rep.CollectorVersion(),
			)
			rep.Close()
		}
	}

	if failed {
		return fmt.Errorf("status checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}
