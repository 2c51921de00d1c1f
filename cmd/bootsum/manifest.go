package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/bootsum/bootsum/pkg/console"
	"github.com/bootsum/bootsum/pkg/manifest"
	"github.com/bootsum/bootsum/pkg/volume"
)

func manifestCmd() *cli.Command {
	return &cli.Command{
		Name:      "manifest",
		Usage:     "inspect a checksum manifest",
		ArgsUsage: "[root]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "manifest",
				Usage: "manifest file name",
			},
			&cli.BoolFlag{
				Name:  "sizes",
				Usage: "probe entry sizes on the medium",
			},
			&cli.IntFlag{
				Name:  "show",
				Usage: "print the first N entries",
			},
		},
		Action: manifestAction,
	}
}

func manifestAction(c *cli.Context) error {
	if c.NArg() > 1 {
		return fmt.Errorf("usage: bootsum manifest [root]")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("manifest") {
		cfg.Manifest = c.String("manifest")
	}

	rt, err := volume.DirVolume{Dir: rootArg(c)}.OpenRoot()
	if err != nil {
		return err
	}
	defer rt.Close()

	f, err := rt.Open(cfg.Manifest)
	if err != nil {
		return err
	}
	defer f.Close()

	opts := manifest.Options{}
	if c.Bool("sizes") {
		opts.SizeLookup = rootSizeLookup(rt)
	}
	m, err := manifest.Load(f, opts)
	if err != nil {
		return err
	}

	fmt.Printf(
		"Found %d entries (TotalBytes = 0x%X)\n",
		len(m.Entries), m.TotalBytes,
	)
	fmt.Printf("  Manifest: %s\n", cfg.Manifest)
	fmt.Printf("  Total size: %s\n", console.HumanBytes(m.TotalBytes))
	fmt.Printf("  Rejected lines: %d\n", m.Rejected)
	if dupes := duplicatePaths(m); dupes > 0 {
		fmt.Printf("  Duplicate paths: %d\n", dupes)
	}

	show := c.Int("show")
	if show > len(m.Entries) {
		show = len(m.Entries)
	}
	for _, e := range m.Entries[:show] {
		if c.Bool("sizes") {
			fmt.Printf("  %s  %s (%s)\n",
				e.Checksum, e.Path, console.HumanBytes(e.Size),
			)
		} else {
			fmt.Printf("  %s  %s\n", e.Checksum, e.Path)
		}
	}
	return nil
}

func duplicatePaths(m *manifest.Manifest) int {
	seen := make(map[string]bool, len(m.Entries))
	dupes := 0
	for _, e := range m.Entries {
		if seen[e.Path] {
			dupes++
		}
		seen[e.Path] = true
	}
	return dupes
}
