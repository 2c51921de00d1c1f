package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/bootsum/bootsum/pkg/md5"
	"github.com/bootsum/bootsum/pkg/verify"
)

func hashCmd() *cli.Command {
	return &cli.Command{
		Name:      "hash",
		Usage:     "print MD5 digests in manifest form",
		ArgsUsage: "[file]...",
		Action:    hashAction,
	}
}

func hashAction(c *cli.Context) error {
	if c.NArg() == 0 {
		digest, err := hashReader(os.Stdin)
		if err != nil {
			return fmt.Errorf("stdin: %w", err)
		}
		fmt.Printf("%s  -\n", digest)
		return nil
	}
	for _, path := range c.Args().Slice() {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		digest, err := hashReader(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("%s  %s\n", digest, filepath.ToSlash(path))
	}
	return nil
}

func hashReader(r io.Reader) (md5.Digest, error) {
	state := md5.New()
	buf := make([]byte, verify.DefaultChunkSize)
	if _, err := io.CopyBuffer(state, r, buf); err != nil {
		return md5.Digest{}, err
	}
	return state.Sum(), nil
}
