package main

import (
	"crypto/rand"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/bootsum/bootsum/pkg/boot"
	"github.com/bootsum/bootsum/pkg/console"
	"github.com/bootsum/bootsum/pkg/manifest"
	"github.com/bootsum/bootsum/pkg/md5"
)

func main() {
	app := &cli.App{
		Name:      "mkmedia",
		Usage:     "build a test medium with a checksum manifest",
		ArgsUsage: "<dest>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "files",
				Value: 25,
				Usage: "number of generated payload files",
			},
			&cli.IntFlag{
				Name:  "corrupt",
				Usage: "corrupt N files after writing the manifest",
			},
			&cli.IntFlag{
				Name:  "missing",
				Usage: "remove N files after writing the manifest",
			},
			&cli.BoolFlag{
				Name:  "badpath",
				Usage: "append malformed and unencodable manifest lines",
			},
			&cli.BoolFlag{
				Name:  "with-loader",
				Value: true,
				Usage: "write a stand-in displaced boot loader",
			},
		},
		Action: buildAction,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func buildAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: mkmedia <dest>")
	}
	dest := c.Args().Get(0)
	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}

	fmt.Println("=== Building medium ===")
	fmt.Printf("Dest: %s\n", dest)

	if err := buildTree(dest, c.Int("files"), c.Bool("with-loader")); err != nil {
		return err
	}

	entries, total, err := writeManifest(dest)
	if err != nil {
		return err
	}
	fmt.Printf(
		"Manifest: %d entries (%s)\n",
		entries, console.HumanBytes(total),
	)

	if n := c.Int("corrupt"); n > 0 {
		count, err := corruptFiles(dest, n)
		if err != nil {
			return err
		}
		fmt.Printf("Corrupted: %d files\n", count)
	}
	if n := c.Int("missing"); n > 0 {
		count, err := removeFiles(dest, n)
		if err != nil {
			return err
		}
		fmt.Printf("Removed: %d files\n", count)
	}
	if c.Bool("badpath") {
		if err := appendBadLines(dest); err != nil {
			return err
		}
		fmt.Println("Appended malformed manifest lines")
	}

	fmt.Printf("\nVerify with: bootsum verify %s\n", dest)
	return nil
}

func buildTree(dest string, payload int, withLoader bool) error {
	files := map[string][]byte{
		"efi/boot/bootx64.efi":  []byte("bootsum stage one stub\n"),
		"boot/vmlinuz":          randomBytes(256 << 10),
		"boot/initrd.img":       randomBytes(1 << 20),
		"boot/grub/grub.cfg":    []byte("set default=0\nset timeout=5\n"),
		"isolinux/isolinux.cfg": []byte("DEFAULT linux\nLABEL linux\n  KERNEL /boot/vmlinuz\n"),
		".disk/info":            []byte("bootsum test medium\n"),
		"docs/readme.txt":       []byte("This medium is generated for verification testing.\n"),
		"docs/手引き.txt":          []byte("検証用の文書です。\n"),
		"empty.dat":             {},
	}
	if withLoader {
		files["efi/boot/"+boot.LoaderName()] = []byte("displaced original loader stub\n")
	}
	for i := 0; i < payload; i++ {
		size := (i%7 + 1) << 12
		if i == 0 {
			size = 4 << 20
		}
		name := fmt.Sprintf("pool/data-%03d.bin", i)
		files[name] = randomBytes(size)
	}

	for rel, content := range files {
		if err := writeFile(dest, rel, content); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(base, rel string, content []byte) error {
	full := filepath.Join(base, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	return os.WriteFile(full, content, 0644)
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}

// writeManifest hashes every regular file on the medium and writes
// md5sum.txt with a TotalBytes comment.
func writeManifest(dest string) (int, int64, error) {
	rels, err := listFiles(dest)
	if err != nil {
		return 0, 0, err
	}

	var b strings.Builder
	var total int64
	for _, rel := range rels {
		data, err := os.ReadFile(
			filepath.Join(dest, filepath.FromSlash(rel)),
		)
		if err != nil {
			return 0, 0, err
		}
		total += int64(len(data))
		fmt.Fprintf(&b, "%s  %s\n", md5.Sum(data), rel)
	}

	out := fmt.Sprintf("# TotalBytes: 0x%X\n%s", total, b.String())
	err = os.WriteFile(
		filepath.Join(dest, manifest.DefaultName),
		[]byte(out), 0644,
	)
	return len(rels), total, err
}

// listFiles returns sorted slash paths of regular files, skipping the
// manifest itself.
func listFiles(dest string) ([]string, error) {
	var rels []string
	err := filepath.WalkDir(
		dest,
		func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(dest, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if rel == manifest.DefaultName {
				return nil
			}
			rels = append(rels, rel)
			return nil
		},
	)
	sort.Strings(rels)
	return rels, err
}

func corruptFiles(dest string, n int) (int, error) {
	rels, err := listFiles(dest)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, rel := range rels {
		if count == n {
			break
		}
		full := filepath.Join(dest, filepath.FromSlash(rel))
		data, err := os.ReadFile(full)
		if err != nil {
			return count, err
		}
		if len(data) == 0 {
			continue
		}
		data[0] ^= 0xff
		if err := os.WriteFile(full, data, 0644); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func removeFiles(dest string, n int) (int, error) {
	rels, err := listFiles(dest)
	if err != nil {
		return 0, err
	}
	// Walk from the back so corrupt and missing pick different files.
	count := 0
	for i := len(rels) - 1; i >= 0 && count < n; i-- {
		full := filepath.Join(dest, filepath.FromSlash(rels[i]))
		if err := os.Remove(full); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func appendBadLines(dest string) error {
	f, err := os.OpenFile(
		filepath.Join(dest, manifest.DefaultName),
		os.O_WRONLY|os.O_APPEND, 0644,
	)
	if err != nil {
		return err
	}
	defer f.Close()

	empty := md5.Sum(nil)
	lines := "" +
		// Invalid UTF-8 in the path: parses, fails native encoding.
		fmt.Sprintf("%s  pool/bad\xffname.bin\n", empty) +
		// Junk that the parser must reject.
		"zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz  pool/rejected.bin\n" +
		fmt.Sprintf("%s\n", empty)
	_, err = f.WriteString(lines)
	return err
}
