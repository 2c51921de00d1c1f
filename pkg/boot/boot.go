package boot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/bootsum/bootsum/pkg/sysinfo"
)

// LoaderName returns the displaced boot loader's file name for the
// running architecture.
func LoaderName() string {
	return "boot" + sysinfo.Arch() + "_original.efi"
}

// Loader locates and starts the next boot stage.
type Loader interface {
	Locate() (string, error)
	Start(path string) error
}

// ExecLoader hands control to the displaced loader under Dir by
// replacing the current process.
type ExecLoader struct {
	Dir  string
	Args []string
}

func (l *ExecLoader) Locate() (string, error) {
	rel := filepath.Join("efi", "boot", LoaderName())
	path, err := ResolveCase(l.Dir, rel)
	if err != nil {
		return "", fmt.Errorf("locate loader: %w", err)
	}
	return path, nil
}

func (l *ExecLoader) Start(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve loader path: %w", err)
	}
	argv := append([]string{abs}, l.Args...)
	if err := unix.Exec(abs, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", abs, err)
	}
	return nil
}

// ResolveCase walks rel below root, matching each segment without
// regard to case, and returns the path spelled the way the volume
// spells it. Exact-case entries win over folded matches.
func ResolveCase(root, rel string) (string, error) {
	cur := root
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		if seg == "" {
			continue
		}
		entries, err := os.ReadDir(cur)
		if err != nil {
			return "", err
		}
		found := ""
		for _, e := range entries {
			if e.Name() == seg {
				found = seg
				break
			}
			if found == "" && strings.EqualFold(e.Name(), seg) {
				found = e.Name()
			}
		}
		if found == "" {
			return "", fmt.Errorf(
				"%s: %w", filepath.Join(cur, seg), os.ErrNotExist,
			)
		}
		cur = filepath.Join(cur, found)
	}
	return cur, nil
}
