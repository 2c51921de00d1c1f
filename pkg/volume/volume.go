package volume

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bootsum/bootsum/pkg/paths"
)

// Volume grants read access to a medium under verification.
type Volume interface {
	OpenRoot() (Root, error)
}

// Root is an open handle on the medium's filesystem root. Open
// failures and mid-stream read failures stay distinguishable: the
// former surface here, the latter from the returned reader.
type Root interface {
	// Open opens the named file read-only, in native path form.
	// Directories do not open.
	Open(native string) (io.ReadCloser, error)

	// Size probes a file's length; false when it cannot be known.
	Size(native string) (int64, bool)

	Close() error
}

// DirVolume serves a plain directory as the verified medium.
type DirVolume struct {
	Dir string
}

func (v DirVolume) OpenRoot() (Root, error) {
	abs, err := filepath.Abs(v.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", v.Dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}
	return &dirRoot{dir: abs}, nil
}

type dirRoot struct {
	dir string
}

func (r *dirRoot) Open(native string) (io.ReadCloser, error) {
	full := filepath.Join(r.dir, native)
	if !paths.IsWithinDir(r.dir, full) {
		return nil, fmt.Errorf("path escapes root: %s", native)
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", native)
	}
	return f, nil
}

func (r *dirRoot) Size(native string) (int64, bool) {
	full := filepath.Join(r.dir, native)
	if !paths.IsWithinDir(r.dir, full) {
		return 0, false
	}
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}

func (r *dirRoot) Close() error {
	return nil
}
