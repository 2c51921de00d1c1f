package paths

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxPathBytes bounds manifest paths, measured in UTF-8 bytes.
const MaxPathBytes = 512

// EncodeNative converts a manifest path ('/' separators, UTF-8) into
// the form used to open files on this platform. Malformed input is an
// error, never silently repaired; use Transliterate for display.
func EncodeNative(manifestPath string) (string, error) {
	if manifestPath == "" {
		return "", fmt.Errorf("empty path")
	}
	if len(manifestPath) > MaxPathBytes {
		return "", fmt.Errorf("path exceeds %d bytes", MaxPathBytes)
	}
	if strings.ContainsRune(manifestPath, 0) {
		return "", fmt.Errorf("path contains null byte")
	}
	if !utf8.ValidString(manifestPath) {
		return "", fmt.Errorf("path is not valid UTF-8")
	}
	return filepath.FromSlash(manifestPath), nil
}

// Transliterate maps a raw path to printable ASCII for display.
// Anything outside 0x20..0x7e becomes '?'. The result is never used
// to open files.
func Transliterate(raw string) string {
	out := make([]byte, len(raw))
	for i := 0; i < len(raw); i++ {
		b := raw[i]
		if b >= 0x20 && b <= 0x7e {
			out[i] = b
		} else {
			out[i] = '?'
		}
	}
	return string(out)
}

func ValidateRelPath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if len(p) > MaxPathBytes {
		return fmt.Errorf("path exceeds %d bytes", MaxPathBytes)
	}
	if strings.ContainsRune(p, 0) {
		return fmt.Errorf("path contains null byte")
	}
	if path.IsAbs(p) {
		return fmt.Errorf("absolute path not allowed: %s", p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return fmt.Errorf("path resolves to current directory")
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf(
			"path escapes verified root: %s", p,
		)
	}
	return nil
}

func IsWithinDir(dir, full string) bool {
	rel, err := filepath.Rel(dir, full)
	if err != nil {
		return false
	}
	return rel != ".." &&
		!strings.HasPrefix(rel, "../") &&
		!filepath.IsAbs(rel)
}
