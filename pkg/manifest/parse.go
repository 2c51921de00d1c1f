package manifest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bootsum/bootsum/pkg/md5"
)

type Options struct {
	// MaxPathLen bounds entry paths in bytes; 0 means DefaultMaxPath.
	MaxPathLen int

	// SizeLookup, when set, probes per-entry file sizes. The results
	// feed TotalBytes when the manifest does not declare one; a
	// failed probe contributes zero.
	SizeLookup func(path string) (int64, bool)
}

func Load(r io.Reader, opts Options) (*Manifest, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(raw, opts)
}

// Parse builds the entry table from raw manifest bytes. The text is
// copied once; every Entry field is a view into that copy. The table
// itself is sized from a pre-scan line count and allocated once.
func Parse(raw []byte, opts Options) (*Manifest, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyManifest
	}
	if len(raw) > MaxSize {
		return nil, ErrManifestTooLarge
	}

	maxPath := opts.MaxPathLen
	if maxPath <= 0 {
		maxPath = DefaultMaxPath
	}

	text := string(raw)
	lines := strings.Count(text, "\n") + 1
	if lines > MaxLines {
		return nil, ErrTooManyEntries
	}

	m := &Manifest{Entries: make([]Entry, 0, lines)}
	declared := int64(-1)
	var accumulated int64

	for start := 0; start < len(text); {
		line := text[start:]
		if nl := strings.IndexByte(line, '\n'); nl >= 0 {
			line = line[:nl]
			start += nl + 1
		} else {
			start = len(text)
		}
		line = strings.TrimSuffix(line, "\r")

		// Tolerate BOMs and other junk ahead of the first field.
		line = trimLeadingJunk(line)
		if line == "" {
			continue
		}
		if line[0] == '#' {
			if v, ok := parseTotalBytes(line[1:]); ok {
				declared = v
			}
			continue
		}

		entry, ok := parseEntry(line, maxPath)
		if !ok {
			m.Rejected++
			continue
		}
		if opts.SizeLookup != nil {
			if n, found := opts.SizeLookup(entry.Path); found {
				entry.Size = n
				accumulated += n
			}
		}
		m.Entries = append(m.Entries, entry)
	}

	if len(m.Entries) == 0 {
		return nil, ErrNoEntries
	}
	if declared >= 0 {
		m.TotalBytes = declared
	} else {
		m.TotalBytes = accumulated
	}
	return m, nil
}

func trimLeadingJunk(line string) string {
	i := 0
	for i < len(line) && (line[i] <= ' ' || line[i] >= 0x80) {
		i++
	}
	return line[i:]
}

// parseTotalBytes matches "# TotalBytes: 0x<hex64>" comment bodies.
// Spaces may appear between the digits; more than 16 digits or any
// other character invalidates the whole value.
func parseTotalBytes(s string) (int64, bool) {
	s = strings.TrimLeft(s, " \t")
	s, ok := strings.CutPrefix(s, "TotalBytes:")
	if !ok {
		return 0, false
	}
	s = strings.TrimLeft(s, " \t")
	s, ok = strings.CutPrefix(s, "0x")
	if !ok {
		return 0, false
	}
	s = strings.ReplaceAll(s, " ", "")
	if len(s) == 0 || len(s) > 16 {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 63)
	if err != nil {
		return 0, false
	}
	return int64(v), true
}

func parseEntry(line string, maxPath int) (Entry, bool) {
	const hexLen = md5.Size * 2
	if len(line) < hexLen+2 {
		return Entry{}, false
	}
	checksum := line[:hexLen]
	if !isHex(checksum) {
		return Entry{}, false
	}
	rest := line[hexLen:]
	if rest[0] != ' ' && rest[0] != '\t' {
		return Entry{}, false
	}
	rest = strings.TrimLeft(rest, " \t")

	// A '*' right before the path is the binary-mode marker. It
	// carries no meaning here.
	rest = strings.TrimPrefix(rest, "*")

	if rest == "" || len(rest) > maxPath {
		return Entry{}, false
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] < 0x20 {
			return Entry{}, false
		}
	}
	return Entry{Checksum: checksum, Path: rest}, true
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
