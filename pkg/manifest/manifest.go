package manifest

import (
	"errors"

	"github.com/bootsum/bootsum/pkg/md5"
)

const (
	// DefaultName is the manifest filename looked up under the
	// verified root.
	DefaultName = "md5sum.txt"

	// MaxSize bounds the manifest file itself, not the payload.
	MaxSize = 64 << 20

	MaxLines       = 100000
	DefaultMaxPath = 512
)

var (
	ErrEmptyManifest    = errors.New("manifest is empty")
	ErrNoEntries        = errors.New("manifest contains no valid entries")
	ErrManifestTooLarge = errors.New("manifest exceeds maximum size")
	ErrTooManyEntries   = errors.New("manifest contains too many lines")
)

// Entry is one manifest line. Checksum and Path are views into the
// manifest's backing buffer and stay valid as long as the Manifest does.
type Entry struct {
	// Checksum holds the 32 hex characters exactly as written in the
	// manifest, original case preserved.
	Checksum string

	// Path in manifest form: '/' separators, relative to the root.
	Path string

	// Size of the referenced file in bytes, 0 when unknown.
	Size int64
}

// Digest decodes the checksum field. The parser only admits entries
// with well-formed checksums, so decoding cannot fail here.
func (e Entry) Digest() md5.Digest {
	d, _ := md5.ParseDigest(e.Checksum)
	return d
}

type Manifest struct {
	Entries []Entry

	// TotalBytes is the declared or accumulated payload size,
	// 0 when unknown. Best effort only.
	TotalBytes int64

	// Rejected counts lines that looked like entries but failed
	// validation and were skipped.
	Rejected int
}
