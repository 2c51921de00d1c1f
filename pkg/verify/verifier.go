package verify

import (
	"context"
	"fmt"
	"io"

	"github.com/bootsum/bootsum/pkg/manifest"
	"github.com/bootsum/bootsum/pkg/md5"
	"github.com/bootsum/bootsum/pkg/paths"
	"github.com/bootsum/bootsum/pkg/volume"
)

const DefaultChunkSize = 1 << 20

// Verifier streams every manifest entry through the digest and
// compares against the expected value. One hash state and one read
// buffer are reused across the whole run.
type Verifier struct {
	Root     volume.Root
	Progress ProgressSink
	Failures FailureSink

	// ChunkSize is the read size for hashing; 0 means DefaultChunkSize.
	ChunkSize int
}

// Run processes entries in manifest order. Cancellation is polled
// between entries; a cancelled run keeps everything recorded so far
// and leaves the remaining entries untouched.
func (v *Verifier) Run(ctx context.Context, m *manifest.Manifest) RunResult {
	res := RunResult{Total: len(m.Entries), Status: Success}

	chunk := v.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	buf := make([]byte, chunk)
	state := md5.New()

	for i, entry := range m.Entries {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}

		expected := entry.Digest()

		native, err := encodePath(entry.Path)
		if err != nil {
			v.fail(&res, Failure{
				Ordinal: i + 1,
				Path:    paths.Transliterate(entry.Path),
				Outcome: PathEncodingFailed,
				Err:     err,
			})
			res.Processed++
			v.progress(i+1, res.Total)
			continue
		}

		computed, err := v.hashFile(state, buf, native)
		if err != nil {
			v.fail(&res, Failure{
				Ordinal: i + 1,
				Path:    entry.Path,
				Outcome: FileUnreadable,
				Err:     err,
			})
		} else if computed != expected {
			v.fail(&res, Failure{
				Ordinal: i + 1,
				Path:    entry.Path,
				Outcome: HashMismatch,
				Err: &MismatchError{
					Path:     entry.Path,
					Expected: expected,
					Computed: computed,
				},
			})
		}

		res.Processed++
		v.progress(i+1, res.Total)
	}

	if len(res.Failures) > 0 {
		res.Status = IntegrityFailure
	}
	return res
}

// encodePath gates an entry path before any filesystem access:
// it must stay inside the root and convert cleanly to native form.
func encodePath(manifestPath string) (string, error) {
	if err := paths.ValidateRelPath(manifestPath); err != nil {
		return "", err
	}
	return paths.EncodeNative(manifestPath)
}

func (v *Verifier) hashFile(state *md5.State, buf []byte, native string) (md5.Digest, error) {
	f, err := v.Root.Open(native)
	if err != nil {
		return md5.Digest{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	state.Reset()
	for {
		n, err := f.Read(buf)
		if n > 0 {
			state.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return md5.Digest{}, fmt.Errorf("read: %w", err)
		}
	}
	return state.Sum(), nil
}

func (v *Verifier) progress(current, total int) {
	if v.Progress != nil {
		v.Progress.Report(current, total)
	}
}

func (v *Verifier) fail(res *RunResult, f Failure) {
	res.Failures = append(res.Failures, f)
	if v.Failures != nil {
		v.Failures.Report(f)
	}
}
