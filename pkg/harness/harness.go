// Package harness drives the whole verification pipeline the way the
// command front-end wires it, against real media staged on disk. The
// end-to-end tests here are the ones that catch seams between the
// manifest parser, the volume layer, and the verifier.
package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bootsum/bootsum/pkg/manifest"
	"github.com/bootsum/bootsum/pkg/md5"
	"github.com/bootsum/bootsum/pkg/paths"
	"github.com/bootsum/bootsum/pkg/relay"
	"github.com/bootsum/bootsum/pkg/verify"
	"github.com/bootsum/bootsum/pkg/volume"
)

// Medium stages a file tree and its manifest under Dir. Content
// written through the Medium is remembered, so WriteManifest can
// digest it without re-reading, and Corrupt can damage the on-disk
// copy while the manifest keeps the original digest.
type Medium struct {
	Dir string

	staged  []string
	content map[string][]byte
}

func NewMedium(dir string) *Medium {
	return &Medium{
		Dir:     dir,
		content: map[string][]byte{},
	}
}

// Write stages one file. rel uses '/' separators.
func (m *Medium) Write(rel string, data []byte) error {
	full := filepath.Join(m.Dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return err
	}
	if _, seen := m.content[rel]; !seen {
		m.staged = append(m.staged, rel)
	}
	m.content[rel] = data
	return nil
}

func (m *Medium) WriteTree(files map[string]string) error {
	rels := make([]string, 0, len(files))
	for rel := range files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	for _, rel := range rels {
		if err := m.Write(rel, []byte(files[rel])); err != nil {
			return err
		}
	}
	return nil
}

// WriteManifest digests every staged file and writes the manifest in
// staging order, preceded by the TotalBytes comment.
func (m *Medium) WriteManifest() error {
	var b strings.Builder
	var total int64
	for _, rel := range m.staged {
		data := m.content[rel]
		total += int64(len(data))
		fmt.Fprintf(&b, "%s  %s\n", md5.Sum(data), rel)
	}
	text := fmt.Sprintf("# TotalBytes: 0x%X\n%s", total, b.String())
	return m.WriteRawManifest(text)
}

// WriteRawManifest writes the manifest verbatim, bypassing staging.
func (m *Medium) WriteRawManifest(text string) error {
	return os.WriteFile(
		filepath.Join(m.Dir, manifest.DefaultName),
		[]byte(text), 0644,
	)
}

func (m *Medium) AppendManifest(text string) error {
	f, err := os.OpenFile(
		filepath.Join(m.Dir, manifest.DefaultName),
		os.O_WRONLY|os.O_APPEND, 0644,
	)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(text)
	return err
}

// Corrupt flips the first byte of the on-disk copy. The staged
// content, and therefore the manifest digest, keeps the original.
func (m *Medium) Corrupt(rel string) error {
	full := filepath.Join(m.Dir, filepath.FromSlash(rel))
	data, err := os.ReadFile(full)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("cannot corrupt empty file %s", rel)
	}
	data[0] ^= 0xff
	return os.WriteFile(full, data, 0644)
}

func (m *Medium) Remove(rel string) error {
	return os.Remove(filepath.Join(m.Dir, filepath.FromSlash(rel)))
}

// Pipeline runs verification end to end: open the volume, load the
// manifest, stream every entry, and report to the relay when one is
// attached. This is the same sequence the verify command performs.
type Pipeline struct {
	Dir string

	// ManifestName overrides the default manifest filename.
	ManifestName string

	ChunkSize int
	Progress  verify.ProgressSink
	Failures  verify.FailureSink
	Reporter  *relay.Reporter
}

// Outcome carries everything a test needs to judge a run.
type Outcome struct {
	Manifest *manifest.Manifest
	Result   verify.RunResult
}

func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	rt, err := volume.DirVolume{Dir: p.Dir}.OpenRoot()
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	name := p.ManifestName
	if name == "" {
		name = manifest.DefaultName
	}
	mf, err := rt.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	m, err := manifest.Load(mf, manifest.Options{
		SizeLookup: func(path string) (int64, bool) {
			native, err := paths.EncodeNative(path)
			if err != nil {
				return 0, false
			}
			return rt.Size(native)
		},
	})
	mf.Close()
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	progSinks := []verify.ProgressSink{p.Progress}
	failSinks := []verify.FailureSink{p.Failures}
	if p.Reporter != nil {
		host, _ := os.Hostname()
		p.Reporter.Begin(host, name, len(m.Entries), m.TotalBytes)
		progSinks = append(progSinks, p.Reporter.ProgressSink())
		failSinks = append(failSinks, p.Reporter.FailureSink())
	}

	v := &verify.Verifier{
		Root:      rt,
		Progress:  verify.MultiProgress(progSinks...),
		Failures:  verify.MultiFailure(failSinks...),
		ChunkSize: p.ChunkSize,
	}
	res := v.Run(ctx, m)
	if p.Reporter != nil {
		p.Reporter.Summary(res)
	}
	return &Outcome{Manifest: m, Result: res}, nil
}
