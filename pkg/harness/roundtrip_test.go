package harness

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootsum/bootsum/pkg/boot"
	"github.com/bootsum/bootsum/pkg/relay"
	"github.com/bootsum/bootsum/pkg/verify"
)

func mediumTree() map[string]string {
	return map[string]string{
		"efi/boot/bootx64.efi": "stage one stub",
		"boot/vmlinuz":         "kernel image bytes",
		"boot/grub/grub.cfg":   "set default=0",
		"docs/手引き.txt":         "instructions",
		"empty.dat":            "",
		"pool/data-000.bin":    strings.Repeat("payload ", 512),
	}
}

func startRelay(t *testing.T) (string, chan *relay.Event) {
	t.Helper()
	events := make(chan *relay.Event, 256)
	srv := httptest.NewServer(&relay.Collector{
		Version: "test",
		OnEvent: func(ev *relay.Event) { events <- ev },
	})
	t.Cleanup(srv.Close)
	return srv.URL, events
}

func drainUntilSummary(t *testing.T, ch chan *relay.Event) []*relay.Event {
	t.Helper()
	var got []*relay.Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			got = append(got, ev)
			if ev.Type == relay.EventSummary {
				return got
			}
		case <-deadline:
			t.Fatalf("no summary event after %d events", len(got))
			return nil
		}
	}
}

func TestFullRunCleanMedium(t *testing.T) {
	m := newMedium(t)
	require.NoError(t, m.WriteTree(mediumTree()))
	require.NoError(t, m.WriteManifest())

	out := runPipeline(t, m)
	assert.Equal(t, verify.Success, out.Result.Status)
	assert.Equal(t, 6, out.Result.Processed)
	assert.Equal(t, 0, out.Result.Failed())
	assert.False(t, out.Result.Cancelled)

	assert.Equal(t, verify.Proceed,
		verify.Decide(out.Result, verify.Interactive))
	assert.Equal(t, verify.Proceed,
		verify.Decide(out.Result, verify.Unattended))
	assert.Equal(t, verify.Proceed,
		verify.Decide(out.Result, verify.TestMode))
}

func TestFullRunCorruptedFile(t *testing.T) {
	m := newMedium(t)
	require.NoError(t, m.WriteTree(mediumTree()))
	require.NoError(t, m.WriteManifest())
	require.NoError(t, m.Corrupt("boot/vmlinuz"))

	out := runPipeline(t, m)
	assert.Equal(t, verify.IntegrityFailure, out.Result.Status)
	require.Equal(t, 1, out.Result.Failed())

	f := out.Result.Failures[0]
	assert.Equal(t, "boot/vmlinuz", f.Path)
	assert.Equal(t, verify.HashMismatch, f.Outcome)

	var mismatch *verify.MismatchError
	require.True(t, errors.As(f.Err, &mismatch))
	assert.NotEqual(t, mismatch.Expected, mismatch.Computed)

	assert.Equal(t, verify.ConfirmRequired,
		verify.Decide(out.Result, verify.Interactive))
	assert.Equal(t, verify.Terminate,
		verify.Decide(out.Result, verify.Unattended))
	assert.Equal(t, verify.Proceed,
		verify.Decide(out.Result, verify.TestMode))
}

func TestFullRunMixedFailures(t *testing.T) {
	m := newMedium(t)
	require.NoError(t, m.WriteTree(mediumTree()))
	require.NoError(t, m.WriteManifest())
	require.NoError(t, m.Corrupt("pool/data-000.bin"))
	require.NoError(t, m.Remove("boot/grub/grub.cfg"))

	out := runPipeline(t, m)
	assert.Equal(t, 6, out.Result.Processed)
	require.Equal(t, 2, out.Result.Failed())

	kinds := map[string]verify.Outcome{}
	for _, f := range out.Result.Failures {
		kinds[f.Path] = f.Outcome
	}
	assert.Equal(t, verify.FileUnreadable, kinds["boot/grub/grub.cfg"])
	assert.Equal(t, verify.HashMismatch, kinds["pool/data-000.bin"])
}

func TestFullRunProgressMonotonic(t *testing.T) {
	m := newMedium(t)
	require.NoError(t, m.WriteTree(mediumTree()))
	require.NoError(t, m.WriteManifest())

	var currents []int
	var totals []int
	p := &Pipeline{
		Dir: m.Dir,
		Progress: verify.ProgressFunc(func(current, total int) {
			currents = append(currents, current)
			totals = append(totals, total)
		}),
	}
	out, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, currents, out.Result.Total)
	for i, c := range currents {
		assert.Equal(t, i+1, c)
		assert.Equal(t, out.Result.Total, totals[i])
	}
}

func TestFullRunRelayRoundTrip(t *testing.T) {
	url, events := startRelay(t)

	m := newMedium(t)
	require.NoError(t, m.WriteTree(mediumTree()))
	require.NoError(t, m.WriteManifest())
	require.NoError(t, m.Corrupt("boot/vmlinuz"))

	rep, err := relay.Dial(context.Background(), url, "")
	require.NoError(t, err)
	defer rep.Close()
	assert.Equal(t, "test", rep.CollectorVersion())

	p := &Pipeline{Dir: m.Dir, Reporter: rep}
	out, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, out.Result.Failed())

	got := drainUntilSummary(t, events)

	begin := got[0]
	assert.Equal(t, relay.EventBegin, begin.Type)
	assert.Equal(t, "md5sum.txt", begin.Manifest)
	assert.Equal(t, 6, begin.Entries)
	assert.Equal(t, out.Manifest.TotalBytes, begin.TotalBytes)

	var sawProgress bool
	var failures []*relay.Event
	for _, ev := range got {
		switch ev.Type {
		case relay.EventProgress:
			sawProgress = true
			assert.Equal(t, 6, ev.Total)
		case relay.EventFailure:
			failures = append(failures, ev)
		}
	}
	assert.True(t, sawProgress)
	require.Len(t, failures, 1)
	assert.Equal(t, "boot/vmlinuz", failures[0].Path)
	assert.Equal(t, "hash_mismatch", failures[0].Kind)
	assert.NotEmpty(t, failures[0].Detail)

	summary := got[len(got)-1]
	assert.Equal(t, 6, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "integrity_failure", summary.Status)
	assert.False(t, summary.Cancelled)
}

func TestFullRunRelayCleanSummary(t *testing.T) {
	url, events := startRelay(t)

	m := newMedium(t)
	require.NoError(t, m.WriteTree(mediumTree()))
	require.NoError(t, m.WriteManifest())

	rep, err := relay.Dial(context.Background(), url, "")
	require.NoError(t, err)
	defer rep.Close()

	p := &Pipeline{Dir: m.Dir, Reporter: rep}
	_, err = p.Run(context.Background())
	require.NoError(t, err)

	got := drainUntilSummary(t, events)
	summary := got[len(got)-1]
	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, 6, summary.Processed)
	assert.Equal(t, 0, summary.Failed)
}

func TestFullRunCancelledClean(t *testing.T) {
	m := newMedium(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, m.Write(
			fmt.Sprintf("file-%d.txt", i), []byte("content"),
		))
	}
	require.NoError(t, m.WriteManifest())

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		Dir: m.Dir,
		Progress: verify.ProgressFunc(func(current, total int) {
			if current == 3 {
				cancel()
			}
		}),
	}
	out, err := p.Run(ctx)
	require.NoError(t, err)

	assert.True(t, out.Result.Cancelled)
	assert.Equal(t, 3, out.Result.Processed)
	assert.Equal(t, 10, out.Result.Total)
	assert.Equal(t, 0, out.Result.Failed())

	// A clean cancel is the operator skipping verification.
	assert.Equal(t, verify.Proceed,
		verify.Decide(out.Result, verify.Interactive))
	assert.Equal(t, verify.Proceed,
		verify.Decide(out.Result, verify.Unattended))
}

func TestFullRunCancelledAfterFailure(t *testing.T) {
	m := newMedium(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, m.Write(
			fmt.Sprintf("file-%d.txt", i), []byte("content"),
		))
	}
	require.NoError(t, m.WriteManifest())
	require.NoError(t, m.Corrupt("file-0.txt"))

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		Dir: m.Dir,
		Progress: verify.ProgressFunc(func(current, total int) {
			if current == 2 {
				cancel()
			}
		}),
	}
	out, err := p.Run(ctx)
	require.NoError(t, err)

	assert.True(t, out.Result.Cancelled)
	require.Equal(t, 1, out.Result.Failed())

	// Failures seen before the cancel still gate the chain-load.
	assert.Equal(t, verify.ConfirmRequired,
		verify.Decide(out.Result, verify.Interactive))
	assert.Equal(t, verify.Terminate,
		verify.Decide(out.Result, verify.Unattended))
}

func TestLoaderLocateOnMedium(t *testing.T) {
	m := newMedium(t)
	require.NoError(t, m.WriteTree(mediumTree()))
	loaderRel := "efi/boot/" + strings.ToUpper(boot.LoaderName())
	require.NoError(t, m.Write(loaderRel, []byte("displaced loader")))
	require.NoError(t, m.WriteManifest())

	loader := &boot.ExecLoader{Dir: m.Dir}
	path, err := loader.Locate()
	require.NoError(t, err)
	assert.NotEmpty(t, path)
}

func TestLoaderMissingOnMedium(t *testing.T) {
	m := newMedium(t)
	require.NoError(t, m.WriteTree(mediumTree()))
	require.NoError(t, m.WriteManifest())

	loader := &boot.ExecLoader{Dir: m.Dir}
	_, err := loader.Locate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "locate loader")
}
