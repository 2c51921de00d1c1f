package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/bootsum/bootsum/pkg/verify"
)

const (
	dialTimeout  = 5 * time.Second
	readyTimeout = 5 * time.Second
	sendTimeout  = 2 * time.Second

	// progressInterval caps unconditional progress sends; in between,
	// only a whole-percent change goes out.
	progressInterval = time.Second
)

// Reporter streams verification events to a collector. Every send is
// best effort: the first failure disables the reporter and the run
// carries on without telemetry.
type Reporter struct {
	conn    *websocket.Conn
	ctx     context.Context
	version string

	mu          sync.Mutex
	broken      bool
	lastPercent int
	lastSent    time.Time
}

// Dial connects and waits for the collector's ready reply.
func Dial(ctx context.Context, rawURL, token string) (*Reporter, error) {
	opts := &websocket.DialOptions{}
	if token != "" {
		opts.HTTPHeader = http.Header{
			"Authorization": []string{"Bearer " + token},
		}
	}

	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dctx, httpToWS(rawURL), opts)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	rctx, rcancel := context.WithTimeout(ctx, readyTimeout)
	defer rcancel()
	_, data, err := conn.Read(rctx)
	if err != nil {
		conn.Close(websocket.StatusProtocolError, "no ready")
		return nil, fmt.Errorf("relay handshake: %w", err)
	}
	reply, err := ParseReply(data)
	if err != nil {
		conn.Close(websocket.StatusProtocolError, "bad ready")
		return nil, fmt.Errorf("relay handshake: %w", err)
	}
	if reply.Type != ReplyReady {
		conn.Close(websocket.StatusProtocolError, "bad ready")
		return nil, fmt.Errorf("expected ready, got %s: %s", reply.Type, reply.Message)
	}

	return &Reporter{
		conn:        conn,
		ctx:         ctx,
		version:     reply.Version,
		lastPercent: -1,
	}, nil
}

func (r *Reporter) CollectorVersion() string {
	return r.version
}

func (r *Reporter) Begin(host, manifestName string, entries int, totalBytes int64) {
	r.send(Event{
		Type:       EventBegin,
		Host:       host,
		Manifest:   manifestName,
		Entries:    entries,
		TotalBytes: totalBytes,
	})
}

func (r *Reporter) Progress(current, total int) {
	percent := 100
	if total > 0 {
		percent = current * 100 / total
	}

	r.mu.Lock()
	due := percent != r.lastPercent ||
		time.Since(r.lastSent) >= progressInterval ||
		current == total
	if due {
		r.lastPercent = percent
		r.lastSent = time.Now()
	}
	r.mu.Unlock()
	if !due {
		return
	}

	r.send(Event{Type: EventProgress, Current: current, Total: total})
}

func (r *Reporter) Failure(f verify.Failure) {
	detail := ""
	if f.Err != nil {
		detail = f.Err.Error()
	}
	r.send(Event{
		Type:    EventFailure,
		Ordinal: f.Ordinal,
		Path:    f.Path,
		Kind:    f.Outcome.String(),
		Detail:  detail,
	})
}

func (r *Reporter) Summary(res verify.RunResult) {
	r.send(Event{
		Type:      EventSummary,
		Processed: res.Processed,
		Total:     res.Total,
		Failed:    res.Failed(),
		Status:    res.Status.String(),
		Cancelled: res.Cancelled,
	})
}

// ProgressSink adapts the reporter for the verifier.
func (r *Reporter) ProgressSink() verify.ProgressSink {
	return verify.ProgressFunc(r.Progress)
}

func (r *Reporter) FailureSink() verify.FailureSink {
	return verify.FailureFunc(r.Failure)
}

func (r *Reporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broken {
		return nil
	}
	return r.conn.Close(websocket.StatusNormalClosure, "")
}

func (r *Reporter) send(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broken {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(r.ctx, sendTimeout)
	defer cancel()
	if err := r.conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Warn("relay send failed, disabling telemetry", "err", err)
		r.broken = true
		r.conn.Close(websocket.StatusInternalError, "send failed")
	}
}

func httpToWS(u string) string {
	if rest, ok := strings.CutPrefix(u, "https://"); ok {
		return "wss://" + rest
	}
	if rest, ok := strings.CutPrefix(u, "http://"); ok {
		return "ws://" + rest
	}
	return u
}
