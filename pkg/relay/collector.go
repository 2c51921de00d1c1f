package relay

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/coder/websocket"
)

// Collector ingests verification event streams. It serves as the
// relay daemon's handler and dials cleanly from httptest servers.
type Collector struct {
	// Token, when set, is required as a bearer credential.
	Token string

	// Dir, when set, receives one JSONL file per session.
	Dir string

	// OnEvent, when set, observes every decoded event.
	OnEvent func(*Event)

	Version string
}

func (c *Collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if c.Token != "" {
		if r.Header.Get("Authorization") != "Bearer "+c.Token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(
		w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		},
	)
	if err != nil {
		slog.Warn("websocket accept failed", "err", err)
		return
	}
	conn.SetReadLimit(1 << 20)

	c.serve(r.Context(), conn, r.RemoteAddr)
}

func (c *Collector) serve(ctx context.Context, conn *websocket.Conn, remote string) {
	defer conn.Close(websocket.StatusInternalError, "")

	version := c.Version
	if version == "" {
		version = "dev"
	}
	ready, _ := json.Marshal(Reply{Type: ReplyReady, Version: version})
	if err := conn.Write(ctx, websocket.MessageText, ready); err != nil {
		return
	}

	var logFile *os.File
	if c.Dir != "" {
		path := filepath.Join(c.Dir, sessionFileName())
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			slog.Warn("session log open failed", "path", path, "err", err)
		} else {
			logFile = f
			defer logFile.Close()
		}
	}

	slog.Info("relay session opened", "remote", remote)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			slog.Info("relay session closed", "remote", remote)
			return
		}

		ev, err := ParseEvent(data)
		if err != nil {
			slog.Warn("bad relay event", "remote", remote, "err", err)
			msg, _ := json.Marshal(Reply{
				Type:    ReplyError,
				Message: err.Error(),
			})
			conn.Write(ctx, websocket.MessageText, msg)
			continue
		}

		c.logEvent(remote, ev)
		if logFile != nil {
			logFile.Write(append(data, '\n'))
		}
		if c.OnEvent != nil {
			c.OnEvent(ev)
		}
	}
}

func (c *Collector) logEvent(remote string, ev *Event) {
	switch ev.Type {
	case EventBegin:
		slog.Info("verification started",
			"remote", remote,
			"host", ev.Host,
			"manifest", ev.Manifest,
			"entries", ev.Entries,
			"total_bytes", ev.TotalBytes,
		)
	case EventProgress:
		slog.Debug("progress",
			"remote", remote,
			"current", ev.Current,
			"total", ev.Total,
		)
	case EventFailure:
		slog.Warn("entry failed",
			"remote", remote,
			"ordinal", ev.Ordinal,
			"path", ev.Path,
			"kind", ev.Kind,
			"detail", ev.Detail,
		)
	case EventSummary:
		slog.Info("verification finished",
			"remote", remote,
			"processed", ev.Processed,
			"total", ev.Total,
			"failed", ev.Failed,
			"status", ev.Status,
			"cancelled", ev.Cancelled,
		)
	default:
		slog.Info("relay event", "remote", remote, "type", string(ev.Type))
	}
}

func sessionFileName() string {
	var b [8]byte
	rand.Read(b[:])
	return fmt.Sprintf("run-%s.jsonl", hex.EncodeToString(b[:]))
}
