package relay

import (
	"encoding/json"
	"fmt"
)

// Events flow client to collector, one JSON object per text message.
type EventType string

const (
	EventBegin    EventType = "begin"
	EventProgress EventType = "progress"
	EventFailure  EventType = "failure"
	EventSummary  EventType = "summary"
)

type Event struct {
	Type EventType `json:"type"`

	Host       string `json:"host,omitempty"`
	Manifest   string `json:"manifest,omitempty"`
	Entries    int    `json:"entries,omitempty"`
	TotalBytes int64  `json:"total_bytes,omitempty"`

	Current int `json:"current,omitempty"`
	Total   int `json:"total,omitempty"`

	Ordinal int    `json:"ordinal,omitempty"`
	Path    string `json:"path,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Detail  string `json:"detail,omitempty"`

	Processed int    `json:"processed,omitempty"`
	Failed    int    `json:"failed,omitempty"`
	Status    string `json:"status,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// Replies flow collector to client.
type ReplyType string

const (
	ReplyReady ReplyType = "ready"
	ReplyError ReplyType = "error"
)

type Reply struct {
	Type    ReplyType `json:"type"`
	Version string    `json:"version,omitempty"`
	Message string    `json:"message,omitempty"`
	Fatal   bool      `json:"fatal,omitempty"`
}

func ParseEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("missing type field")
	}
	return &ev, nil
}

func ParseReply(data []byte) (*Reply, error) {
	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}
	if reply.Type == "" {
		return nil, fmt.Errorf("missing type field")
	}
	return &reply, nil
}
