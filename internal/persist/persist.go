// Package persist serializes session transcripts. It is a passive
// collaborator: callers decide when to snapshot and where the bytes
// live.
package persist

import (
	"encoding/json"
	"fmt"

	"github.com/chataigne-ai/chataigne/internal/message"
)

// snapshotVersion guards the envelope against future format changes.
const snapshotVersion = 1

type envelope struct {
	Version  int               `json:"version"`
	Messages []message.Message `json:"messages"`
}

// Snapshot encodes the full history.
func Snapshot(h *message.History) ([]byte, error) {
	env := envelope{Version: snapshotVersion, Messages: h.View()}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("snapshot history: %w", err)
	}
	return data, nil
}

// Restore decodes a snapshot produced by Snapshot.
func Restore(data []byte) (*message.History, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("restore history: %w", err)
	}
	if env.Version != snapshotVersion {
		return nil, fmt.Errorf("restore history: unsupported snapshot version %d", env.Version)
	}
	return message.NewHistory(env.Messages...), nil
}
