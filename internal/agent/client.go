// Package agent is the client for the remote agent runtime: the external
// LLM-orchestration service that owns conversational sessions and yields
// event streams for queries. The runtime is opaque; this package only speaks
// its session/query wire protocol.
package agent

import (
	"context"
	"encoding/json"
)

// SessionInfo is the runtime's stored view of one session.
type SessionInfo struct {
	ID     string            `json:"id"`
	Events []json.RawMessage `json:"events"`
}

// Client is the remote agent capability consumed by the chat service.
// Implementations must be safe for concurrent use.
type Client interface {
	// CreateSession asks the runtime for a new session owned by userID and
	// returns the runtime-issued opaque session id.
	CreateSession(ctx context.Context, userID string) (string, error)

	// StreamQuery sends one user message into a session and returns the
	// ordered event stream. Both channels close when the stream ends; at
	// most one error is sent.
	StreamQuery(ctx context.Context, userID, sessionID, message string) (<-chan json.RawMessage, <-chan error)

	// GetSession fetches a session's full stored event log.
	GetSession(ctx context.Context, userID, sessionID string) (*SessionInfo, error)

	// DeleteSession removes the remote session.
	DeleteSession(ctx context.Context, userID, sessionID string) error
}
