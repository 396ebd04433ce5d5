package ws

import (
	"context"
	"encoding/json"
	"time"
)

// Event types pushed to clients.
const (
	TypeSessionInvalidated = "session.invalidated"
	TypeSessionOptimized   = "session.optimized"
)

// SessionPayload identifies the session an event refers to. Clients
// holding that session refresh their view and staleness badge.
type SessionPayload struct {
	SessionKey  string    `json:"session_key"`
	OptimizedAt time.Time `json:"optimized_at,omitempty"`
}

// BroadcastSession marshals and broadcasts a session event.
func (h *Hub) BroadcastSession(ctx context.Context, eventType string, p SessionPayload) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	h.Broadcast(ctx, Message{Type: eventType, Payload: data})
}
