package session

import (
	"context"
	"encoding/json"
)

// Caller issues a server-initiated Call to the session's station and blocks
// until its CallResult arrives, the reply times out or the connection closes.
// Implemented by the WebSocket connection through the pending-call tracker.
type Caller interface {
	Call(ctx context.Context, action string, payload any) (json.RawMessage, error)
}
