// Package call correlates server-initiated Calls with the CallResult or
// CallError a station eventually sends back.
package call

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltgrid/csms/core/ocpp"
)

// DefaultTimeout bounds how long an outbound call may stay unanswered.
const DefaultTimeout = 30 * time.Second

var (
	// ErrTimeout is returned when no reply arrives before the timeout.
	ErrTimeout = errors.New("timeout waiting for call result")
	// ErrClosed is returned for entries pending when the tracker shuts down.
	ErrClosed = errors.New("call tracker closed")
	// ErrDuplicateID rejects registering an id that is already pending.
	ErrDuplicateID = errors.New("unique id already pending")
)

// Outcome carries the reply for one outbound call. Exactly one of Result and
// Err is set; a CallError from the station arrives as Err.
type Outcome struct {
	Result *ocpp.CallResult
	Err    error
}

// RemoteError is the station's CallError surfaced to the issuing logic.
type RemoteError struct {
	Code        string
	Description string
}

func (e *RemoteError) Error() string {
	return "call error from station: " + e.Code + ": " + e.Description
}

// Tracker holds the pending entries of one connection. All methods are safe
// for concurrent use; the reader goroutine resolves while session workers
// await.
type Tracker struct {
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan Outcome
	closed  bool
}

// NewTracker creates a tracker with the given reply timeout. A zero or
// negative timeout falls back to DefaultTimeout.
func NewTracker(timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{timeout: timeout, pending: make(map[string]chan Outcome)}
}

// NewID returns a unique id that is not currently pending. A fresh uuid is
// drawn until it misses the pending set, so an issued Call can never be
// confused with an outstanding one.
func (t *Tracker) NewID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		id := uuid.NewString()
		if _, exists := t.pending[id]; !exists {
			return id
		}
	}
}

// Register creates the pending entry for id. It must be called before the
// Call is written to the wire so a fast reply cannot race the registration.
func (t *Tracker) Register(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if _, exists := t.pending[id]; exists {
		return ErrDuplicateID
	}
	t.pending[id] = make(chan Outcome, 1)
	return nil
}

// Resolve completes the pending entry for id. A late or duplicate reply finds
// no entry and reports false; the caller logs it, it is never fatal.
func (t *Tracker) Resolve(id string, out Outcome) bool {
	t.mu.Lock()
	ch, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	ch <- out
	return true
}

// Await blocks until the entry for id resolves, the context is cancelled or
// the timeout fires. The entry is removed on every exit path.
func (t *Tracker) Await(ctx context.Context, id string) (*ocpp.CallResult, error) {
	t.mu.Lock()
	ch, ok := t.pending[id]
	t.mu.Unlock()
	if !ok {
		return nil, errors.New("unknown call id")
	}

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()
	select {
	case out := <-ch:
		if out.Err != nil {
			return nil, out.Err
		}
		return out.Result, nil
	case <-timer.C:
		t.remove(id)
		return nil, ErrTimeout
	case <-ctx.Done():
		t.remove(id)
		return nil, ctx.Err()
	}
}

// Pending reports the number of outstanding entries.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close eagerly fails every pending entry. Used on connection teardown so
// awaiting callers do not sit out the full timeout.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	for id, ch := range t.pending {
		delete(t.pending, id)
		ch <- Outcome{Err: ErrClosed}
	}
	t.mu.Unlock()
}

func (t *Tracker) remove(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}
