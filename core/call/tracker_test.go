package call

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/voltgrid/csms/core/ocpp"
)

func TestTracker_ResolveCompletesAwait(t *testing.T) {
	tr := NewTracker(time.Second)
	id := tr.NewID()
	if err := tr.Register(id); err != nil {
		t.Fatalf("register: %v", err)
	}

	go func() {
		tr.Resolve(id, Outcome{Result: &ocpp.CallResult{ID: id, Payload: json.RawMessage(`{"ok":true}`)}})
	}()

	res, err := tr.Await(context.Background(), id)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if res.ID != id {
		t.Fatalf("wrong result id: %s", res.ID)
	}
	if tr.Pending() != 0 {
		t.Fatalf("entry not removed, pending=%d", tr.Pending())
	}
}

func TestTracker_Timeout(t *testing.T) {
	tr := NewTracker(20 * time.Millisecond)
	id := tr.NewID()
	if err := tr.Register(id); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := tr.Await(context.Background(), id)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if tr.Pending() != 0 {
		t.Fatalf("entry not removed after timeout")
	}
}

func TestTracker_LateResolveIsNoop(t *testing.T) {
	tr := NewTracker(time.Second)
	if tr.Resolve("ghost", Outcome{}) {
		t.Fatal("resolve of unknown id reported true")
	}
}

func TestTracker_DuplicateRegister(t *testing.T) {
	tr := NewTracker(time.Second)
	id := tr.NewID()
	if err := tr.Register(id); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := tr.Register(id); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestTracker_NewIDAvoidsPending(t *testing.T) {
	tr := NewTracker(time.Second)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := tr.NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
		if err := tr.Register(id); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
}

func TestTracker_CloseExpiresEagerly(t *testing.T) {
	tr := NewTracker(time.Minute)
	id := tr.NewID()
	if err := tr.Register(id); err != nil {
		t.Fatalf("register: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := tr.Await(context.Background(), id)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	tr.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("await did not return after Close")
	}

	if err := tr.Register("after-close"); !errors.Is(err, ErrClosed) {
		t.Fatalf("register after close: %v", err)
	}
}

func TestTracker_ContextCancel(t *testing.T) {
	tr := NewTracker(time.Minute)
	id := tr.NewID()
	if err := tr.Register(id); err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Await(ctx, id)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if tr.Pending() != 0 {
		t.Fatalf("entry not removed after cancel")
	}
}
