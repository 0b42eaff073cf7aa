package status

import (
	"fmt"
	"sync"
	"testing"

	"github.com/voltgrid/csms/core/ocpp"
)

func TestMemoryStore_SetCreatesEntry(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Set("CP1", ocpp.StatusAvailable); err != nil {
		t.Fatalf("set: %v", err)
	}
	st, ok, err := s.Get("CP1")
	if err != nil || !ok || st != ocpp.StatusAvailable {
		t.Fatalf("get: %v %v %v", st, ok, err)
	}
	if _, ok, _ := s.Get("CP2"); ok {
		t.Fatal("unknown station reported present")
	}
}

func TestMemoryStore_ConcurrentSetsKeepLastWrite(t *testing.T) {
	s := NewMemoryStore()
	const stations = 50
	var wg sync.WaitGroup
	for i := 0; i < stations; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("CP%03d", i)
			// The last write per station must win.
			_ = s.Set(id, ocpp.StatusAvailable)
			_ = s.Set(id, ocpp.StatusCharging)
		}(i)
	}
	wg.Wait()

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap) != stations {
		t.Fatalf("lost entries: %d/%d", len(snap), stations)
	}
	for id, st := range snap {
		if st != ocpp.StatusCharging {
			t.Fatalf("station %s lost its last write: %s", id, st)
		}
	}
}

func TestMemoryStore_SnapshotIsCopy(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Set("CP1", ocpp.StatusAvailable)
	snap, _ := s.Snapshot()
	snap["CP1"] = ocpp.StatusCharging
	st, _, _ := s.Get("CP1")
	if st != ocpp.StatusAvailable {
		t.Fatal("snapshot leaked internal map")
	}
}
