// Package status holds the system-of-record mapping from station id to its
// last-known status. Dashboards and billing read it; sessions write it.
package status

import (
	"sync"

	"github.com/voltgrid/csms/core/ocpp"
)

// Store is the durable station-status mapping. Set is atomic with respect to
// concurrent Set calls for any station and with respect to Snapshot: no
// reader ever observes a torn write. Disconnects do not remove entries; the
// store keeps last-known status.
type Store interface {
	Set(stationID string, st ocpp.ChargePointStatus) error
	Get(stationID string) (ocpp.ChargePointStatus, bool, error)
	Snapshot() (map[string]ocpp.ChargePointStatus, error)
}

// MemoryStore is the mutex-guarded in-memory implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]ocpp.ChargePointStatus
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]ocpp.ChargePointStatus{}}
}

// Set records the status, creating the entry for an unknown station.
func (s *MemoryStore) Set(stationID string, st ocpp.ChargePointStatus) error {
	s.mu.Lock()
	s.data[stationID] = st
	s.mu.Unlock()
	return nil
}

// Get returns the current status for a station.
func (s *MemoryStore) Get(stationID string) (ocpp.ChargePointStatus, bool, error) {
	s.mu.RLock()
	st, ok := s.data[stationID]
	s.mu.RUnlock()
	return st, ok, nil
}

// Snapshot returns a copy of the full mapping.
func (s *MemoryStore) Snapshot() (map[string]ocpp.ChargePointStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ocpp.ChargePointStatus, len(s.data))
	for id, st := range s.data {
		out[id] = st
	}
	return out, nil
}
