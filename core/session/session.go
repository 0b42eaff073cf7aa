// Package session owns one station's live state: its status and active
// transaction. A session is created per connection and destroyed on
// disconnect; the Status Store entry it projects survives.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/voltgrid/csms/core/auth"
	"github.com/voltgrid/csms/core/events"
	"github.com/voltgrid/csms/core/logger"
	"github.com/voltgrid/csms/core/ocpp"
	"github.com/voltgrid/csms/core/status"
	"github.com/voltgrid/csms/internal/eventbus"
)

// Transaction is one charging session on a station, bounded by
// StartTransaction and StopTransaction.
type Transaction struct {
	ID          int
	StationID   string
	IdTag       string
	ConnectorID int
	MeterStart  int
	StartedAt   time.Time
}

// Snapshot is the session state, replaced as a whole on every transition so
// that Status == Charging always coincides with Transaction != nil.
type Snapshot struct {
	Status      ocpp.ChargePointStatus
	Transaction *Transaction
}

// TxCounter allocates transaction ids. One counter is shared by every session
// of a server instance, so a fresh id never equals a currently-active one.
type TxCounter struct {
	n atomic.Int64
}

// NewTxCounter returns a counter starting at zero.
func NewTxCounter() *TxCounter { return &TxCounter{} }

// Next returns the next transaction id.
func (c *TxCounter) Next() int { return int(c.n.Add(1)) }

// Config carries the collaborators a session needs.
type Config struct {
	Store             status.Store
	Authorizer        auth.Authorizer
	Bus               *eventbus.Bus
	TxIDs             *TxCounter
	Log               logger.Logger
	HeartbeatInterval time.Duration
}

// Session is owned exclusively by one connection worker; its handlers never
// run concurrently for the same station. The Status Store is the only state
// shared across sessions.
type Session struct {
	id     string
	store  status.Store
	authz  auth.Authorizer
	bus    *eventbus.Bus
	txids  *TxCounter
	log    logger.Logger
	hbIval time.Duration
	caller Caller

	mu     sync.Mutex
	snap   Snapshot
	staged *Transaction
}

// New creates a session in the Available state and projects it into the
// Status Store immediately, matching the "show all connected" use case.
func New(id string, cfg Config) *Session {
	s := &Session{
		id:     id,
		store:  cfg.Store,
		authz:  cfg.Authorizer,
		bus:    cfg.Bus,
		txids:  cfg.TxIDs,
		log:    cfg.Log,
		hbIval: cfg.HeartbeatInterval,
		snap:   Snapshot{Status: ocpp.StatusAvailable},
	}
	s.persistStatus(ocpp.StatusAvailable)
	s.publish(events.StationConnected{StationID: id, Time: time.Now()})
	return s
}

// ID returns the station id.
func (s *Session) ID() string { return s.id }

// SetCaller wires the transport used for server-initiated calls. It must be
// set before the session processes messages.
func (s *Session) SetCaller(c Caller) { s.caller = c }

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snap
	if snap.Transaction != nil {
		tx := *snap.Transaction
		snap.Transaction = &tx
	}
	return snap
}

// Close publishes the disconnect event. The Status Store entry is kept.
func (s *Session) Close() {
	s.publish(events.StationDisconnected{StationID: s.id, Time: time.Now()})
}

// prepareStart runs the StartTransaction guard. From Available it stages a
// fresh transaction that commitStart later applies; from any other state it
// reports Blocked and stages nothing.
func (s *Session) prepareStart(req ocpp.StartTransactionRequest) (int, ocpp.AuthorizationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Status != ocpp.StatusAvailable {
		s.staged = nil
		return 0, ocpp.AuthorizationBlocked
	}
	tx := &Transaction{
		ID:          s.txids.Next(),
		StationID:   s.id,
		IdTag:       req.IdTag,
		ConnectorID: req.ConnectorID,
		MeterStart:  req.MeterStart,
		StartedAt:   time.Now(),
	}
	s.staged = tx
	return tx.ID, ocpp.AuthorizationAccepted
}

// commitStart applies the staged transaction once the StartTransaction
// acknowledgement is on the wire.
func (s *Session) commitStart() {
	s.mu.Lock()
	tx := s.staged
	s.staged = nil
	if tx == nil {
		s.mu.Unlock()
		return
	}
	s.snap = Snapshot{Status: ocpp.StatusCharging, Transaction: tx}
	s.mu.Unlock()

	s.persistStatus(ocpp.StatusCharging)
	s.publish(events.TransactionStarted{
		StationID:     s.id,
		TransactionID: tx.ID,
		IdTag:         tx.IdTag,
		Time:          tx.StartedAt,
	})
}

// stop validates the transaction id. On a match the session returns to
// Available and the store is updated; on a mismatch nothing changes.
func (s *Session) stop(req ocpp.StopTransactionRequest) ocpp.AuthorizationStatus {
	s.mu.Lock()
	active := s.snap.Transaction
	if active == nil || active.ID != req.TransactionID {
		s.mu.Unlock()
		return ocpp.AuthorizationInvalid
	}
	s.snap = Snapshot{Status: ocpp.StatusAvailable}
	s.mu.Unlock()

	s.persistStatus(ocpp.StatusAvailable)
	s.publish(events.TransactionStopped{
		StationID:     s.id,
		TransactionID: active.ID,
		MeterStop:     req.MeterStop,
		Time:          time.Now(),
	})
	return ocpp.AuthorizationAccepted
}

// persistStatus writes the status projection synchronously. A failed write is
// retried with backoff and logged; the in-memory state stays authoritative.
func (s *Session) persistStatus(st ocpp.ChargePointStatus) {
	const attempts = 3
	backoff := 100 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		if err = s.store.Set(s.id, st); err == nil {
			s.publish(events.StatusChanged{StationID: s.id, Status: st, Time: time.Now()})
			return
		}
		s.log.Warnf("station %s: status write attempt %d failed: %v", s.id, i+1, err)
		time.Sleep(backoff)
		backoff *= 2
	}
	s.log.Errorf("station %s: status %s not persisted: %v", s.id, st, err)
}

func (s *Session) publish(e eventbus.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
