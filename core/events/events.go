// Package events defines the lifecycle events sessions publish on the bus.
package events

import (
	"time"

	"github.com/voltgrid/csms/core/ocpp"
)

// StationConnected is published once a session is created for a connection.
type StationConnected struct {
	StationID string
	Time      time.Time
}

// StationDisconnected is published when the connection tears down.
type StationDisconnected struct {
	StationID string
	Time      time.Time
}

// CallHandled is published for every inbound Call once its reply (CallResult
// or CallError) has been handed to the transport.
type CallHandled struct {
	StationID string
	Action    string
	UniqueID  string
	ErrorCode string // empty on success
	Latency   time.Duration
}

// TransactionStarted is published when a session commits the Charging state.
type TransactionStarted struct {
	StationID     string
	TransactionID int
	IdTag         string
	Time          time.Time
}

// TransactionStopped is published when a session returns to Available.
type TransactionStopped struct {
	StationID     string
	TransactionID int
	MeterStop     int
	Time          time.Time
}

// StatusChanged mirrors every Status Store write.
type StatusChanged struct {
	StationID string
	Status    ocpp.ChargePointStatus
	Time      time.Time
}

// CallTimeout is published when a server-initiated call goes unanswered.
type CallTimeout struct {
	StationID string
	Action    string
	UniqueID  string
}
