// Package metrics defines the sink interface observability backends
// implement. Events originate on the session bus; the app forwards them here.
package metrics

import (
	"time"

	"github.com/voltgrid/csms/core/ocpp"
)

// Config selects the enabled sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// CallEvent records one handled inbound Call.
type CallEvent struct {
	StationID string
	Action    string
	UniqueID  string
	ErrorCode string // empty when the reply was a CallResult
	Latency   time.Duration
	Time      time.Time
}

// TransactionEvent records a transaction starting or stopping.
type TransactionEvent struct {
	StationID     string
	TransactionID int
	Started       bool
	Time          time.Time
}

// ConnectionEvent records a station connecting or disconnecting.
type ConnectionEvent struct {
	StationID string
	Connected bool
	Time      time.Time
}

// StatusEvent mirrors a Status Store write.
type StatusEvent struct {
	StationID string
	Status    ocpp.ChargePointStatus
	Time      time.Time
}

// Sink records protocol and lifecycle events for observability purposes.
type Sink interface {
	RecordCall(ev CallEvent) error
	RecordTransaction(ev TransactionEvent) error
	RecordConnection(ev ConnectionEvent) error
	RecordStatus(ev StatusEvent) error
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) RecordCall(CallEvent) error               { return nil }
func (NopSink) RecordTransaction(TransactionEvent) error { return nil }
func (NopSink) RecordConnection(ConnectionEvent) error   { return nil }
func (NopSink) RecordStatus(StatusEvent) error           { return nil }
