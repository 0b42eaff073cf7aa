package metrics

import coremetrics "github.com/voltgrid/csms/core/metrics"

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCall forwards to all sinks, returning the first error encountered.
func (m *MultiSink) RecordCall(ev coremetrics.CallEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordCall(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransaction forwards transaction events.
func (m *MultiSink) RecordTransaction(ev coremetrics.TransactionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordTransaction(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordConnection forwards connection events.
func (m *MultiSink) RecordConnection(ev coremetrics.ConnectionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordConnection(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordStatus forwards status events.
func (m *MultiSink) RecordStatus(ev coremetrics.StatusEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordStatus(ev); err != nil {
			return err
		}
	}
	return nil
}
