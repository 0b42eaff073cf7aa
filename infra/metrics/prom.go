package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/voltgrid/csms/core/metrics"
)

// PromSink records protocol events in Prometheus metrics.
type PromSink struct {
	calls    *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	stations prometheus.Gauge
	active   prometheus.Gauge
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The Prometheus server is started separately on cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_calls_total",
		Help: "Total number of inbound calls handled",
	}, []string{"station_id", "action"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_call_errors_total",
		Help: "Total number of CallError replies sent",
	}, []string{"station_id", "action", "error_code"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ocpp_call_duration_seconds",
		Help:    "Time between call arrival and reply write",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})
	stations := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ocpp_connected_stations",
		Help: "Number of stations currently connected",
	})
	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ocpp_active_transactions",
		Help: "Number of transactions currently charging",
	})

	s := &PromSink{calls: calls, errors: errs, latency: latency, stations: stations, active: active}
	for _, c := range []prometheus.Collector{calls, errs, latency, stations, active} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordCall increments the call counters and observes latency.
func (s *PromSink) RecordCall(ev coremetrics.CallEvent) error {
	s.calls.WithLabelValues(ev.StationID, ev.Action).Inc()
	if ev.ErrorCode != "" {
		s.errors.WithLabelValues(ev.StationID, ev.Action, ev.ErrorCode).Inc()
	}
	s.latency.WithLabelValues(ev.Action).Observe(ev.Latency.Seconds())
	return nil
}

// RecordTransaction moves the active-transactions gauge.
func (s *PromSink) RecordTransaction(ev coremetrics.TransactionEvent) error {
	if ev.Started {
		s.active.Inc()
	} else {
		s.active.Dec()
	}
	return nil
}

// RecordConnection moves the connected-stations gauge.
func (s *PromSink) RecordConnection(ev coremetrics.ConnectionEvent) error {
	if ev.Connected {
		s.stations.Inc()
	} else {
		s.stations.Dec()
	}
	return nil
}

// RecordStatus is a no-op for Prometheus; status is visible via the gauges.
func (s *PromSink) RecordStatus(coremetrics.StatusEvent) error { return nil }
