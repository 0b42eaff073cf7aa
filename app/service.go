package app

import (
	"context"
	"fmt"
	"time"

	"github.com/voltgrid/csms/config"
	"github.com/voltgrid/csms/core/auth"
	"github.com/voltgrid/csms/core/events"
	coremetrics "github.com/voltgrid/csms/core/metrics"
	"github.com/voltgrid/csms/core/ocpp"
	"github.com/voltgrid/csms/core/router"
	"github.com/voltgrid/csms/core/session"
	"github.com/voltgrid/csms/core/status"
	"github.com/voltgrid/csms/infra/logger"
	"github.com/voltgrid/csms/infra/metrics"
	"github.com/voltgrid/csms/infra/store"
	"github.com/voltgrid/csms/infra/ws"
	"github.com/voltgrid/csms/internal/eventbus"
)

// Service wires the endpoint, the dispatcher and the observability plumbing.
type Service struct {
	server      *ws.Server
	bus         *eventbus.Bus
	sink        coremetrics.Sink
	store       status.Store
	log         logger.Logger
	promEnabled bool
	promPort    string
	closers     []func() error
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	st, closer, err := buildStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("status store: %w", err)
	}

	var authorizer auth.Authorizer = auth.AllowAll{}
	if cfg.Auth.Mode == "allowlist" {
		authorizer = auth.NewAllowlist(cfg.Auth.Tags)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.Sink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	r := router.New(logger.New("router"))
	r.Handle(ocpp.BootNotificationAction, session.HandleBootNotification)
	r.Handle(ocpp.HeartbeatAction, session.HandleHeartbeat)
	r.Handle(ocpp.AuthorizeAction, session.HandleAuthorize)
	r.Handle(ocpp.StartTransactionAction, session.HandleStartTransaction)
	r.Handle(ocpp.StopTransactionAction, session.HandleStopTransaction)
	r.Handle(ocpp.DataTransferAction, session.HandleDataTransfer)
	r.After(ocpp.AuthorizeAction, session.AfterAuthorize)
	r.After(ocpp.StartTransactionAction, session.AfterStartTransaction)

	sessCfg := session.Config{
		Store:             st,
		Authorizer:        authorizer,
		Bus:               bus,
		TxIDs:             session.NewTxCounter(),
		Log:               logger.New("session"),
		HeartbeatInterval: time.Duration(cfg.Server.HeartbeatIntervalSeconds) * time.Second,
	}
	srv := ws.NewServer(ws.Config{
		Listen:      cfg.Server.Listen,
		CallTimeout: time.Duration(cfg.Server.CallTimeoutSeconds) * time.Second,
	}, r, sessCfg, logger.New("ws"))

	svc := &Service{
		server:      srv,
		bus:         bus,
		sink:        sink,
		store:       st,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}
	if closer != nil {
		svc.closers = append(svc.closers, closer)
	}
	return svc, nil
}

func buildStore(cfg config.StoreConfig) (status.Store, func() error, error) {
	switch cfg.Backend {
	case "sqlite":
		st, err := store.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return status.NewMemoryStore(), nil, nil
	}
}

// Run starts the endpoint and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.forwardEvents(ctx)
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	return s.server.Run(ctx)
}

// forwardEvents drains the session bus into the metrics sink.
func (s *Service) forwardEvents(ctx context.Context) {
	sub := s.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			s.bus.Unsubscribe(sub)
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			s.record(ev)
		}
	}
}

func (s *Service) record(ev eventbus.Event) {
	var err error
	switch e := ev.(type) {
	case events.CallHandled:
		err = s.sink.RecordCall(coremetrics.CallEvent{
			StationID: e.StationID,
			Action:    e.Action,
			UniqueID:  e.UniqueID,
			ErrorCode: e.ErrorCode,
			Latency:   e.Latency,
			Time:      time.Now(),
		})
	case events.TransactionStarted:
		err = s.sink.RecordTransaction(coremetrics.TransactionEvent{
			StationID:     e.StationID,
			TransactionID: e.TransactionID,
			Started:       true,
			Time:          e.Time,
		})
	case events.TransactionStopped:
		err = s.sink.RecordTransaction(coremetrics.TransactionEvent{
			StationID:     e.StationID,
			TransactionID: e.TransactionID,
			Time:          e.Time,
		})
	case events.StationConnected:
		err = s.sink.RecordConnection(coremetrics.ConnectionEvent{StationID: e.StationID, Connected: true, Time: e.Time})
	case events.StationDisconnected:
		err = s.sink.RecordConnection(coremetrics.ConnectionEvent{StationID: e.StationID, Time: e.Time})
	case events.StatusChanged:
		err = s.sink.RecordStatus(coremetrics.StatusEvent{StationID: e.StationID, Status: e.Status, Time: e.Time})
	}
	if err != nil {
		s.log.Warnf("metrics record: %v", err)
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	for _, c := range s.closers {
		if err := c(); err != nil {
			return err
		}
	}
	return nil
}
