// Package ws hosts the OCPP-J WebSocket endpoint: one station per
// connection, the connection path's last segment naming the station.
package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voltgrid/csms/core/logger"
	"github.com/voltgrid/csms/core/ocpp"
	"github.com/voltgrid/csms/core/router"
	"github.com/voltgrid/csms/core/session"
)

// Config holds the listener settings.
type Config struct {
	Listen      string
	CallTimeout time.Duration
}

// Server upgrades incoming connections and runs one session per station.
type Server struct {
	cfg     Config
	router  *router.Router
	codec   *ocpp.Codec
	sessCfg session.Config
	log     logger.Logger

	upgrader websocket.Upgrader

	ctx context.Context
}

// NewServer builds the endpoint. The codec is derived from the router's
// registered action set.
func NewServer(cfg Config, r *router.Router, sessCfg session.Config, log logger.Logger) *Server {
	return &Server{
		cfg:     cfg,
		router:  r,
		codec:   ocpp.NewCodec(r.Actions()),
		sessCfg: sessCfg,
		log:     log,
		upgrader: websocket.Upgrader{
			Subprotocols:    ocpp.Subprotocols(),
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ctx: context.Background(),
	}
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.ctx = ctx
	srv := &http.Server{Addr: s.cfg.Listen, Handler: s}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("ws server shutdown: %v", err)
		}
	}()
	s.log.Infof("listening on %s", s.cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ServeHTTP upgrades one station connection. A client that does not offer the
// ocpp1.6 subprotocol is closed immediately, before any session exists.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.log.Warnf("upgrade from %s failed: %v", req.RemoteAddr, err)
		return
	}
	if wsConn.Subprotocol() != ocpp.Subprotocol {
		s.log.Warnf("closing %s: subprotocol mismatch, want %q", req.RemoteAddr, ocpp.Subprotocol)
		_ = wsConn.Close()
		return
	}

	stationID := stationIDFromPath(req.URL.Path)
	if stationID == "" {
		s.log.Warnf("closing %s: no station id in path %q", req.RemoteAddr, req.URL.Path)
		_ = wsConn.Close()
		return
	}

	s.log.Infof("station %s connected from %s", stationID, req.RemoteAddr)
	connLog := s.log
	if f, ok := s.log.(interface{ WithStation(string) logger.Logger }); ok {
		connLog = f.WithStation(stationID)
	}
	c := newConn(wsConn, stationID, s.codec, s.router, s.sessCfg, s.cfg.CallTimeout, connLog)
	c.run(s.ctx)
}

func stationIDFromPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	return parts[len(parts)-1]
}
