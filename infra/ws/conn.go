package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voltgrid/csms/core/call"
	"github.com/voltgrid/csms/core/events"
	"github.com/voltgrid/csms/core/logger"
	"github.com/voltgrid/csms/core/ocpp"
	"github.com/voltgrid/csms/core/router"
	"github.com/voltgrid/csms/core/session"
	"github.com/voltgrid/csms/internal/eventbus"
)

// conn pumps one station connection. The reader goroutine decodes frames and
// routes replies to the tracker; the worker drains inbound calls strictly in
// arrival order, so no two handlers for the same station ever run
// concurrently while an awaited reply can still come in.
type conn struct {
	ws      *websocket.Conn
	sess    *session.Session
	tracker *call.Tracker
	codec   *ocpp.Codec
	router  *router.Router
	log     logger.Logger
	bus     *eventbus.Bus

	writeMu sync.Mutex
	queue   *callQueue
}

func newConn(ws *websocket.Conn, stationID string, codec *ocpp.Codec, r *router.Router, sessCfg session.Config, callTimeout time.Duration, log logger.Logger) *conn {
	c := &conn{
		ws:      ws,
		tracker: call.NewTracker(callTimeout),
		codec:   codec,
		router:  r,
		log:     log,
		queue:   newCallQueue(),
		bus:     sessCfg.Bus,
	}
	c.sess = session.New(stationID, sessCfg)
	c.sess.SetCaller(c)
	return c
}

// run blocks until the connection closes. The tracker is closed before the
// worker is waited out: an after-hook suspended in Await must fail
// immediately on disconnect, not hold teardown for the call timeout. The
// Status Store keeps the last-known status.
func (c *conn) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.work(ctx)
	}()

	c.read(ctx)

	cancel()
	c.tracker.Close()
	c.queue.close()
	wg.Wait()
	c.sess.Close()
	_ = c.ws.Close()
	c.log.Infof("station %s disconnected", c.sess.ID())
}

// read decodes frames until the connection fails or a malformed frame forces
// closure. Correlation state can be inconsistent after a malformed frame, so
// those are not recoverable per-message.
func (c *conn) read(ctx context.Context) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debugf("read: %v", err)
			}
			return
		}
		msg, err := c.codec.Decode(data)
		if err != nil {
			var unknown *ocpp.UnknownActionError
			if errors.As(err, &unknown) {
				c.log.Warnf("call %s: unknown action %q", unknown.ID, unknown.Action)
				_ = c.send(&ocpp.CallError{
					ID:          unknown.ID,
					ErrorCode:   ocpp.ErrCodeNotImplemented,
					Description: "action " + unknown.Action + " is not supported",
				})
				continue
			}
			c.log.Errorf("closing connection: %v", err)
			return
		}
		switch m := msg.(type) {
		case *ocpp.Call:
			c.queue.push(m)
		case *ocpp.CallResult:
			if !c.tracker.Resolve(m.ID, call.Outcome{Result: m}) {
				c.log.Warnf("late or duplicate result %s", m.ID)
			}
		case *ocpp.CallError:
			out := call.Outcome{Err: &call.RemoteError{Code: m.ErrorCode, Description: m.Description}}
			if !c.tracker.Resolve(m.ID, out) {
				c.log.Warnf("late or duplicate error %s", m.ID)
			}
		}
	}
}

// work processes queued inbound calls one at a time, in arrival order. A
// handler for message N, including its after-hooks, completes before message
// N+1 begins.
func (c *conn) work(ctx context.Context) {
	for {
		inbound, ok := c.queue.pop(ctx)
		if !ok {
			return
		}
		start := time.Now()
		reply, err := c.router.Dispatch(ctx, c.sess, inbound, c.send)
		if err != nil {
			c.log.Errorf("reply to %s %s: %v", inbound.Action, inbound.ID, err)
		}
		if c.bus != nil {
			ev := events.CallHandled{
				StationID: c.sess.ID(),
				Action:    inbound.Action,
				UniqueID:  inbound.ID,
				Latency:   time.Since(start),
			}
			if ce, ok := reply.(*ocpp.CallError); ok {
				ev.ErrorCode = ce.ErrorCode
			}
			c.bus.Publish(ev)
		}
	}
}

// send encodes and writes one message; writes are serialized so worker
// replies and server-initiated calls never interleave on the wire.
func (c *conn) send(msg ocpp.Message) error {
	data, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Call implements session.Caller: it registers the unique id before writing
// so a fast reply cannot race the registration, then suspends the issuing
// worker until resolution. Other stations' tasks are unaffected.
func (c *conn) Call(ctx context.Context, action string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	id := c.tracker.NewID()
	if err := c.tracker.Register(id); err != nil {
		return nil, err
	}
	if err := c.send(&ocpp.Call{ID: id, Action: action, Payload: body}); err != nil {
		c.tracker.Resolve(id, call.Outcome{Err: err})
		return nil, err
	}
	res, err := c.tracker.Await(ctx, id)
	if err != nil {
		return nil, err
	}
	return res.Payload, nil
}
