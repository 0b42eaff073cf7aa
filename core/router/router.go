// Package router maps inbound Call actions to their handlers and turns the
// handler outcome into the CallResult or CallError sent back to the station.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/voltgrid/csms/core/logger"
	"github.com/voltgrid/csms/core/ocpp"
	"github.com/voltgrid/csms/core/session"
)

// Handler processes one inbound Call for a session and returns the response
// payload or a typed failure. A *ocpp.ValidationError becomes
// CallError(FormationViolation); any other error becomes
// CallError(InternalError).
type Handler func(ctx context.Context, s *session.Session, payload json.RawMessage) (any, error)

// AfterHook runs synchronously once the primary reply has been handed to the
// transport, with the same session and the original request payload. Used for
// side effects that must only happen after the acknowledgement is on the
// wire.
type AfterHook func(ctx context.Context, s *session.Session, payload json.RawMessage)

// Router is the explicit action-to-handler mapping, built once at startup.
type Router struct {
	handlers map[string]Handler
	after    map[string][]AfterHook
	log      logger.Logger
}

// New creates an empty Router.
func New(log logger.Logger) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		after:    make(map[string][]AfterHook),
		log:      log,
	}
}

// Handle registers the handler for an action, replacing any previous one.
func (r *Router) Handle(action string, h Handler) {
	r.handlers[action] = h
}

// After appends an after-hook for an action.
func (r *Router) After(action string, hook AfterHook) {
	r.after[action] = append(r.after[action], hook)
}

// Actions returns the registered action names; the envelope codec is built
// from this set.
func (r *Router) Actions() []string {
	out := make([]string, 0, len(r.handlers))
	for a := range r.handlers {
		out = append(out, a)
	}
	return out
}

// Dispatch processes one inbound Call: it resolves the handler, hands the
// reply to send, and then runs the action's after-hooks synchronously. The
// returned message is the reply that was sent.
func (r *Router) Dispatch(ctx context.Context, s *session.Session, c *ocpp.Call, send func(ocpp.Message) error) (ocpp.Message, error) {
	h, ok := r.handlers[c.Action]
	if !ok {
		reply := &ocpp.CallError{
			ID:          c.ID,
			ErrorCode:   ocpp.ErrCodeNotImplemented,
			Description: fmt.Sprintf("action %q is not supported", c.Action),
		}
		return reply, send(reply)
	}

	reply := r.invoke(ctx, s, c, h)
	if err := send(reply); err != nil {
		return reply, err
	}
	for _, hook := range r.after[c.Action] {
		hook(ctx, s, c.Payload)
	}
	return reply, nil
}

func (r *Router) invoke(ctx context.Context, s *session.Session, c *ocpp.Call, h Handler) ocpp.Message {
	result, err := h(ctx, s, c.Payload)
	if err != nil {
		r.log.Warnf("station %s: %s call %s failed: %v", s.ID(), c.Action, c.ID, err)
		return errorReply(c.ID, err)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		r.log.Errorf("station %s: encode %s result %s: %v", s.ID(), c.Action, c.ID, err)
		return &ocpp.CallError{
			ID:          c.ID,
			ErrorCode:   ocpp.ErrCodeInternalError,
			Description: "response encoding failed",
		}
	}
	return &ocpp.CallResult{ID: c.ID, Payload: payload}
}

func errorReply(id string, err error) *ocpp.CallError {
	var verr *ocpp.ValidationError
	if errors.As(err, &verr) {
		return &ocpp.CallError{
			ID:          id,
			ErrorCode:   ocpp.ErrCodeFormationViolation,
			Description: verr.Error(),
		}
	}
	return &ocpp.CallError{
		ID:          id,
		ErrorCode:   ocpp.ErrCodeInternalError,
		Description: err.Error(),
	}
}
