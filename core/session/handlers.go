package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/voltgrid/csms/core/call"
	"github.com/voltgrid/csms/core/events"
	"github.com/voltgrid/csms/core/ocpp"
)

// The handler set the dispatcher routes to. Handlers are package-level
// functions so the router can hold one mapping for every session.

// HandleBootNotification always accepts the station and hands out the
// heartbeat interval. Boot is stateless with respect to the state machine.
func HandleBootNotification(_ context.Context, s *Session, payload json.RawMessage) (any, error) {
	var req ocpp.BootNotificationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &ocpp.ValidationError{Reason: err.Error()}
	}
	s.log.Infof("station %s booted: vendor=%s model=%s", s.id, req.ChargePointVendor, req.ChargePointModel)
	return ocpp.BootNotificationResponse{
		CurrentTime: ocpp.Now(),
		Interval:    int(s.hbIval.Seconds()),
		Status:      ocpp.RegistrationAccepted,
	}, nil
}

// HandleHeartbeat replies with the current server time.
func HandleHeartbeat(_ context.Context, _ *Session, _ json.RawMessage) (any, error) {
	return ocpp.HeartbeatResponse{CurrentTime: ocpp.Now()}, nil
}

// HandleAuthorize consults the authorization policy for the tag. The state
// machine is untouched either way.
func HandleAuthorize(_ context.Context, s *Session, payload json.RawMessage) (any, error) {
	var req ocpp.AuthorizeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &ocpp.ValidationError{Reason: err.Error()}
	}
	if req.IdTag == "" {
		return nil, &ocpp.ValidationError{Field: "idTag", Reason: "required"}
	}
	return ocpp.AuthorizeResponse{
		IdTagInfo: ocpp.IdTagInfo{Status: s.authz.Authorize(req.IdTag)},
	}, nil
}

// HandleStartTransaction allocates a transaction when the station is
// Available and reports Blocked otherwise. The Charging transition itself is
// committed by AfterStartTransaction once the reply is on the wire.
func HandleStartTransaction(_ context.Context, s *Session, payload json.RawMessage) (any, error) {
	var req ocpp.StartTransactionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &ocpp.ValidationError{Reason: err.Error()}
	}
	if req.ConnectorID < 1 {
		return nil, &ocpp.ValidationError{Field: "connectorId", Reason: "must be positive"}
	}
	if req.IdTag == "" {
		return nil, &ocpp.ValidationError{Field: "idTag", Reason: "required"}
	}
	txID, st := s.prepareStart(req)
	return ocpp.StartTransactionResponse{
		IdTagInfo:     ocpp.IdTagInfo{Status: st},
		TransactionID: txID,
	}, nil
}

// AfterStartTransaction commits the staged transaction. If the handler
// rejected the request nothing was staged and this is a no-op.
func AfterStartTransaction(_ context.Context, s *Session, _ json.RawMessage) {
	s.commitStart()
}

// HandleStopTransaction accepts only the id of the active transaction. A
// mismatch is a business rejection carried in a CallResult, not a protocol
// error, and it clears no state.
func HandleStopTransaction(_ context.Context, s *Session, payload json.RawMessage) (any, error) {
	var req ocpp.StopTransactionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &ocpp.ValidationError{Reason: err.Error()}
	}
	return ocpp.StopTransactionResponse{
		IdTagInfo: ocpp.IdTagInfo{Status: s.stop(req)},
	}, nil
}

// HandleDataTransfer is the vendor passthrough; the payload is not
// interpreted here.
func HandleDataTransfer(_ context.Context, s *Session, payload json.RawMessage) (any, error) {
	var req ocpp.DataTransferRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &ocpp.ValidationError{Reason: err.Error()}
	}
	st := ocpp.DataTransferAccepted
	if req.VendorID == "" {
		st = ocpp.DataTransferRejected
	}
	s.log.Debugw("data transfer", map[string]any{
		"station":   s.id,
		"vendorId":  req.VendorID,
		"messageId": req.MessageID,
	})
	return ocpp.DataTransferResponse{Status: st}, nil
}

// AfterAuthorize asks the station to start charging once a successful
// Authorize acknowledgement is on the wire, the usual remote-start flow
// triggered by an app or backend.
func AfterAuthorize(ctx context.Context, s *Session, payload json.RawMessage) {
	var req ocpp.AuthorizeRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.IdTag == "" {
		return
	}
	if s.authz.Authorize(req.IdTag) != ocpp.AuthorizationAccepted {
		return
	}
	s.RemoteStart(ctx, req.IdTag)
}

// RemoteStart issues RemoteStartTransaction and waits for the station's
// answer. A timeout is reported and logged; the session is not torn down on
// that basis alone.
func (s *Session) RemoteStart(ctx context.Context, idTag string) {
	if s.caller == nil {
		return
	}
	raw, err := s.caller.Call(ctx, ocpp.RemoteStartTransactionAction, ocpp.RemoteStartTransactionRequest{IdTag: idTag})
	if err != nil {
		if errors.Is(err, call.ErrTimeout) {
			s.publish(events.CallTimeout{StationID: s.id, Action: ocpp.RemoteStartTransactionAction})
		}
		s.log.Errorf("station %s: remote start for tag %s: %v", s.id, idTag, err)
		return
	}
	var res ocpp.RemoteStartTransactionResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		s.log.Errorf("station %s: remote start reply: %v", s.id, err)
		return
	}
	s.log.Infof("station %s: remote start for tag %s: %s", s.id, idTag, res.Status)
}
