package ocpp

import "fmt"

// CallError codes returned to stations.
const (
	ErrCodeNotImplemented     = "NotImplemented"
	ErrCodeFormationViolation = "FormationViolation"
	ErrCodeInternalError      = "InternalError"
	ErrCodeProtocolError      = "ProtocolError"
)

// MalformedFrameError reports a structurally invalid frame. The connection
// cannot recover from it because correlation state may be inconsistent.
type MalformedFrameError struct {
	Reason string
}

func (e *MalformedFrameError) Error() string {
	return "malformed frame: " + e.Reason
}

// UnknownActionError reports a Call naming an unregistered action. The caller
// is expected to answer with CallError(NotImplemented) and keep the
// connection open.
type UnknownActionError struct {
	ID     string
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q (call %s)", e.Action, e.ID)
}

// ValidationError marks a handler failure caused by the request contents.
// The dispatcher maps it to CallError(FormationViolation); any other handler
// error becomes CallError(InternalError).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: field %s: %s", e.Field, e.Reason)
}
