package ocpp

import (
	"encoding/json"
	"fmt"
)

// OCPP-J message type discriminators.
const (
	CallCode       = 2
	CallResultCode = 3
	CallErrorCode  = 4
)

// Message is one of Call, CallResult or CallError.
type Message interface {
	UniqueID() string
	Code() int
}

// Call is a request: [2, "<uniqueId>", "<Action>", {payload}].
type Call struct {
	ID      string
	Action  string
	Payload json.RawMessage
}

func (c *Call) UniqueID() string { return c.ID }
func (c *Call) Code() int        { return CallCode }

// CallResult is a success reply: [3, "<uniqueId>", {payload}].
type CallResult struct {
	ID      string
	Payload json.RawMessage
}

func (c *CallResult) UniqueID() string { return c.ID }
func (c *CallResult) Code() int        { return CallResultCode }

// CallError is a protocol-level failure reply:
// [4, "<uniqueId>", "<code>", "<description>", {details}].
type CallError struct {
	ID          string
	ErrorCode   string
	Description string
	Details     json.RawMessage
}

func (c *CallError) UniqueID() string { return c.ID }
func (c *CallError) Code() int        { return CallErrorCode }

// Codec translates between wire frames and Message values. It is constructed
// with the set of actions the dispatcher can route so that a Call naming
// anything else is rejected at decode time.
type Codec struct {
	actions map[string]struct{}
}

// NewCodec builds a codec accepting the given action names.
func NewCodec(actions []string) *Codec {
	set := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return &Codec{actions: set}
}

// Decode parses a raw frame into a Message. Structural problems yield a
// *MalformedFrameError; a Call whose action is not registered yields an
// *UnknownActionError carrying the uniqueId so the caller can answer with a
// CallError instead of dropping the connection.
func (c *Codec) Decode(data []byte) (Message, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, &MalformedFrameError{Reason: "not a JSON array"}
	}
	if len(parts) < 3 {
		return nil, &MalformedFrameError{Reason: fmt.Sprintf("arity %d", len(parts))}
	}
	var code int
	if err := json.Unmarshal(parts[0], &code); err != nil {
		return nil, &MalformedFrameError{Reason: "message type is not an integer"}
	}
	var id string
	if err := json.Unmarshal(parts[1], &id); err != nil {
		return nil, &MalformedFrameError{Reason: "unique id is not a string"}
	}

	switch code {
	case CallCode:
		if len(parts) != 4 {
			return nil, &MalformedFrameError{Reason: fmt.Sprintf("call arity %d", len(parts))}
		}
		var action string
		if err := json.Unmarshal(parts[2], &action); err != nil {
			return nil, &MalformedFrameError{Reason: "action is not a string"}
		}
		if _, ok := c.actions[action]; !ok {
			return nil, &UnknownActionError{ID: id, Action: action}
		}
		return &Call{ID: id, Action: action, Payload: parts[3]}, nil
	case CallResultCode:
		if len(parts) != 3 {
			return nil, &MalformedFrameError{Reason: fmt.Sprintf("result arity %d", len(parts))}
		}
		return &CallResult{ID: id, Payload: parts[2]}, nil
	case CallErrorCode:
		if len(parts) != 5 {
			return nil, &MalformedFrameError{Reason: fmt.Sprintf("error arity %d", len(parts))}
		}
		var errCode, desc string
		if err := json.Unmarshal(parts[2], &errCode); err != nil {
			return nil, &MalformedFrameError{Reason: "error code is not a string"}
		}
		if err := json.Unmarshal(parts[3], &desc); err != nil {
			return nil, &MalformedFrameError{Reason: "error description is not a string"}
		}
		return &CallError{ID: id, ErrorCode: errCode, Description: desc, Details: parts[4]}, nil
	default:
		return nil, &MalformedFrameError{Reason: fmt.Sprintf("unknown message type %d", code)}
	}
}

// Encode renders a Message as its array frame. It does not fail for
// well-formed in-memory values; a nil payload is encoded as an empty object.
func (c *Codec) Encode(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case *Call:
		return json.Marshal([]any{CallCode, m.ID, m.Action, rawOrEmpty(m.Payload)})
	case *CallResult:
		return json.Marshal([]any{CallResultCode, m.ID, rawOrEmpty(m.Payload)})
	case *CallError:
		return json.Marshal([]any{CallErrorCode, m.ID, m.ErrorCode, m.Description, rawOrEmpty(m.Details)})
	default:
		return nil, fmt.Errorf("ocpp: cannot encode %T", msg)
	}
}

func rawOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}
