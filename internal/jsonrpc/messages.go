package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is the only "jsonrpc" member value accepted on the wire.
const ProtocolVersion = "2.0"

// AnyMessage is one inbound line or POST body before it is known whether it
// is a request, a notification or a client response. Use Type to classify it
// and AsRequest or AsResponse to narrow it.
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Request is a call from either side. A nil ID makes it a notification.
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Response answers a Request; exactly one of Result and Error is set.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

var (
	errCallWithOutcome = errors.New("a message with a method cannot carry result or error")
	errAmbiguousReply  = errors.New("a response cannot carry both result and error")
	errEmptyReply      = errors.New("a response needs a result or an error")
)

// NewResultResponse encodes result as the reply to id.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &Response{JSONRPCVersion: ProtocolVersion, Result: b, ID: id}, nil
}

// NewErrorResponse replies to id with a protocol error. A nil data is left
// out of the encoding.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *Response {
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Error:          &Error{Code: code, Message: message, Data: data},
		ID:             id,
	}
}

// NewNotification builds an id-less Request, such as a log line pushed to the
// client.
func NewNotification(method string, params any) (*Request, error) {
	note := &Request{JSONRPCVersion: ProtocolVersion, Method: method}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode %s params: %w", method, err)
		}
		note.Params = b
	}
	return note, nil
}

// UnmarshalJSON decodes a single message and rejects anything that is not a
// well-formed 2.0 request, notification or response.
func (m *AnyMessage) UnmarshalJSON(data []byte) error {
	// The alias drops this method so the plain decoder can be reused.
	type plain AnyMessage
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	msg := AnyMessage(p)
	if err := msg.validate(); err != nil {
		return err
	}
	*m = msg
	return nil
}

func (m *AnyMessage) validate() error {
	if m.JSONRPCVersion != ProtocolVersion {
		return fmt.Errorf("invalid JSON-RPC version: expected %q, got %q", ProtocolVersion, m.JSONRPCVersion)
	}
	hasResult, hasError := len(m.Result) > 0, m.Error != nil
	switch {
	case m.Method != "" && (hasResult || hasError):
		return errCallWithOutcome
	case m.Method != "":
		return nil
	case hasResult && hasError:
		return errAmbiguousReply
	case !hasResult && !hasError:
		return errEmptyReply
	}
	return nil
}

// Type classifies the message as "request", "notification" or "response".
func (m *AnyMessage) Type() string {
	switch {
	case m.Method == "":
		return "response"
	case m.ID == nil:
		return "notification"
	default:
		return "request"
	}
}

// AsRequest narrows a request or notification; it returns nil for responses.
func (m *AnyMessage) AsRequest() *Request {
	if m.Method == "" {
		return nil
	}
	return &Request{JSONRPCVersion: m.JSONRPCVersion, Method: m.Method, Params: m.Params, ID: m.ID}
}

// AsResponse narrows a client response; it returns nil for calls.
func (m *AnyMessage) AsResponse() *Response {
	if m.Method != "" {
		return nil
	}
	return &Response{JSONRPCVersion: m.JSONRPCVersion, Result: m.Result, Error: m.Error, ID: m.ID}
}

// IsInitialize reports whether the message is the handshake request that may
// open a new session. An initialize sent as a notification does not count.
func (m *AnyMessage) IsInitialize() bool {
	return m.Method == "initialize" && m.ID != nil && !m.ID.IsNil()
}
