package jsonrpc

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

const (
	// ErrorCodeParseError indicates invalid JSON was received by the server.
	ErrorCodeParseError ErrorCode = -32700
	// ErrorCodeInvalidRequest indicates the JSON sent is not a valid Request object.
	ErrorCodeInvalidRequest ErrorCode = -32600
	// ErrorCodeMethodNotFound indicates the method does not exist / is not available.
	ErrorCodeMethodNotFound ErrorCode = -32601
	// ErrorCodeInvalidParams indicates invalid method parameters.
	ErrorCodeInvalidParams ErrorCode = -32602
	// ErrorCodeInternalError indicates an internal JSON-RPC error.
	ErrorCodeInternalError ErrorCode = -32603

	// ErrorCodeServerError is the generic implementation-defined transport
	// error used for rejected or unauthenticated requests.
	ErrorCodeServerError ErrorCode = -32000
	// ErrorCodeSessionNotFound is returned when a request names a session the
	// server does not know about.
	ErrorCodeSessionNotFound ErrorCode = -32001
)

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// ErrorEnvelope is an error response whose id is always present on the
// wire. Transport-level rejections happen before a request id is known, so
// the id is encoded as null.
type ErrorEnvelope struct {
	JSONRPCVersion string     `json:"jsonrpc"`
	Error          *Error     `json:"error"`
	ID             *RequestID `json:"id"`
}

// NewErrorEnvelope builds a transport-level error envelope with a null id.
func NewErrorEnvelope(code ErrorCode, message string) *ErrorEnvelope {
	return &ErrorEnvelope{
		JSONRPCVersion: ProtocolVersion,
		Error:          &Error{Code: code, Message: message},
	}
}
