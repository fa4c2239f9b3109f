package status

type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	// ErrClientAbort is reported when the peer went away in the middle of an exchange.
	// It terminates the connection without touching the response status.
	ErrClientAbort = NewError(CloseConnection, "client aborted the connection")
	// ErrRequestLineTooLong is fatal: nothing is written back, the connection is closed.
	ErrRequestLineTooLong = NewError(CloseConnection, "request line does not fit into the header buffer")

	ErrBadRequest              = NewError(BadRequest, "bad request")
	ErrBadRequestLine          = NewError(BadRequest, "malformed request line")
	ErrBadHeader               = NewError(BadRequest, "malformed header field")
	ErrHeaderFieldsTooLarge    = NewError(BadRequest, "headers section does not fit into the header buffer")
	ErrTooManyHeaders          = NewError(BadRequest, "too many headers")
	ErrBadContentLength        = NewError(BadRequest, "invalid Content-Length")
	ErrMissingHost             = NewError(BadRequest, "missing Host header")
	ErrBadChunk                = NewError(BadRequest, "malformed chunk-encoded data")
	ErrUnexpectedEOF           = NewError(BadRequest, "request body is shorter than declared")
	ErrBodyTooLarge            = NewError(RequestEntityTooLarge, "request body is too large")
	ErrNotImplemented          = NewError(NotImplemented, "not implemented")
	ErrUnsupportedEncoding     = NewError(NotImplemented, "transfer encoding is not supported")
	ErrHTTPVersionNotSupported = NewError(HTTPVersionNotSupported, "HTTP version not supported")
	ErrExpectationFailed       = NewError(ExpectationFailed, "expectation failed")
	ErrUnsupportedMediaType    = NewError(UnsupportedMediaType, "unsupported media type")
	ErrInternalServerError     = NewError(InternalServerError, "internal server error")
	ErrServiceUnavailable      = NewError(ServiceUnavailable, "service unavailable")
)

// CloseConnection is a pseudo-code marking errors after which nothing must be written
// back to the client.
const CloseConnection Code = 0
