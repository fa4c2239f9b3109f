package http

import (
	"github.com/indigo-web/connector/http/action"
	"github.com/indigo-web/connector/kv"
)

type (
	Headers = *kv.Storage
	Header  = kv.Pair
)

// ActionHook is the only way for requests and responses to reach the connection they
// belong to. Results are written back into the parameter.
type ActionHook interface {
	Action(code action.Code, param any) error
}

// Peer describes one end of the connection.
type Peer struct {
	Addr string
	Host string
	Port int
}

// SendfileJob describes a region of a file to be transmitted directly by the transport
// instead of being streamed through the response body. Negative Length means up to the
// end of the file.
type SendfileJob struct {
	Path   string
	Offset int64
	Length int64
}

// NotesSize is the number of note slots available per request.
const NotesSize = 32

// Notes are opaque per-request slots, which collaborators use to attach derived state
// to the request. They are cleared on every request.
type Notes [NotesSize]any

// TLS attributes, available via Request.Attribute on encrypted connections.
const (
	AttrCipherSuite      = "tls.cipher_suite"
	AttrProtocolVersion  = "tls.protocol"
	AttrServerName       = "tls.server_name"
	AttrNegotiated       = "tls.negotiated_protocol"
	AttrSessionResumed   = "tls.resumed"
	AttrPeerCertificates = "tls.peer_certificates"
)
