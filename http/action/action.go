// Package action enumerates the operations the protocol layer may request from the
// connection it's bound to.
package action

type Code uint8

const (
	// Commit serializes the status line with the headers and flushes them. The parameter
	// is ignored.
	Commit Code = iota + 1
	// Ack sends the "100 Continue" interim response, at most once per request.
	Ack
	// Close finishes the response: the output filters are finalized and the buffer flushed.
	Close
	// Flush commits the response if necessary and pushes the buffered body out.
	Flush
	// Reset discards the buffered, not yet committed, response body.
	Reset
	// PostRequest completes the exchange on behalf of the adapter, as if Service returned.
	PostRequest
	// RemoteAddr fills the *http.Peer parameter with the remote IP address and port.
	RemoteAddr
	// RemoteHost fills the *http.Peer parameter with the remote host name.
	RemoteHost
	// RemotePort fills the port of the *http.Peer parameter.
	RemotePort
	// LocalAddr fills the *http.Peer parameter with the local IP address and port.
	LocalAddr
	// LocalPort fills the port of the *http.Peer parameter.
	LocalPort
	// SSLAttributes writes the TLS session attributes into the map[string]any parameter.
	SSLAttributes
	// SSLCertificate writes the peer certificate chain into the map[string]any parameter.
	SSLCertificate
	// ReplayBody reads the request body into memory, so it may be read once more.
	ReplayBody
	// Sendfile schedules the *http.SendfileJob parameter for the zero-copy transmission.
	Sendfile
)

var names = [...]string{
	Commit:         "COMMIT",
	Ack:            "ACK",
	Close:          "CLOSE",
	Flush:          "CLIENT_FLUSH",
	Reset:          "RESET",
	PostRequest:    "POST_REQUEST",
	RemoteAddr:     "REQ_HOST_ADDR_ATTRIBUTE",
	RemoteHost:     "REQ_HOST_ATTRIBUTE",
	RemotePort:     "REQ_REMOTEPORT_ATTRIBUTE",
	LocalAddr:      "REQ_LOCAL_ADDR_ATTRIBUTE",
	LocalPort:      "REQ_LOCALPORT_ATTRIBUTE",
	SSLAttributes:  "REQ_SSL_ATTRIBUTE",
	SSLCertificate: "REQ_SSL_CERTIFICATE",
	ReplayBody:     "REQ_SET_BODY_REPLAY",
	Sendfile:       "SENDFILE",
}

func (c Code) String() string {
	if int(c) >= len(names) || len(names[c]) == 0 {
		return "UNKNOWN"
	}

	return names[c]
}
