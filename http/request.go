package http

import (
	"crypto/x509"
	"strings"

	"github.com/indigo-web/connector/http/action"
	"github.com/indigo-web/connector/http/method"
	"github.com/indigo-web/connector/http/proto"
	"github.com/indigo-web/connector/kv"
)

// Request represents HTTP request
type Request struct {
	// Method is an enum representing the request method. Methods unknown to the connector
	// are method.Unknown, MethodToken holds the raw token in any case.
	Method      method.Method
	MethodToken string
	// URI is the raw request target without the query. It isn't decoded nor validated.
	URI string
	// Query is everything after the first question mark in the request target.
	Query string
	// Protocol is the raw protocol token. It's empty for HTTP/0.9 requests.
	Protocol string
	Proto    proto.Proto
	// Headers holds non-normalized header pairs, even though lookup is case-insensitive.
	// Keys and values are views over the connection buffer, so they must be copied in order
	// to outlive the request.
	Headers Headers
	// ContentLength is -1 if the length isn't known in advance.
	ContentLength int64
	Chunked       bool
	ContentType   string
	// ServerName and ServerPort are taken from the Host header, otherwise from the local
	// address of the connection.
	ServerName string
	ServerPort int
	// Scheme is either http or https.
	Scheme string
	// Notes are reset on every request.
	Notes Notes
	// Attributes are set by collaborators and by the connection itself (e.g. TLS attributes).
	Attributes map[string]any
	// Env contains a fixed set of contextual values set by the connection.
	Env Environment
	// Body is a dedicated entity providing access to the message body.
	Body     *Body
	hook     ActionHook
	response *Response
	remote   Peer
	local    Peer
	resolved resolved
}

type Environment struct {
	// Error contains an error occurred during the request processing, if any.
	Error error
	// Encryption represents the cryptographic protocol on top of the connection. They're
	// comparable against the tls.Version... enums. Zero value means no encryption.
	Encryption uint16
	// SendfileSupported tells whether Response.Sendfile will be performed by the transport.
	SendfileSupported bool
	// ExpectContinue is set when the client waits for the interim response before sending
	// the body. It is sent automatically on the first read.
	ExpectContinue bool
}

type resolved struct {
	remote, remoteHost, local, tls, certs bool
}

func NewRequest(hook ActionHook, response *Response, headers *kv.Storage, body *Body) *Request {
	request := &Request{
		Method:        method.Unknown,
		Proto:         proto.HTTP11,
		Headers:       headers,
		ContentLength: -1,
		Scheme:        "http",
		Attributes:    make(map[string]any),
		Body:          body,
		hook:          hook,
		response:      response,
	}
	body.request = request

	return request
}

// Respond returns the Response object, bound to the request.
func (r *Request) Respond() *Response {
	return r.response
}

// Action passes the code to the hook of the request.
func (r *Request) Action(code action.Code, param any) error {
	return r.hook.Action(code, param)
}

// RemoteAddr returns the IP address of the client.
func (r *Request) RemoteAddr() string {
	r.resolveRemote()
	return r.remote.Addr
}

// RemotePort returns the port of the client.
func (r *Request) RemotePort() int {
	if !r.resolved.remote {
		_ = r.hook.Action(action.RemotePort, &r.remote)
	}

	return r.remote.Port
}

// RemoteHost returns the host name of the client. The reverse lookup is done only when
// enabled, otherwise it's the same as RemoteAddr.
func (r *Request) RemoteHost() string {
	if !r.resolved.remoteHost {
		r.resolved.remoteHost = true
		_ = r.hook.Action(action.RemoteHost, &r.remote)
	}

	return r.remote.Host
}

func (r *Request) resolveRemote() {
	if !r.resolved.remote {
		r.resolved.remote = true
		_ = r.hook.Action(action.RemoteAddr, &r.remote)
	}
}

// LocalAddr returns the IP address the connection was accepted on.
func (r *Request) LocalAddr() string {
	r.resolveLocal()
	return r.local.Addr
}

// LocalPort returns the port the connection was accepted on.
func (r *Request) LocalPort() int {
	if !r.resolved.local {
		_ = r.hook.Action(action.LocalPort, &r.local)
	}

	return r.local.Port
}

func (r *Request) resolveLocal() {
	if !r.resolved.local {
		r.resolved.local = true
		_ = r.hook.Action(action.LocalAddr, &r.local)
	}
}

// Attribute returns the attribute by its name. TLS attributes are requested from the
// connection on first access.
func (r *Request) Attribute(name string) any {
	if strings.HasPrefix(name, "tls.") {
		r.resolveTLS(name == AttrPeerCertificates)
	}

	return r.Attributes[name]
}

func (r *Request) SetAttribute(name string, value any) {
	r.Attributes[name] = value
}

// PeerCertificates returns the certificate chain presented by the client, if any.
func (r *Request) PeerCertificates() []*x509.Certificate {
	certs, _ := r.Attribute(AttrPeerCertificates).([]*x509.Certificate)
	return certs
}

func (r *Request) resolveTLS(certs bool) {
	if r.Env.Encryption == 0 {
		return
	}

	if !r.resolved.tls {
		r.resolved.tls = true
		_ = r.hook.Action(action.SSLAttributes, r.Attributes)
	}

	if certs && !r.resolved.certs {
		r.resolved.certs = true
		_ = r.hook.Action(action.SSLCertificate, r.Attributes)
	}
}

// ReplayBody reads the whole body into memory, so the body may be read once again from
// the beginning after it has been consumed.
func (r *Request) ReplayBody() error {
	return r.hook.Action(action.ReplayBody, nil)
}

// Recycle clears the request, so it may be reused for the next one.
func (r *Request) Recycle() {
	r.Method = method.Unknown
	r.MethodToken = ""
	r.URI = ""
	r.Query = ""
	r.Protocol = ""
	r.Proto = proto.HTTP11
	r.Headers.Clear()
	r.ContentLength = -1
	r.Chunked = false
	r.ContentType = ""
	r.ServerName = ""
	r.ServerPort = 0
	r.Scheme = "http"
	r.Notes = Notes{}
	clear(r.Attributes)
	r.Env = Environment{}
	r.Body.Reset()
	r.remote = Peer{}
	r.local = Peer{}
	r.resolved = resolved{}
}
