package http

import (
	"bytes"
	"errors"

	"github.com/indigo-web/connector/http/action"
	"github.com/indigo-web/connector/kv"
)

// recorder is a hook keeping the track of requested actions and committing the response
// it's given.
type recorder struct {
	actions  []action.Code
	response *Response
	out      *bytes.Buffer
	fail     error
}

func newRecorder() *recorder {
	r := &recorder{out: new(bytes.Buffer)}
	r.response = NewResponse(r, r.out)
	return r
}

func (r *recorder) Action(code action.Code, param any) error {
	r.actions = append(r.actions, code)
	if r.fail != nil {
		return r.fail
	}

	switch code {
	case action.Commit:
		r.response.Expose().Committed = true
		r.out.WriteString("HEAD\n")
	case action.RemoteAddr:
		peer := param.(*Peer)
		peer.Addr, peer.Port = "10.0.0.1", 4242
	case action.RemoteHost:
		param.(*Peer).Host = "client.local"
	case action.LocalAddr, action.LocalPort:
		peer := param.(*Peer)
		peer.Addr, peer.Port = "10.0.0.2", 8080
	case action.SSLAttributes:
		param.(map[string]any)[AttrCipherSuite] = "TLS_AES_128_GCM_SHA256"
	case action.SSLCertificate:
		param.(map[string]any)[AttrPeerCertificates] = nil
	case action.Sendfile:
		if param.(*SendfileJob).Offset < 0 {
			return errors.New("bad offset")
		}
	}

	return nil
}

func (r *recorder) count(code action.Code) (n int) {
	for _, c := range r.actions {
		if c == code {
			n++
		}
	}

	return n
}

func newRequest(hook *recorder, body Retriever) *Request {
	return NewRequest(hook, hook.response, kv.New(), NewBody(body, 16, 64))
}
