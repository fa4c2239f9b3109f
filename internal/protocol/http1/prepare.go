package http1

import (
	"net"

	"github.com/indigo-web/connector/http/proto"
	"github.com/indigo-web/connector/http/status"
	"github.com/indigo-web/connector/internal/address"
	"github.com/indigo-web/utils/strcomp"
)

// prepareRequest interprets the headers which affect the message framing and the
// connection management, and sets up the input filters.
func (p *Processor) prepareRequest() error {
	request := p.request
	request.Env.SendfileSupported = p.cfg.Workers.UseSendfile
	p.keepAlive = request.Proto.KeepAliveByDefault()

	if state, ok := p.sock.TLS(); ok {
		request.Scheme = "https"
		request.Env.Encryption = state.Version
	}

	var (
		contentLength       int64 = -1
		host                string
		hosts               int
		chunked, hasTrailer bool
		expect              string
	)

	for _, header := range request.Headers.Expose() {
		switch key := header.Key; {
		case strcomp.EqualFold(key, "content-length"):
			ok := eachToken(header.Value, func(token string) bool {
				n, ok := parseContentLength(token)
				if !ok || (contentLength != -1 && n != contentLength) {
					return false
				}

				contentLength = n
				return true
			})
			if !ok || contentLength == -1 {
				return status.ErrBadContentLength
			}
		case strcomp.EqualFold(key, "transfer-encoding"):
			var err error
			eachToken(header.Value, func(token string) bool {
				switch {
				case chunked:
					// chunked must be the last coding applied
					err = status.ErrBadRequest
				case strcomp.EqualFold(token, "chunked"):
					chunked = true
				case strcomp.EqualFold(token, "identity"):
				default:
					err = status.ErrUnsupportedEncoding
				}

				return err == nil
			})
			if err != nil {
				return err
			}
		case strcomp.EqualFold(key, "connection"):
			eachToken(header.Value, func(token string) bool {
				switch {
				case strcomp.EqualFold(token, "close"):
					p.keepAlive = false
				case strcomp.EqualFold(token, "keep-alive"):
					p.keepAlive = request.Proto != proto.HTTP09
				}

				return true
			})
		case strcomp.EqualFold(key, "host"):
			host = header.Value
			hosts++
		case strcomp.EqualFold(key, "expect"):
			expect = header.Value
		case strcomp.EqualFold(key, "content-type"):
			request.ContentType = header.Value
		case strcomp.EqualFold(key, "trailer"):
			hasTrailer = true
		}
	}

	if chunked && contentLength != -1 {
		// the message is ambiguous, so the connection can't be trusted afterwards
		p.keepAlive = false
		contentLength = -1
	}

	switch {
	case hosts > 1:
		return status.NewError(status.BadRequest, "duplicate Host header")
	case hosts == 0 && request.Proto == proto.HTTP11:
		return status.ErrMissingHost
	}

	if err := p.resolveServer(host); err != nil {
		return err
	}

	if len(expect) > 0 {
		if !strcomp.EqualFold(expect, "100-continue") {
			return status.ErrExpectationFailed
		}

		request.Env.ExpectContinue = request.Proto == proto.HTTP11
	}

	request.Chunked = chunked
	request.ContentLength = contentLength

	switch maxSize := p.cfg.Body.MaxSize; {
	case chunked:
		p.input.useChunked(hasTrailer)
	case contentLength > 0:
		if maxSize >= 0 && contentLength > maxSize {
			return status.ErrBodyTooLarge
		}

		p.input.useIdentity(contentLength)
	default:
		p.input.useVoid()
	}

	return nil
}

// resolveServer sets the server name and port the request is addressed to. They're
// taken from the Host header, otherwise from the local address.
func (p *Processor) resolveServer(host string) error {
	request := p.request
	defaultPort := 80
	if request.Scheme == "https" {
		defaultPort = 443
	}

	if len(host) > 0 {
		name, port, ok := address.SplitHost(host, defaultPort)
		if !ok {
			return status.NewError(status.BadRequest, "malformed Host header")
		}

		request.ServerName, request.ServerPort = name, port
		return nil
	}

	if tcp, ok := p.sock.LocalAddr().(*net.TCPAddr); ok {
		request.ServerName, request.ServerPort = tcp.IP.String(), tcp.Port
		return nil
	}

	request.ServerName, request.ServerPort = p.sock.LocalAddr().String(), defaultPort
	return nil
}
