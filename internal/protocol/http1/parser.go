package http1

import (
	"bytes"

	"github.com/indigo-web/connector/http/method"
	"github.com/indigo-web/connector/http/proto"
	"github.com/indigo-web/connector/http/status"
	"github.com/indigo-web/connector/transport"
	"github.com/indigo-web/utils/uf"
)

// parseRequestLine waits for the request line and parses it. Blank lines preceding the
// request are ignored. When the request isn't the first one served within the current
// binding, pollable sockets don't wait at all: errNoData is returned instead, so the
// socket gets back to the poller.
//
// The request line ends up at the beginning of the input chunk, so all the offsets
// in the headers section are bounded by the header buffer size.
func (p *Processor) parseRequestLine(first bool) error {
	in := p.in

	for {
		for !in.Empty() && (in.Byte(0) == '\r' || in.Byte(0) == '\n') {
			in.Skip(1)
		}

		if !in.Empty() {
			break
		}

		in.Reset()
		switch {
		case first:
		case p.sock.Draining():
			return errDraining
		case p.sock.Pollable():
			return errNoData
		}

		if err := p.fill(p.cfg.NET.KeepAliveTimeout); err != nil {
			if transport.IsTimeout(err) {
				return errIdle
			}

			return err
		}
	}

	in.Compact()
	hbs := p.cfg.HTTP.HeaderBufferSize

	eol := in.IndexByte('\n', 0)
	for eol == -1 {
		if in.Len() >= hbs {
			return status.ErrRequestLineTooLong
		}

		searched := in.Len()
		if err := p.fill(p.cfg.NET.SocketTimeout); err != nil {
			return err
		}

		eol = in.IndexByte('\n', searched)
	}

	if eol >= hbs {
		return status.ErrRequestLineTooLong
	}

	line := trimCR(in.Bytes()[:eol])
	in.Skip(eol + 1)

	sp := bytes.IndexByte(line, ' ')
	if sp <= 0 || !isToken(line[:sp]) {
		return status.ErrBadRequestLine
	}

	methodToken, rest := line[:sp], line[sp+1:]
	target, protocol := rest, []byte(nil)
	if sp = bytes.IndexByte(rest, ' '); sp != -1 {
		target, protocol = rest[:sp], rest[sp+1:]
	}

	if len(target) == 0 {
		return status.ErrBadRequestLine
	}

	request := p.request
	request.Proto = proto.FromBytes(protocol)
	if request.Proto == proto.Unknown {
		request.Proto = proto.HTTP11
		if bytes.HasPrefix(protocol, []byte("HTTP/")) {
			return status.ErrHTTPVersionNotSupported
		}

		return status.ErrBadRequestLine
	}

	request.MethodToken = uf.B2S(methodToken)
	request.Method = method.Parse(request.MethodToken)
	request.Protocol = uf.B2S(protocol)

	if q := bytes.IndexByte(target, '?'); q != -1 {
		request.Query = uf.B2S(target[q+1:])
		target = target[:q]
	}

	request.URI = uf.B2S(target)

	return nil
}

// parseHeaders parses the headers section. The whole section, including the request
// line, must fit into the header buffer size. Obsolete line folding is supported: the
// continuation is joined to the previous value in place, separated by a single space.
func (p *Processor) parseHeaders() error {
	var (
		in         = p.in
		hbs        = p.cfg.HTTP.HeaderBufferSize
		headers    = p.request.Headers
		valueStart = -1
		valueEnd   int
	)

	if p.request.Proto == proto.HTTP09 {
		// simple requests carry no headers
		p.headerEnd = in.Position()
		return nil
	}

	for {
		eol := in.IndexByte('\n', 0)
		for eol == -1 {
			if in.Limit() >= hbs {
				return status.ErrHeaderFieldsTooLarge
			}

			searched := in.Len()
			if err := p.fill(p.cfg.NET.SocketTimeout); err != nil {
				return err
			}

			eol = in.IndexByte('\n', searched)
		}

		lineStart := in.Position()
		if lineStart+eol >= hbs {
			return status.ErrHeaderFieldsTooLarge
		}

		line := trimCR(in.Bytes()[:eol])
		in.Skip(eol + 1)

		if len(line) == 0 {
			p.headerEnd = in.Position()
			return nil
		}

		if isOWS(line[0]) {
			if valueStart == -1 {
				return status.ErrBadHeader
			}

			continuation, _ := trimOWS(line)
			if len(continuation) == 0 {
				continue
			}

			raw := in.Raw()
			raw[valueEnd] = ' '
			valueEnd += 1 + copy(raw[valueEnd+1:], continuation)
			pairs := headers.Expose()
			pairs[len(pairs)-1].Value = uf.B2S(raw[valueStart:valueEnd])
			continue
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 || !isToken(line[:colon]) {
			return status.ErrBadHeader
		}

		if headers.Len() >= p.cfg.HTTP.MaxHeaders {
			return status.ErrTooManyHeaders
		}

		value, offset := trimOWS(line[colon+1:])
		valueStart = lineStart + colon + 1 + offset
		valueEnd = valueStart + len(value)
		headers.Add(uf.B2S(line[:colon]), uf.B2S(value))
	}
}

func trimCR(line []byte) []byte {
	if len(line) > 0 && line[len(line)-1] == '\r' {
		return line[:len(line)-1]
	}

	return line
}
