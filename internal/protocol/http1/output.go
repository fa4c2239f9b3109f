package http1

import (
	"strconv"

	"github.com/indigo-web/connector/http/method"
	"github.com/indigo-web/connector/http/proto"
	"github.com/indigo-web/connector/http/status"
	"github.com/indigo-web/connector/internal/timer"
	"github.com/indigo-web/utils/uf"
)

type outputMode uint8

const (
	// outputVoid discards the body. Used for HEAD requests, bodiless status codes and
	// file transmissions.
	outputVoid outputMode = iota
	outputIdentity
	outputChunked
)

const (
	crlf            = "\r\n"
	colonsp         = ": "
	protocolPrefix  = "HTTP/1.1 "
	continueMessage = "HTTP/1.1 100 Continue\r\n\r\n"
	lastChunk       = "0\r\n\r\n"
)

// outputChain encodes the response body into the output chunk according to the framing
// chosen at commit time.
type outputChain struct {
	p    *Processor
	mode outputMode
	// remaining is the number of bytes the identity body may still take. Negative
	// means the body is delimited by the connection closure.
	remaining int64
	scratch   [16]byte
}

func (o *outputChain) reset() {
	o.mode = outputVoid
	o.remaining = 0
}

// Write implements io.Writer. Writes beyond the declared length are silently cut.
func (o *outputChain) Write(b []byte) (n int, err error) {
	p := o.p
	if p.broken {
		return 0, errBroken
	}

	if p.finished {
		return 0, errFinished
	}

	switch o.mode {
	case outputVoid:
		return len(b), nil
	case outputIdentity:
		data := b
		if o.remaining >= 0 {
			data = data[:min(int64(len(data)), o.remaining)]
			o.remaining -= int64(len(data))
		}

		err = p.out.Append(data)
	case outputChunked:
		if len(b) == 0 {
			return 0, nil
		}

		if err = p.out.Append(strconv.AppendUint(o.scratch[:0], uint64(len(b)), 16)); err == nil {
			if err = p.out.AppendString(crlf); err == nil {
				if err = p.out.Append(b); err == nil {
					err = p.out.AppendString(crlf)
				}
			}
		}
	}

	if err != nil {
		p.broken = true
		return 0, err
	}

	return len(b), nil
}

// commit chooses the body framing and serializes the status line together with the
// headers into the output chunk.
func (p *Processor) commit() error {
	fields := p.response.Expose()
	if fields.Committed {
		return nil
	}

	fields.Committed = true
	request := p.request

	if p.closing.Closes(fields.Code) {
		p.keepAlive = false
	}

	bodyAllowed := status.AllowsBody(fields.Code)
	if !bodyAllowed {
		fields.ContentLength = -1
	}

	if p.sendfile != nil && (!bodyAllowed || request.Method == method.HEAD) {
		_ = p.sendfile.Close()
		p.sendfile = nil
	}

	var chunked bool
	o := p.output
	switch {
	case !bodyAllowed || p.sendfile != nil:
		o.mode = outputVoid
	case fields.ContentLength >= 0:
		o.mode, o.remaining = outputIdentity, fields.ContentLength
	case request.Proto == proto.HTTP11:
		o.mode, chunked = outputChunked, true
	default:
		// HTTP/1.0 clients only understand bodies delimited by the connection closure
		o.mode, o.remaining = outputIdentity, -1
		if request.Proto != proto.HTTP09 {
			p.keepAlive = false
		}
	}

	if request.Method == method.HEAD {
		o.mode = outputVoid
	}

	if request.Proto == proto.HTTP09 {
		// simple responses consist of the body only
		return nil
	}

	return p.renderHeaders(chunked)
}

func (p *Processor) renderHeaders(chunked bool) error {
	fields := p.response.Expose()
	out := p.out

	_ = out.AppendString(protocolPrefix)
	if len(fields.Status) > 0 {
		_ = out.Append(strconv.AppendUint(p.output.scratch[:0], uint64(fields.Code), 10))
		_ = out.AppendByte(' ')
		_ = out.AppendString(string(fields.Status))
	} else {
		_ = out.AppendString(status.Line(fields.Code))
	}

	_ = out.AppendString(crlf)
	p.renderHeader("Date", timer.Date())

	if server := p.cfg.HTTP.ServerHeader; len(server) > 0 {
		p.renderHeader("Server", server)
	}

	if len(fields.ContentType) > 0 {
		p.renderHeader("Content-Type", fields.ContentType)
	}

	if chunked {
		p.renderHeader("Transfer-Encoding", "chunked")
	} else if fields.ContentLength >= 0 {
		_ = out.AppendString("Content-Length: ")
		_ = out.Append(strconv.AppendInt(p.output.scratch[:0], fields.ContentLength, 10))
		_ = out.AppendString(crlf)
	}

	switch {
	case !p.keepAlive:
		p.renderHeader("Connection", "close")
	case p.request.Proto == proto.HTTP10:
		p.renderHeader("Connection", "keep-alive")
	}

	for _, header := range fields.Headers.Expose() {
		p.renderHeader(header.Key, header.Value)
	}

	err := out.AppendString(crlf)
	if err != nil {
		p.broken = true
	}

	return err
}

// renderHeader appends a single header line. Errors are sticky in the processor, as
// they may only come from the socket.
func (p *Processor) renderHeader(key, value string) {
	out := p.out
	_ = out.AppendString(key)
	_ = out.AppendString(colonsp)
	_ = out.AppendString(value)
	_ = out.AppendString(crlf)
}

// flush commits the response if necessary and pushes the buffered data into the socket.
func (p *Processor) flush() error {
	if p.broken {
		return errBroken
	}

	if err := p.commit(); err != nil {
		return err
	}

	return p.out.FlushBuffer()
}

// finish completes the response: the body is terminated and everything is flushed.
// Responses nothing was written into get an empty body.
func (p *Processor) finish() error {
	if p.finished {
		return nil
	}

	fields := p.response.Expose()
	if !fields.Committed {
		if fields.ContentLength < 0 && fields.Sendfile == nil {
			fields.ContentLength = 0
		}

		if p.request.Env.ExpectContinue && !p.acked && p.input.mode != inputVoid {
			// the body wasn't asked for, so it's unknown whether the client sends it
			p.keepAlive = false
		}
	}

	if err := p.commit(); err != nil {
		return err
	}

	p.finished = true
	o := p.output
	switch o.mode {
	case outputChunked:
		if err := p.out.AppendString(lastChunk); err != nil {
			p.broken = true
			return err
		}
	case outputIdentity:
		if o.remaining > 0 {
			// the body is shorter than declared, the client would wait for the rest forever
			p.log.Debugf("http1: %d bytes of the declared body are missing", o.remaining)
			p.keepAlive = false
		}
	}

	if err := p.out.FlushBuffer(); err != nil {
		p.broken = true
		return err
	}

	return nil
}

// ack sends the interim response once per request. Nothing is sent if the response
// is committed already, as the client gets the final one instead.
func (p *Processor) ack() error {
	if p.acked || p.response.Expose().Committed || !p.request.Env.ExpectContinue {
		return nil
	}

	p.acked = true
	_, err := (*sink)(p).Write(uf.S2B(continueMessage))
	return err
}
