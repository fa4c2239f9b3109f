package http1

import (
	"io"
	"math"

	"github.com/indigo-web/chunkedbody"
	"github.com/indigo-web/connector/http/status"
	"github.com/indigo-web/connector/transport"
	"github.com/indigo-web/utils/buffer"
)

type inputMode uint8

const (
	inputVoid inputMode = iota
	inputIdentity
	inputChunked
	inputReplay
)

// inputChain retrieves the request body from the input chunk, decoding it according
// to the framing of the request. Retrieved pieces reference the input chunk directly.
type inputChain struct {
	p         *Processor
	mode      inputMode
	parser    *chunkedbody.Parser
	remaining int64
	received  int64
	trailer   bool
	saved     *buffer.Buffer
	replay    []byte
	// err is sticky: once the body is over or broken, it stays so until the next request
	err error
}

func newInputChain(p *Processor, parser *chunkedbody.Parser) *inputChain {
	return &inputChain{
		p:      p,
		parser: parser,
	}
}

func (c *inputChain) useVoid() {
	c.mode = inputVoid
}

func (c *inputChain) useIdentity(length int64) {
	c.mode = inputIdentity
	c.remaining = length
}

func (c *inputChain) useChunked(trailer bool) {
	c.mode = inputChunked
	c.trailer = trailer
	c.received = 0
}

func (c *inputChain) reset() {
	c.mode = inputVoid
	c.remaining = 0
	c.received = 0
	c.trailer = false
	c.replay = nil
	c.err = nil
	if c.saved != nil {
		c.saved.Clear()
	}
}

// Retrieve implements http.Retriever. The interim 100 Continue response is sent on the
// first call, if the client expects it.
func (c *inputChain) Retrieve() ([]byte, error) {
	if c.p.request.Env.ExpectContinue && !c.p.acked {
		if err := c.p.ack(); err != nil {
			return nil, err
		}
	}

	return c.retrieve()
}

func (c *inputChain) retrieve() (data []byte, err error) {
	if c.err != nil {
		return nil, c.err
	}

	switch c.mode {
	case inputIdentity:
		data, err = c.identity()
	case inputChunked:
		data, err = c.chunked()
	case inputReplay:
		data, err = c.replay, io.EOF
	default:
		err = io.EOF
	}

	c.err = err
	return data, err
}

func (c *inputChain) identity() ([]byte, error) {
	if c.remaining == 0 {
		return nil, io.EOF
	}

	in := c.p.in
	if in.Empty() {
		if err := c.fill(); err != nil {
			return nil, err
		}
	}

	n := int(min(int64(in.Len()), c.remaining))
	data := in.Bytes()[:n]
	in.Skip(n)
	c.remaining -= int64(n)

	if c.remaining == 0 {
		return data, io.EOF
	}

	return data, nil
}

func (c *inputChain) chunked() ([]byte, error) {
	in := c.p.in

	for {
		if in.Empty() {
			if err := c.fill(); err != nil {
				return nil, err
			}
		}

		data := in.Bytes()
		chunk, extra, err := c.parser.Parse(data, c.trailer)
		switch err {
		case nil, io.EOF:
		default:
			return nil, status.ErrBadChunk
		}

		consumed := len(data) - len(extra)
		in.Skip(consumed)

		if c.received > math.MaxInt64-int64(len(chunk)) {
			return nil, status.ErrBodyTooLarge
		}

		c.received += int64(len(chunk))
		if maxSize := c.p.cfg.Body.MaxSize; maxSize >= 0 && c.received > maxSize {
			return nil, status.ErrBodyTooLarge
		}

		if err == io.EOF || len(chunk) > 0 {
			return chunk, err
		}

		if consumed == 0 {
			// an incomplete piece of metadata, which can't be parsed without more data
			if err = c.fill(); err != nil {
				return nil, err
			}
		}
	}
}

// fill reads more body data. The space after the headers section is reused, so the
// request line and the headers stay intact.
func (c *inputChain) fill() error {
	p := c.p
	in := p.in

	switch {
	case in.Empty():
		in.SetPosition(p.headerEnd)
		in.SetLimit(p.headerEnd)
	case in.Limit() == in.Cap():
		raw := in.Raw()
		n := copy(raw[p.headerEnd:], in.Bytes())
		in.SetPosition(p.headerEnd)
		in.SetLimit(p.headerEnd + n)
		if in.Limit() == in.Cap() {
			return status.ErrBadChunk
		}
	}

	err := p.fill(p.cfg.NET.SocketTimeout)
	switch {
	case err == nil:
		return nil
	case err == io.EOF:
		return io.ErrUnexpectedEOF
	case transport.IsTimeout(err):
		return status.NewError(status.RequestTimeout, "request body timed out")
	default:
		return err
	}
}

// save reads the rest of the body into memory, so it's served again from the beginning.
// Calling it once the body is saved rewinds it.
func (c *inputChain) save() error {
	if c.mode == inputReplay {
		c.err = nil
		c.p.request.Body.Reset()
		return nil
	}

	maxSize := c.p.cfg.Body.MaxSavePostSize
	if c.saved == nil {
		c.saved = buffer.New(min(maxSize, 4096), maxSize)
	}

	for {
		data, err := c.Retrieve()
		if !c.saved.Append(data) {
			return status.ErrBodyTooLarge
		}

		if err == io.EOF {
			break
		} else if err != nil {
			return err
		}
	}

	c.replay = c.saved.Finish()
	c.mode = inputReplay
	c.err = nil
	c.p.request.Body.Reset()

	return nil
}

// drain discards the unread rest of the body, so the next request may be parsed. False
// is returned if the connection can't be reused.
func (c *inputChain) drain() bool {
	p := c.p
	if p.request.Env.ExpectContinue && !p.acked && c.mode != inputVoid {
		// the client may or may not send the body anyway, so there's no way to tell
		// where the next request begins
		return false
	}

	for {
		_, err := c.retrieve()
		switch err {
		case nil:
		case io.EOF:
			return true
		default:
			return false
		}
	}
}
