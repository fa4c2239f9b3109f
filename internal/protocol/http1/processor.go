package http1

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/indigo-web/chunkedbody"
	"github.com/indigo-web/connector/adapter"
	"github.com/indigo-web/connector/bytechunk"
	"github.com/indigo-web/connector/config"
	"github.com/indigo-web/connector/http"
	"github.com/indigo-web/connector/http/status"
	"github.com/indigo-web/connector/internal/logging"
	"github.com/indigo-web/connector/kv"
	"github.com/indigo-web/connector/transport"
)

var (
	// errNoData is returned when the socket has nothing buffered and must be given back
	// to the poller instead of blocking the worker.
	errNoData = errors.New("no data available")
	// errIdle is returned when no request arrived within the keep-alive timeout.
	errIdle = errors.New("keep-alive timeout exceeded")
	// errDraining is returned instead of waiting for the next request when the endpoint
	// is shutting down.
	errDraining = errors.New("endpoint is shutting down")
)

// Processor serves HTTP/1.1 requests over a single connection at a time. It owns all
// the per-request state, which is allocated once and recycled, so a processor may be
// reused for any number of connections.
type Processor struct {
	cfg      *config.Config
	adapter  adapter.Adapter
	log      *logging.Logger
	closing  status.ClosingPolicy
	request  *http.Request
	response *http.Response
	in, out  *bytechunk.Chunk
	input    *inputChain
	output   *outputChain
	sock     *transport.Socket
	bound    atomic.Bool
	stage    atomic.Uint32
	peers    peerCache
	sendfile *transport.SendfileJob
	// headerEnd is the offset in the input chunk the headers section ends at. Bytes
	// before it are referenced by the request, so they must not be overwritten.
	headerEnd int
	keepAlive bool
	// broken is set when nothing can be written into the connection anymore.
	broken   bool
	finished bool
	acked    bool
}

// New returns a processor. The config must not be modified afterwards.
func New(cfg *config.Config, a adapter.Adapter, log *logging.Logger) *Processor {
	p := &Processor{
		cfg:     cfg,
		adapter: a,
		log:     log,
		closing: status.ClosingPolicy(cfg.HTTP.ClosingStatuses),
		in:      bytechunk.New(cfg.HTTP.HeaderBufferSize+cfg.NET.ReadBufferSize, 0),
		out:     bytechunk.New(cfg.NET.WriteBufferSize.Default, cfg.NET.WriteBufferSize.Maximal),
	}

	p.input = newInputChain(p, chunkedbody.NewParser(chunkedbody.DefaultSettings()))
	p.output = &outputChain{p: p}
	p.response = http.NewResponse(p, p.output)
	body := http.NewBody(p.input, cfg.Body.Buffer.Prealloc, cfg.Body.Buffer.Retain)
	p.request = http.NewRequest(p, p.response, kv.NewPrealloc(cfg.HTTP.MaxHeaders), body)

	return p
}

// Stage returns what the processor is busy with at the moment.
func (p *Processor) Stage() Stage {
	return Stage(p.stage.Load())
}

func (p *Processor) setStage(s Stage) {
	p.stage.Store(uint32(s))
}

// Process serves requests from the socket until the connection must be closed, there's
// no data buffered on a pollable socket or a file transmission is scheduled. The
// returned state tells the endpoint what to do with the socket next.
func (p *Processor) Process(sock *transport.Socket) transport.SocketState {
	p.bind(sock)
	defer p.unbind()

	for first := true; ; first = false {
		if state, next := p.serve(first); !next {
			return state
		}
	}
}

func (p *Processor) serve(first bool) (state transport.SocketState, next bool) {
	p.setStage(ParsingRequestLine)
	err := p.parseRequestLine(first)
	if err == nil {
		p.setStage(ParsingHeaders)
		err = p.parseHeaders()
	}

	if err != nil && !respondable(err) {
		return p.abandon(err), false
	}

	p.setStage(Preparing)
	last := false
	if p.sock.KeepAliveLeft > 0 {
		p.sock.KeepAliveLeft--
		last = p.sock.KeepAliveLeft == 0
	}

	if err == nil {
		err = p.prepareRequest()
	}

	if last || p.sock.Draining() {
		p.keepAlive = false
	}

	if err != nil {
		p.reject(err)
	} else {
		p.setStage(Servicing)
		p.service()
	}

	p.setStage(EndingRequest)
	if !p.broken {
		if err = p.finish(); err != nil {
			p.log.Debugf("http1: finishing response: %s", err)
			p.broken = true
		}
	}

	return p.endRequest()
}

func (p *Processor) endRequest() (transport.SocketState, bool) {
	job := p.sendfile
	p.sendfile = nil

	if p.broken {
		if job != nil {
			_ = job.Close()
		}

		return transport.Closed, false
	}

	if p.keepAlive && !p.input.drain() {
		p.keepAlive = false
	}

	if job != nil {
		if p.sock.AsyncSendfile() && p.in.Empty() {
			job.KeepAlive = p.keepAlive
			p.sock.SetSendfile(job)
			p.nextRequest()
			return transport.Sendfile, false
		}

		_ = p.sock.SetWriteTimeout(p.cfg.NET.SocketTimeout)
		_, err := p.sock.Transmit(job)
		_ = job.Close()
		if err != nil {
			p.log.Debugf("http1: sendfile: %s", err)
			return transport.Closed, false
		}
	}

	if !p.keepAlive {
		return transport.Closed, false
	}

	p.nextRequest()
	p.setStage(Idle)
	return transport.Open, true
}

// abandon handles errors after which no response can be sent.
func (p *Processor) abandon(err error) transport.SocketState {
	switch {
	case errors.Is(err, errNoData):
		return transport.Open
	case errors.Is(err, errIdle):
		if p.sock.Pollable() {
			return transport.Open
		}
	case errors.Is(err, errDraining):
	case errors.Is(err, status.ErrRequestLineTooLong):
		p.log.Debugf("http1: %s: %s", p.sock.RemoteAddr(), err)
	case transport.IsClientAbort(err), transport.IsTimeout(err):
	default:
		p.log.Debugf("http1: reading request: %s", err)
	}

	return transport.Closed
}

// respondable tells whether the client may be answered with the status the error carries.
func respondable(err error) bool {
	var httpErr status.HTTPError
	return errors.As(err, &httpErr) && httpErr.Code != status.CloseConnection
}

// reject responds to a request which didn't make it to the adapter.
func (p *Processor) reject(err error) {
	p.log.Debugf("http1: %s: rejecting request: %s", p.sock.RemoteAddr(), err)
	p.request.Env.Error = err
	p.response.Error(err)
	p.keepAlive = false
	_ = p.adapter.Event(p.request, p.response, true)
}

func (p *Processor) service() {
	err := p.callAdapter()
	if err == nil {
		return
	}

	p.request.Env.Error = err
	committed := p.response.Expose().Committed

	var httpErr status.HTTPError
	switch {
	case errors.Is(err, status.ErrClientAbort), transport.IsClientAbort(err):
		p.keepAlive = false
		p.broken = true
	case errors.As(err, &httpErr) && !committed:
		p.log.Debugf("http1: %s %s: %s", p.request.MethodToken, p.request.URI, err)
		_ = p.response.Reset()
		p.response.Code(httpErr.Code)
	default:
		p.log.Errorf("http1: %s %s: %s", p.request.MethodToken, p.request.URI, err)
		p.keepAlive = false
		if committed {
			// the response can't be altered, so the only signal left is closing the connection
			p.broken = true
			return
		}

		_ = p.response.Reset()
		p.response.Code(status.InternalServerError)
	}
}

func (p *Processor) callAdapter() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && errors.Is(e, status.ErrClientAbort) {
				err = e
				return
			}

			err = fmt.Errorf("adapter panicked: %v\n%s", r, debug.Stack())
		}
	}()

	return p.adapter.Service(p.request, p.response)
}

// nextRequest clears the per-request state. Pipelined bytes stay in the input chunk.
func (p *Processor) nextRequest() {
	p.request.Recycle()
	p.response.Recycle()
	p.input.reset()
	p.output.reset()
	p.out.Reset()
	p.headerEnd = 0
	p.finished = false
	p.acked = false
}

func (p *Processor) bind(sock *transport.Socket) {
	if !p.bound.CompareAndSwap(false, true) {
		panic("http1: processor is already bound to a socket")
	}

	p.sock = sock
	p.in.SetSource(sock)
	p.out.SetSink((*sink)(p))
}

func (p *Processor) unbind() {
	p.setStage(Closing)
	p.Recycle()
	p.setStage(Idle)
	p.bound.Store(false)
}

// Recycle drops everything bound to the connection, so the processor may be used for
// another one.
func (p *Processor) Recycle() {
	p.nextRequest()
	p.in.Recycle()
	p.out.Recycle()
	p.peers = peerCache{}
	p.keepAlive = false
	p.broken = false
	p.sock = nil
	if p.sendfile != nil {
		_ = p.sendfile.Close()
		p.sendfile = nil
	}
}

// fill reads more data into the input chunk, waiting no longer than the timeout.
func (p *Processor) fill(timeout time.Duration) error {
	if err := p.sock.SetReadTimeout(timeout); err != nil {
		return err
	}

	_, err := p.in.Fill()
	return err
}

// sink is the processor viewed as the destination of the output chunk.
type sink Processor

func (s *sink) Write(b []byte) (int, error) {
	_ = s.sock.SetWriteTimeout(s.cfg.NET.SocketTimeout)
	n, err := s.sock.Write(b)
	if err != nil {
		s.broken = true
	}

	return n, err
}
