package transport

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/indigo-web/connector/config"
	"github.com/indigo-web/connector/internal/logging"
	"github.com/indigo-web/connector/internal/timer"
)

var (
	// ErrStopped is returned by accepts once the endpoint is stopped.
	ErrStopped  = errors.New("endpoint is stopped")
	ErrNotBound = errors.New("endpoint is not bound")
	ErrBound    = errors.New("endpoint is already bound")
)

const (
	// maxReinitAttempts is how many times a faulty listener is rebound before the error
	// is escalated to Serve.
	maxReinitAttempts = 5
	reinitBackoff     = 50 * time.Millisecond
	maxAcceptBackoff  = time.Second
)

// strategy is how an endpoint distributes accepted connections between goroutines.
type strategy interface {
	// start launches acceptors and workers. It must not block.
	start()
	// stop releases idle workers once nothing is accepted anymore.
	stop()
	counts() (live, busy, idle int)
}

// Endpoint owns the listening socket and serves accepted connections with the handler
// according to the configured strategy.
type Endpoint struct {
	cfg     *config.Config
	handler Handler
	log     *logging.Logger
	tls     *tls.Config
	strategy

	// poller and sendfiles are only set by the strategies using them
	poller    poller
	sendfiles *sendfiler

	lmu  sync.Mutex
	l    *net.TCPListener
	addr string

	smu     sync.Mutex
	sockets map[*Socket]struct{}

	wg       sync.WaitGroup
	stopping atomic.Bool
	stopOnce sync.Once
	stopped  chan struct{}
	fatal    chan error

	accepted  atomic.Uint64
	processed atomic.Uint64
	sendfiled atomic.Uint64
	reinits   atomic.Uint64
}

// New returns an endpoint running the strategy set in the config. The config must be
// valid and must not be modified afterwards.
func New(cfg *config.Config, handler Handler, log *logging.Logger) *Endpoint {
	e := &Endpoint{
		cfg:     cfg,
		handler: handler,
		log:     log,
		sockets: make(map[*Socket]struct{}),
		stopped: make(chan struct{}),
		fatal:   make(chan error, 1),
	}

	switch cfg.Workers.Strategy {
	case config.Simple:
		e.strategy = newSimple(e)
	case config.LeaderFollower:
		e.strategy = newLeaderFollower(e)
	case config.Poll:
		e.strategy = newPoll(e)
	case config.Native:
		e.strategy = newNative(e)
	default:
		e.strategy = newMasterSlave(e)
	}

	return e
}

// Bind validates the config and opens the listening socket. Accepted connections are
// encrypted if the TLS config is passed.
func (e *Endpoint) Bind(addr string, tlsConfig *tls.Config) error {
	e.lmu.Lock()
	defer e.lmu.Unlock()

	if e.l != nil {
		return ErrBound
	}

	if err := e.cfg.Validate(); err != nil {
		return err
	}

	l, err := listen(addr, e.cfg.NET.Backlog)
	if err != nil {
		return err
	}

	e.l, e.tls = l, tlsConfig
	// rebinding must end up on the same port, even if the ephemeral one was requested
	e.addr = l.Addr().String()

	return nil
}

// Serve runs the strategy and blocks until the endpoint is stopped or the listener
// fails beyond recovery.
func (e *Endpoint) Serve() error {
	if e.listener() == nil {
		return ErrNotBound
	}

	if err := e.startServices(); err != nil {
		return err
	}

	e.log.Infof("transport: %s endpoint is listening on %s", e.cfg.Workers.Strategy, e.addr)
	e.strategy.start()

	var err error
	select {
	case <-e.stopped:
	case err = <-e.fatal:
		e.log.Errorf("transport: endpoint on %s failed: %s", e.addr, err)
		e.Stop()
	}

	return err
}

func (e *Endpoint) startServices() (err error) {
	if e.cfg.Workers.Strategy.Polls() {
		if e.poller, err = newPoller(e, e.strategy.(dispatcher).dispatch); err != nil {
			return fmt.Errorf("transport: poller: %w", err)
		}
	}

	if e.cfg.Workers.Strategy == config.Native && e.cfg.Workers.UseSendfile {
		e.sendfiles = newSendfiler(e)
		e.goroutine(e.sendfiles.run)
	}

	return nil
}

// Stop stops accepting connections, closes the idle ones and asks the busy ones to
// close after the current request. It doesn't wait for them, see Wait.
func (e *Endpoint) Stop() {
	e.stopOnce.Do(func() {
		e.stopping.Store(true)
		close(e.stopped)

		if l := e.listener(); l != nil {
			_ = l.Close()
		}

		if e.poller != nil {
			e.poller.close()
		}

		e.smu.Lock()
		for sock := range e.sockets {
			sock.Drain()
		}
		e.smu.Unlock()

		e.strategy.stop()

		e.log.Infof("transport: endpoint on %s is stopped", e.addr)
	})
}

// Close stops the endpoint and closes every connection immediately.
func (e *Endpoint) Close() {
	e.Stop()

	e.smu.Lock()
	for sock := range e.sockets {
		_ = sock.Close()
	}
	e.smu.Unlock()
}

// Wait blocks until every goroutine of the endpoint is gone.
func (e *Endpoint) Wait() {
	e.wg.Wait()
}

// Addr returns the address the endpoint is bound to, or nil.
func (e *Endpoint) Addr() net.Addr {
	if l := e.listener(); l != nil {
		return l.Addr()
	}

	return nil
}

func (e *Endpoint) listener() *net.TCPListener {
	e.lmu.Lock()
	defer e.lmu.Unlock()

	return e.l
}

func (e *Endpoint) goroutine(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

// accept blocks until a connection is accepted or the endpoint is stopped. The call is
// interrupted every ServerSocketTimeout to check whether it's time to stop. Faults of
// the listener itself are recovered by rebinding.
func (e *Endpoint) accept() (net.Conn, error) {
	var backoff time.Duration

	for !e.stopping.Load() {
		l := e.listener()
		err := l.SetDeadline(time.Now().Add(e.cfg.NET.ServerSocketTimeout))
		if err == nil {
			var conn net.Conn
			if conn, err = l.Accept(); err == nil {
				e.accepted.Add(1)
				return conn, nil
			}
		}

		switch {
		case e.stopping.Load():
			return nil, ErrStopped
		case IsTimeout(err):
			continue
		case isTemporary(err):
			backoff = min(max(2*backoff, 5*time.Millisecond), maxAcceptBackoff)
			e.log.Warnf("transport: accept: %s, retrying in %s", err, backoff)
			time.Sleep(backoff)
			continue
		}

		backoff = 0
		if err = e.reinit(l, err); err != nil {
			return nil, err
		}
	}

	return nil, ErrStopped
}

// isTemporary reports accept errors caused by the lack of resources or by the peer,
// so the listener itself is fine.
func isTemporary(err error) bool {
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ENOBUFS) ||
		errors.Is(err, syscall.ENOMEM) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EINTR)
}

// reinit closes the faulty listener and binds a new one on the same address. Nothing
// is done if another acceptor has already replaced it.
func (e *Endpoint) reinit(faulty *net.TCPListener, cause error) error {
	e.lmu.Lock()
	defer e.lmu.Unlock()

	if e.l != faulty {
		return nil
	}

	e.log.Warnf("transport: listener on %s failed: %s, re-initializing", e.addr, cause)
	_ = faulty.Close()

	var err error
	for attempt := 1; attempt <= maxReinitAttempts; attempt++ {
		if e.stopping.Load() {
			return ErrStopped
		}

		var l *net.TCPListener
		if l, err = listen(e.addr, e.cfg.NET.Backlog); err == nil {
			e.l = l
			e.reinits.Add(1)
			return nil
		}

		e.log.Warnf("transport: rebinding %s (attempt %d): %s", e.addr, attempt, err)
		time.Sleep(time.Duration(attempt) * reinitBackoff)
	}

	return fmt.Errorf("transport: listener on %s can't be re-initialized: %w", e.addr, err)
}

// fail escalates the error to Serve. Only the first one matters.
func (e *Endpoint) fail(err error) {
	if errors.Is(err, ErrStopped) {
		return
	}

	select {
	case e.fatal <- err:
	default:
	}
}

// newSocket configures the accepted connection and wraps it. The TLS handshake is
// postponed until the socket gets to a worker.
func (e *Endpoint) newSocket(conn net.Conn) *Socket {
	if tcp, ok := conn.(*net.TCPConn); ok {
		if e.cfg.NET.SoLinger >= 0 {
			_ = tcp.SetLinger(e.cfg.NET.SoLinger)
		}

		_ = tcp.SetNoDelay(e.cfg.NET.TCPNoDelay)
	}

	if e.tls != nil {
		conn = tls.Server(conn, e.tls)
	}

	sock := NewSocket(conn, e.cfg.HTTP.MaxKeepAliveRequests)
	sock.SetPollable(e.poller != nil && e.poller.supports(sock))
	sock.SetAsyncSendfile(e.sendfiles != nil)

	e.smu.Lock()
	e.sockets[sock] = struct{}{}
	e.smu.Unlock()

	if e.stopping.Load() {
		sock.Drain()
	}

	return sock
}

func (e *Endpoint) closeSocket(sock *Socket) {
	_ = sock.Close()

	e.smu.Lock()
	delete(e.sockets, sock)
	e.smu.Unlock()
}

// handshake completes the TLS handshake, if it's still pending, within the socket timeout.
func (e *Endpoint) handshake(sock *Socket) error {
	if sock.tls == nil || sock.tls.ConnectionState().HandshakeComplete {
		return nil
	}

	if err := sock.conn.SetDeadline(timer.Now().Add(e.cfg.NET.SocketTimeout)); err != nil {
		return err
	}

	if err := sock.tls.Handshake(); err != nil {
		return err
	}

	return sock.conn.SetDeadline(time.Time{})
}

// process runs the handler over the socket and decides its fate by the returned state.
// The calling goroutine is free once it returns.
func (e *Endpoint) process(sock *Socket) {
	if err := e.handshake(sock); err != nil {
		e.log.Debugf("transport: %s: tls handshake: %s", sock.RemoteAddr(), err)
		e.closeSocket(sock)
		return
	}

	for {
		e.processed.Add(1)
		switch state := e.handler.Process(sock); state {
		case Open:
			if sock.Pollable() {
				e.poller.park(sock)
				return
			}

			// there's nothing to wait for the data with, so the worker keeps the socket
		case Sendfile:
			job := sock.takeSendfile()
			if job == nil {
				e.closeSocket(sock)
				return
			}

			e.sendfiled.Add(1)
			if e.sendfiles != nil {
				e.sendfiles.submit(sock, job)
				return
			}

			if !e.transmit(sock, job) {
				return
			}
		default:
			e.closeSocket(sock)
			return
		}
	}
}

// transmit writes the file into the socket. False is returned if the socket is closed
// afterwards.
func (e *Endpoint) transmit(sock *Socket, job *SendfileJob) bool {
	_ = sock.SetWriteTimeout(e.cfg.NET.SocketTimeout)
	_, err := sock.Transmit(job)
	_ = job.Close()

	if err != nil || !job.KeepAlive {
		if err != nil {
			e.log.Debugf("transport: %s: sendfile: %s", sock.RemoteAddr(), err)
		}

		e.closeSocket(sock)
		return false
	}

	return true
}

// resume gets the socket back to work after it was idle or its file was transmitted.
func (e *Endpoint) resume(sock *Socket) {
	if sock.Pollable() {
		e.poller.park(sock)
		return
	}

	e.strategy.(dispatcher).dispatch(sock)
}

// dispatcher is implemented by the strategies owning an executor, so idle sockets get
// back to work without holding a worker.
type dispatcher interface {
	dispatch(sock *Socket)
}
