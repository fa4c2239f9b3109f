package transport

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/indigo-web/connector/internal/timer"
)

// SocketState is what the handler reports after processing a socket.
type SocketState uint8

const (
	// Closed means the socket is fully handled and must be closed.
	Closed SocketState = iota
	// Open means the connection is idle and waits for the next request. The socket is
	// parked in the poller, if the endpoint has one.
	Open
	// Sendfile means the response body is to be transmitted by the sendfile goroutine.
	Sendfile
)

func (s SocketState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case Sendfile:
		return "sendfile"
	default:
		return "unknown"
	}
}

// Handler drives the protocol over an accepted socket.
type Handler interface {
	Process(sock *Socket) SocketState
}

type HandlerFunc func(sock *Socket) SocketState

func (h HandlerFunc) Process(sock *Socket) SocketState {
	return h(sock)
}

// SendfileJob is a file region to be written into the socket. The file is closed once
// the transmission is over.
type SendfileJob struct {
	File   *os.File
	Offset int64
	Length int64
	// KeepAlive tells whether the connection goes back to the poller after the
	// transmission instead of being closed.
	KeepAlive bool
}

func (j *SendfileJob) Close() error {
	return j.File.Close()
}

// Socket is an accepted connection together with the state which must survive across
// the bindings to processors.
type Socket struct {
	conn net.Conn
	tcp  *net.TCPConn
	tls  *tls.Conn
	// KeepAliveLeft is the number of requests the connection may still serve. Negative
	// means unlimited.
	KeepAliveLeft int
	// sendfile is guarded, as the socket may be closed by the stopping endpoint while
	// the worker schedules the job.
	sendfileMu    sync.Mutex
	sendfile      *SendfileJob
	pollable      bool
	asyncSendfile bool
	// idleSince is when the socket was parked in the poller.
	idleSince time.Time
	// peek holds a byte consumed while waiting for the socket readiness.
	peek     [1]byte
	peeked   bool
	closed   atomic.Bool
	draining atomic.Bool
}

// NewSocket wraps the connection. Zero or negative keepAliveRequests mean no limit.
func NewSocket(conn net.Conn, keepAliveRequests int) *Socket {
	if keepAliveRequests <= 0 {
		keepAliveRequests = -1
	}

	sock := &Socket{
		conn:          conn,
		KeepAliveLeft: keepAliveRequests,
	}

	switch c := conn.(type) {
	case *net.TCPConn:
		sock.tcp = c
	case *tls.Conn:
		sock.tls = c
		sock.tcp, _ = c.NetConn().(*net.TCPConn)
	}

	return sock
}

func (s *Socket) Read(b []byte) (int, error) {
	if s.peeked && len(b) > 0 {
		s.peeked = false
		b[0] = s.peek[0]
		return 1, nil
	}

	return s.conn.Read(b)
}

// unread makes the byte being returned by the next Read.
func (s *Socket) unread(b byte) {
	s.peek[0] = b
	s.peeked = true
}

func (s *Socket) Write(b []byte) (int, error) {
	return s.conn.Write(b)
}

// SetReadTimeout limits the next reads by the duration. Zero disables the limit.
func (s *Socket) SetReadTimeout(d time.Duration) error {
	if d <= 0 {
		return s.conn.SetReadDeadline(time.Time{})
	}

	return s.conn.SetReadDeadline(timer.Now().Add(d))
}

// SetWriteTimeout limits the next writes by the duration. Zero disables the limit.
func (s *Socket) SetWriteTimeout(d time.Duration) error {
	if d <= 0 {
		return s.conn.SetWriteDeadline(time.Time{})
	}

	return s.conn.SetWriteDeadline(timer.Now().Add(d))
}

func (s *Socket) Conn() net.Conn {
	return s.conn
}

func (s *Socket) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// TLS returns the state of the TLS session, if the connection is encrypted.
func (s *Socket) TLS() (state tls.ConnectionState, ok bool) {
	if s.tls == nil {
		return state, false
	}

	return s.tls.ConnectionState(), true
}

// Pollable tells whether the socket may be parked in the poller while idle. Processors
// return Open instead of waiting for the next request on such sockets.
func (s *Socket) Pollable() bool {
	return s.pollable
}

// SetPollable marks the socket as one the endpoint is able to poll for readiness.
func (s *Socket) SetPollable(pollable bool) {
	s.pollable = pollable
}

// SetAsyncSendfile marks the socket as one the endpoint transmits files for by itself.
func (s *Socket) SetAsyncSendfile(async bool) {
	s.asyncSendfile = async
}

// AsyncSendfile tells whether file transmissions are done by the endpoint. Otherwise,
// they must be done in place via Transmit.
func (s *Socket) AsyncSendfile() bool {
	return s.asyncSendfile
}

// SetSendfile schedules the job for the endpoint. The handler must return Sendfile.
// Jobs scheduled on a closed socket are closed at once.
func (s *Socket) SetSendfile(job *SendfileJob) {
	s.sendfileMu.Lock()
	if job != nil && s.closed.Load() {
		s.sendfileMu.Unlock()
		_ = job.Close()
		return
	}

	s.sendfile = job
	s.sendfileMu.Unlock()
}

// Sendfile returns the scheduled job, if any.
func (s *Socket) Sendfile() *SendfileJob {
	s.sendfileMu.Lock()
	defer s.sendfileMu.Unlock()

	return s.sendfile
}

// takeSendfile returns the scheduled job, passing its ownership to the caller.
func (s *Socket) takeSendfile() *SendfileJob {
	s.sendfileMu.Lock()
	job := s.sendfile
	s.sendfile = nil
	s.sendfileMu.Unlock()

	return job
}

// Transmit writes the file region into the socket. Plain TCP connections do it via the
// sendfile(2) where supported.
func (s *Socket) Transmit(job *SendfileJob) (n int64, err error) {
	if _, err = job.File.Seek(job.Offset, io.SeekStart); err != nil {
		return 0, err
	}

	src := &io.LimitedReader{R: job.File, N: job.Length}
	if s.tcp != nil && s.tls == nil {
		// ReadFrom recognizes *io.LimitedReader over *os.File and does the zero-copy transfer
		return s.tcp.ReadFrom(src)
	}

	return io.Copy(s.conn, src)
}

// Close closes the connection. Subsequent calls are no-ops.
func (s *Socket) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	if job := s.takeSendfile(); job != nil {
		_ = job.Close()
	}

	return s.conn.Close()
}

func (s *Socket) Closed() bool {
	return s.closed.Load()
}

// Drain asks the processor to close the connection after the current request instead of
// waiting for the next one. It's safe to call from any goroutine.
func (s *Socket) Drain() {
	s.draining.Store(true)
}

func (s *Socket) Draining() bool {
	return s.draining.Load()
}

// IsTimeout reports whether the error is caused by an exceeded deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsClientAbort reports whether the error means the peer is gone, so nothing can be
// written back anymore.
func IsClientAbort(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED)
}
