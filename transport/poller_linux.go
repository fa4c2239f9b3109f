//go:build linux

package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/indigo-web/connector/internal/timer"
	"golang.org/x/sys/unix"
)

const (
	maxEpollEvents = 256
	parkEvents     = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLONESHOT
)

// epoller waits for parked sockets in its own epoll instance. The runtime keeps the
// descriptors in its netpoller too, which is fine as long as only one of them is waited
// for at a time: parked sockets aren't read by anyone until they're dispatched.
type epoller struct {
	e        *Endpoint
	dispatch func(*Socket)
	epfd     int
	// wake is an eventfd interrupting the wait when the poller is closed.
	wake    int
	mu      sync.Mutex
	sockets map[int32]*Socket
	closed  bool
	done    chan struct{}
}

func newPoller(e *Endpoint, dispatch func(*Socket)) (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	wake, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}

	err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wake, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wake),
	})
	if err != nil {
		_ = unix.Close(wake)
		_ = unix.Close(epfd)
		return nil, err
	}

	p := &epoller{
		e:        e,
		dispatch: dispatch,
		epfd:     epfd,
		wake:     wake,
		sockets:  make(map[int32]*Socket),
		done:     make(chan struct{}),
	}
	e.goroutine(p.run)

	return p, nil
}

// supports only plain TCP sockets: TLS connections may have decrypted data buffered,
// which epoll doesn't know about.
func (p *epoller) supports(sock *Socket) bool {
	return sock.tcp != nil && sock.tls == nil
}

func (p *epoller) park(sock *Socket) {
	fd, err := descriptor(sock)
	if err != nil {
		p.e.log.Debugf("transport: %s: can't be polled: %s", sock.RemoteAddr(), err)
		p.e.closeSocket(sock)
		return
	}

	sock.idleSince = timer.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.e.closeSocket(sock)
		return
	}

	p.sockets[fd] = sock
	err = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(fd), &unix.EpollEvent{
		Events: parkEvents,
		Fd:     fd,
	})
	if err != nil {
		delete(p.sockets, fd)
	}
	p.mu.Unlock()

	if err != nil {
		p.e.log.Warnf("transport: epoll: parking %s: %s", sock.RemoteAddr(), err)
		p.e.closeSocket(sock)
	}
}

func descriptor(sock *Socket) (int32, error) {
	raw, err := sock.tcp.SyscallConn()
	if err != nil {
		return 0, err
	}

	var fd int32
	err = raw.Control(func(s uintptr) {
		fd = int32(s)
	})

	return fd, err
}

func (p *epoller) run() {
	defer close(p.done)

	var (
		events    [maxEpollEvents]unix.EpollEvent
		interval  = p.e.cfg.Workers.PollInterval
		lastSweep = timer.Now()
	)

	for {
		n, err := unix.EpollWait(p.epfd, events[:], int(interval/time.Millisecond))
		if err != nil && !errors.Is(err, unix.EINTR) {
			p.e.log.Errorf("transport: epoll: %s", err)
			p.release()
			return
		}

		for i := 0; i < n; i++ {
			fd := events[i].Fd
			if int(fd) == p.wake {
				if p.isClosed() {
					p.release()
					return
				}

				continue
			}

			if sock := p.take(fd); sock != nil {
				p.dispatch(sock)
			}
		}

		if timer.Since(lastSweep) >= interval {
			lastSweep = timer.Now()
			p.sweep(lastSweep)
		}
	}
}

// take removes the socket from the poller. Nil is returned if it's gone already.
func (p *epoller) take(fd int32) *Socket {
	p.mu.Lock()
	defer p.mu.Unlock()

	sock, ok := p.sockets[fd]
	if !ok {
		return nil
	}

	delete(p.sockets, fd)
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)

	return sock
}

// sweep closes sockets which were idle for longer than the keep-alive timeout.
func (p *epoller) sweep(now time.Time) {
	timeout := p.e.cfg.NET.KeepAliveTimeout
	var expired []*Socket

	p.mu.Lock()
	for fd, sock := range p.sockets {
		if now.Sub(sock.idleSince) >= timeout {
			delete(p.sockets, fd)
			_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
			expired = append(expired, sock)
		}
	}
	p.mu.Unlock()

	for _, sock := range expired {
		p.e.closeSocket(sock)
	}
}

func (p *epoller) parked() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.sockets)
}

func (p *epoller) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

func (p *epoller) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	p.closed = true
	p.mu.Unlock()

	var one = [8]byte{1}
	if _, err := unix.Write(p.wake, one[:]); err != nil {
		p.e.log.Errorf("transport: epoll: waking up: %s", err)
	}

	<-p.done
}

// release closes every parked socket together with the epoll instance.
func (p *epoller) release() {
	p.mu.Lock()
	p.closed = true
	sockets := p.sockets
	p.sockets = make(map[int32]*Socket)
	p.mu.Unlock()

	for _, sock := range sockets {
		p.e.closeSocket(sock)
	}

	_ = unix.Close(p.wake)
	_ = unix.Close(p.epfd)
}
