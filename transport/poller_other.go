//go:build !linux

package transport

import "sync"

// peeker waits for each parked socket in a goroutine of its own by reading a single
// byte, which is given back to the socket once it's dispatched. The goroutines are
// cheap while blocked in the runtime netpoller, but unlike the epoll one, this poller
// doesn't free them.
type peeker struct {
	e        *Endpoint
	dispatch func(*Socket)
	mu       sync.Mutex
	sockets  map[*Socket]struct{}
	closed   bool
}

func newPoller(e *Endpoint, dispatch func(*Socket)) (poller, error) {
	return &peeker{
		e:        e,
		dispatch: dispatch,
		sockets:  make(map[*Socket]struct{}),
	}, nil
}

func (p *peeker) supports(*Socket) bool {
	return true
}

func (p *peeker) park(sock *Socket) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.e.closeSocket(sock)
		return
	}

	p.sockets[sock] = struct{}{}
	p.mu.Unlock()

	p.e.goroutine(func() {
		p.wait(sock)
	})
}

func (p *peeker) wait(sock *Socket) {
	var b [1]byte

	_ = sock.SetReadTimeout(p.e.cfg.NET.KeepAliveTimeout)
	n, err := sock.conn.Read(b[:])

	p.mu.Lock()
	_, owned := p.sockets[sock]
	delete(p.sockets, sock)
	p.mu.Unlock()

	if !owned {
		// closed by the poller
		return
	}

	if n == 0 || err != nil {
		p.e.closeSocket(sock)
		return
	}

	sock.unread(b[0])
	p.dispatch(sock)
}

func (p *peeker) parked() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.sockets)
}

func (p *peeker) close() {
	p.mu.Lock()
	p.closed = true
	sockets := p.sockets
	p.sockets = make(map[*Socket]struct{})
	p.mu.Unlock()

	for sock := range sockets {
		p.e.closeSocket(sock)
	}
}
