package transport

import "sync/atomic"

// masterSlave runs a single acceptor handing connections to the worker stack. A
// connection is accepted only when there's a worker to take it, so the excess waits in
// the listener backlog.
type masterSlave struct {
	e     *Endpoint
	stack *workerStack
	// holding is set while the acceptor has a worker reserved for the next connection
	holding atomic.Bool
}

func newMasterSlave(e *Endpoint) *masterSlave {
	return &masterSlave{
		e:     e,
		stack: newWorkerStack(e),
	}
}

func (m *masterSlave) start() {
	m.stack.prestart()
	m.e.goroutine(m.acceptor)
}

func (m *masterSlave) acceptor() {
	for {
		w := m.stack.acquire()
		if w == nil {
			return
		}

		m.holding.Store(true)
		conn, err := m.e.accept()
		m.holding.Store(false)
		if err != nil {
			m.stack.giveBack(w)
			m.e.fail(err)
			return
		}

		m.stack.assign(w, m.e.newSocket(conn))
	}
}

func (m *masterSlave) stop() {
	m.stack.stop()
}

// counts doesn't report the reserved worker neither busy nor idle.
func (m *masterSlave) counts() (live, busy, idle int) {
	live, busy, idle = m.stack.counts()
	if m.holding.Load() {
		busy--
	}

	return live, busy, idle
}
