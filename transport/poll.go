package transport

// poll never lets a worker wait for the data. Accepted connections as well as the ones
// woken up by the poller go into the executor queue, and workers give sockets back to
// the poller as soon as nothing is buffered. The acceptor does nothing but accepting.
type poll struct {
	e     *Endpoint
	stack *workerStack
	exec  *executor
}

func newPoll(e *Endpoint) *poll {
	stack := newWorkerStack(e)

	return &poll{
		e:     e,
		stack: stack,
		exec:  newExecutor(e, stack),
	}
}

func (p *poll) start() {
	p.stack.prestart()
	p.e.goroutine(p.exec.run)
	p.e.goroutine(p.acceptor)
}

func (p *poll) acceptor() {
	for {
		conn, err := p.e.accept()
		if err != nil {
			p.e.fail(err)
			return
		}

		p.exec.submit(p.e.newSocket(conn))
	}
}

func (p *poll) dispatch(sock *Socket) {
	p.exec.submit(sock)
}

func (p *poll) stop() {
	p.stack.stop()
}

func (p *poll) counts() (live, busy, idle int) {
	return p.stack.counts()
}
