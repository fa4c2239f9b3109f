package transport

import "sync"

// worker is a goroutine waiting for a socket to process. Sockets are handed over the
// unbuffered channel, so the one who acquired the worker owns it until the socket is
// received.
type worker struct {
	sockets chan *Socket
}

// workerStack is a LIFO of idle workers. The most recently used worker is reused first,
// so the rest of them may retire. The number of idle workers is kept between the spare
// watermarks, while the number of live ones never exceeds MaxThreads.
type workerStack struct {
	e    *Endpoint
	mu   sync.Mutex
	cond *sync.Cond
	idle []*worker
	live int
	busy int
	// stopped workers retire instead of going back to the stack
	stopped bool
}

func newWorkerStack(e *Endpoint) *workerStack {
	s := &workerStack{e: e}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// prestart spawns the minimal amount of spare workers.
func (s *workerStack) prestart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replenish()
}

// replenish spawns workers until there are enough spare ones. Must be called under the lock.
func (s *workerStack) replenish() {
	for len(s.idle) < s.e.cfg.Workers.MinSpareThreads && s.live < s.e.cfg.Workers.MaxThreads {
		s.spawn()
	}
}

// spawn must be called under the lock.
func (s *workerStack) spawn() {
	w := &worker{sockets: make(chan *Socket)}
	s.live++
	s.idle = append(s.idle, w)
	s.e.goroutine(func() {
		s.work(w)
	})
}

func (s *workerStack) work(w *worker) {
	for sock := range w.sockets {
		s.e.process(sock)
		if !s.release(w) {
			return
		}
	}
}

// acquire takes an idle worker, spawning a new one if possible. If there are MaxThreads
// workers busy already, it blocks until one of them is released. Nil is returned once
// the stack is stopped.
func (s *workerStack) acquire() *worker {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.stopped {
			return nil
		}

		if n := len(s.idle); n > 0 {
			w := s.idle[n-1]
			s.idle[n-1] = nil
			s.idle = s.idle[:n-1]
			s.busy++
			s.replenish()

			return w
		}

		if s.live < s.e.cfg.Workers.MaxThreads {
			s.spawn()
			continue
		}

		s.cond.Wait()
	}
}

// assign hands the socket over to the acquired worker.
func (s *workerStack) assign(w *worker, sock *Socket) {
	w.sockets <- sock
}

// giveBack returns the acquired worker which got no socket.
func (s *workerStack) giveBack(w *worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.busy--
	if s.stopped {
		s.live--
		close(w.sockets)
		return
	}

	s.idle = append(s.idle, w)
	s.cond.Signal()
}

// release returns the worker to the stack after it's done with the socket. False means
// there are enough spare workers already, so this one must exit.
func (s *workerStack) release(w *worker) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.busy--
	defer s.cond.Signal()

	if s.stopped || len(s.idle) >= s.e.cfg.Workers.MaxSpareThreads {
		s.live--
		return false
	}

	s.idle = append(s.idle, w)
	return true
}

// stop makes idle workers exit and busy ones to exit after they're done.
func (s *workerStack) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for _, w := range s.idle {
		close(w.sockets)
	}

	s.live -= len(s.idle)
	s.idle = nil
	s.cond.Broadcast()
}

func (s *workerStack) counts() (live, busy, idle int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.live, s.busy, len(s.idle)
}

// executor queues sockets ready to be processed and hands them over to the workers in
// the order they came. Submitting blocks while the queue is full.
type executor struct {
	e     *Endpoint
	stack *workerStack
	queue chan *Socket
}

func newExecutor(e *Endpoint, stack *workerStack) *executor {
	return &executor{
		e:     e,
		stack: stack,
		queue: make(chan *Socket, max(e.cfg.NET.Backlog, 1)),
	}
}

func (x *executor) submit(sock *Socket) {
	select {
	case x.queue <- sock:
	case <-x.e.stopped:
		x.e.closeSocket(sock)
	}
}

func (x *executor) run() {
	for {
		select {
		case sock := <-x.queue:
			w := x.stack.acquire()
			if w == nil {
				x.e.closeSocket(sock)
				continue
			}

			x.stack.assign(w, sock)
		case <-x.e.stopped:
			for {
				select {
				case sock := <-x.queue:
					x.e.log.Debugf("transport: %s: dropped from the queue on shutdown", sock.RemoteAddr())
					x.e.closeSocket(sock)
				default:
					return
				}
			}
		}
	}
}
