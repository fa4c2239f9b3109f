package transport

import "sync"

// simple runs acceptors which process the accepted connection by themselves. Whenever
// an acceptor gets busy, a new one is spawned so there are always MinSpareThreads
// accepting, and acceptors beyond MaxSpareThreads exit once they're done.
type simple struct {
	e       *Endpoint
	mu      sync.Mutex
	live    int
	busy    int
	stopped bool
}

func newSimple(e *Endpoint) *simple {
	return &simple{e: e}
}

func (s *simple) start() {
	s.mu.Lock()
	s.regulate()
	s.mu.Unlock()
}

// regulate spawns acceptors until there are enough idle ones. At least one is always
// accepting unless MaxThreads are busy. Must be called under the lock.
func (s *simple) regulate() {
	spare := max(s.e.cfg.Workers.MinSpareThreads, 1)
	for !s.stopped && s.live-s.busy < spare && s.live < s.e.cfg.Workers.MaxThreads {
		s.live++
		s.e.goroutine(s.acceptor)
	}
}

func (s *simple) acceptor() {
	for {
		conn, err := s.e.accept()
		if err != nil {
			s.mu.Lock()
			s.live--
			s.mu.Unlock()

			s.e.fail(err)
			return
		}

		s.mu.Lock()
		s.busy++
		s.regulate()
		s.mu.Unlock()

		s.e.process(s.e.newSocket(conn))

		if s.retire() {
			return
		}
	}
}

// retire tells whether the acceptor done with its connection must exit.
func (s *simple) retire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.busy--
	idle := s.live - s.busy
	if s.stopped || (idle > s.e.cfg.Workers.MaxSpareThreads && idle > 1) {
		s.live--
		return true
	}

	return false
}

func (s *simple) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

func (s *simple) counts() (live, busy, idle int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.live, s.busy, s.live - s.busy
}
