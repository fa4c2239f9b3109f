package transport

import (
	"crypto/tls"
	"sync/atomic"
)

// Supervisor runs a number of endpoints as a whole: once one of them fails, the rest
// are stopped too.
type Supervisor struct {
	stopped   *atomic.Bool
	endpoints []*Endpoint
}

func NewSupervisor() Supervisor {
	return Supervisor{
		stopped: new(atomic.Bool),
	}
}

// Add binds the endpoint. If binding fails, every endpoint added before is closed.
func (s *Supervisor) Add(e *Endpoint, addr string, tlsConfig *tls.Config) error {
	if err := e.Bind(addr, tlsConfig); err != nil {
		s.Close()
		return err
	}

	s.endpoints = append(s.endpoints, e)
	return nil
}

// Run serves all the endpoints and blocks until every one of them returned. The first
// error is reported.
func (s *Supervisor) Run() error {
	if len(s.endpoints) == 0 {
		return nil
	}

	errch := make(chan error, len(s.endpoints))
	for _, e := range s.endpoints {
		go func(e *Endpoint) {
			errch <- e.Serve()
		}(e)
	}

	var first error
	for range s.endpoints {
		if err := <-errch; err != nil && first == nil {
			first = err
			s.Stop()
		}
	}

	return first
}

// Stop stops accepting connections on every endpoint. Busy connections are completed.
func (s *Supervisor) Stop() {
	if s.stopped.Swap(true) {
		return
	}

	for _, e := range s.endpoints {
		e.Stop()
	}
}

// Close stops every endpoint and closes the connections immediately.
func (s *Supervisor) Close() {
	s.stopped.Store(true)

	for _, e := range s.endpoints {
		e.Close()
	}
}

// Wait blocks until the connections of every endpoint are done.
func (s *Supervisor) Wait() {
	for _, e := range s.endpoints {
		e.Wait()
	}
}

func (s *Supervisor) Endpoints() []*Endpoint {
	return s.endpoints
}

func (s *Supervisor) Stats() []Stats {
	stats := make([]Stats, len(s.endpoints))
	for i, e := range s.endpoints {
		stats[i] = e.Stats()
	}

	return stats
}
