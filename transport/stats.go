package transport

// Stats is a snapshot of the endpoint counters.
type Stats struct {
	Strategy string `json:"strategy"`
	Address  string `json:"address"`
	// Live is the number of worker goroutines, Busy and Idle split them.
	Live int `json:"live"`
	Busy int `json:"busy"`
	Idle int `json:"idle"`
	// Connections is the number of sockets currently open.
	Connections int `json:"connections"`
	// Parked is the number of idle sockets held by the poller.
	Parked    int    `json:"parked"`
	Accepted  uint64 `json:"accepted"`
	Processed uint64 `json:"processed"`
	Sendfiles uint64 `json:"sendfiles"`
	Reinits   uint64 `json:"reinits"`
}

func (e *Endpoint) Stats() Stats {
	live, busy, idle := e.strategy.counts()

	e.smu.Lock()
	conns := len(e.sockets)
	e.smu.Unlock()

	var parked int
	if e.poller != nil {
		parked = e.poller.parked()
	}

	return Stats{
		Strategy:    e.cfg.Workers.Strategy.String(),
		Address:     e.addr,
		Live:        live,
		Busy:        busy,
		Idle:        idle,
		Connections: conns,
		Parked:      parked,
		Accepted:    e.accepted.Load(),
		Processed:   e.processed.Load(),
		Sendfiles:   e.sendfiled.Load(),
		Reinits:     e.reinits.Load(),
	}
}
