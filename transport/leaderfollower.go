package transport

import "sync/atomic"

// leaderFollower runs a fixed pool of MaxThreads goroutines. The one holding the token
// is the leader: it accepts a connection, passes the token to a follower and processes
// the connection by itself.
type leaderFollower struct {
	e      *Endpoint
	leader chan struct{}
	live   atomic.Int64
	busy   atomic.Int64
}

func newLeaderFollower(e *Endpoint) *leaderFollower {
	return &leaderFollower{
		e:      e,
		leader: make(chan struct{}, 1),
	}
}

func (lf *leaderFollower) start() {
	lf.leader <- struct{}{}

	for range lf.e.cfg.Workers.MaxThreads {
		lf.live.Add(1)
		lf.e.goroutine(lf.follow)
	}
}

func (lf *leaderFollower) follow() {
	defer lf.live.Add(-1)

	for {
		select {
		case <-lf.leader:
		case <-lf.e.stopped:
			return
		}

		conn, err := lf.e.accept()
		lf.leader <- struct{}{}
		if err != nil {
			lf.e.fail(err)
			return
		}

		lf.busy.Add(1)
		lf.e.process(lf.e.newSocket(conn))
		lf.busy.Add(-1)
	}
}

func (lf *leaderFollower) stop() {}

func (lf *leaderFollower) counts() (live, busy, idle int) {
	l, b := int(lf.live.Load()), int(lf.busy.Load())
	return l, b, l - b
}
