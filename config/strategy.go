package config

import (
	"fmt"
	"strings"
)

// Strategy selects how an endpoint turns a listening socket into a stream of connections.
type Strategy uint8

const (
	// Simple spawns acceptor goroutines on demand, each of them accepts and processes the
	// connection by itself. The number of idle acceptors is kept between the spare watermarks.
	Simple Strategy = iota
	// LeaderFollower runs a fixed pool where the goroutine holding the accept call hands
	// the leadership over right after accepting and processes the connection itself.
	LeaderFollower
	// MasterSlave has a single acceptor handing connections to a stack of idle workers.
	MasterSlave
	// Poll multiplexes the listener and idle keep-alive connections in a single goroutine,
	// dispatching the actual work to a bounded pool.
	Poll
	// Native is MasterSlave with a poller for idle connections and a goroutine for
	// zero-copy file transmissions.
	Native
)

var strategyNames = [...]string{
	Simple:         "simple",
	LeaderFollower: "leader-follower",
	MasterSlave:    "master-slave",
	Poll:           "poll",
	Native:         "native",
}

func (s Strategy) String() string {
	if int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", uint8(s))
	}

	return strategyNames[s]
}

func (s Strategy) MarshalText() ([]byte, error) {
	if int(s) >= len(strategyNames) {
		return nil, fmt.Errorf("unknown strategy: %d", uint8(s))
	}

	return []byte(strategyNames[s]), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}

	*s = parsed
	return nil
}

// ParseStrategy recognizes a strategy by its name, case-insensitively.
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if strings.EqualFold(n, name) {
			return Strategy(i), nil
		}
	}

	return 0, fmt.Errorf("unknown strategy: %q", name)
}

// Polls tells whether idle keep-alive connections are parked in a poller instead of
// occupying a worker.
func (s Strategy) Polls() bool {
	return s == Poll || s == Native
}
