//go:build !linux

package transport

import "net"

// setBacklog is a no-op: the runtime picks the queue length by itself.
func setBacklog(*net.TCPListener, int) error {
	return nil
}
