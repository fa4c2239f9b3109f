//go:build linux

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// setBacklog calls listen(2) once again on the bound socket, which only updates the
// length of the pending connections queue.
func setBacklog(l *net.TCPListener, backlog int) error {
	raw, err := l.SyscallConn()
	if err != nil {
		return err
	}

	var lerr error
	err = raw.Control(func(fd uintptr) {
		lerr = unix.Listen(int(fd), backlog)
	})
	if err != nil {
		return err
	}

	return lerr
}
