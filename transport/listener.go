package transport

import (
	"context"
	"net"
)

// listen binds the TCP listener and applies the backlog, if set.
func listen(addr string, backlog int) (*net.TCPListener, error) {
	var lc net.ListenConfig
	l, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, err
	}

	tcp := l.(*net.TCPListener)
	if backlog > 0 {
		if err = setBacklog(tcp, backlog); err != nil {
			_ = tcp.Close()
			return nil, err
		}
	}

	return tcp, nil
}
