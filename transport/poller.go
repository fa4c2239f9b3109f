package transport

// poller holds idle keep-alive sockets without occupying workers. Sockets becoming
// readable are dispatched back to the strategy, and the ones idle for longer than the
// keep-alive timeout are closed.
type poller interface {
	// supports tells whether the socket can be waited for by the poller.
	supports(sock *Socket) bool
	// park takes the ownership over the socket until it's readable or expired.
	park(sock *Socket)
	parked() int
	// close stops the poller and closes every parked socket. Sockets parked afterwards
	// are closed immediately.
	close()
}
