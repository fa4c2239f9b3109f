package transport

// native is the master-slave strategy where idle keep-alive connections are parked in
// the poller instead of holding a worker. Files are transmitted by a dedicated goroutine,
// if enabled.
type native struct {
	*masterSlave
	exec *executor
}

func newNative(e *Endpoint) *native {
	ms := newMasterSlave(e)

	return &native{
		masterSlave: ms,
		exec:        newExecutor(e, ms.stack),
	}
}

func (n *native) start() {
	n.e.goroutine(n.exec.run)
	n.masterSlave.start()
}

// dispatch is called by the poller when a parked socket becomes readable.
func (n *native) dispatch(sock *Socket) {
	n.exec.submit(sock)
}
