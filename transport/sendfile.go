package transport

type sendfileTask struct {
	sock *Socket
	job  *SendfileJob
}

// sendfiler transmits files one by one in a dedicated goroutine, so workers are free
// as soon as the response headers are written. Connections kept alive go back to the
// poller afterwards.
type sendfiler struct {
	e     *Endpoint
	tasks chan sendfileTask
}

func newSendfiler(e *Endpoint) *sendfiler {
	return &sendfiler{
		e:     e,
		tasks: make(chan sendfileTask, max(e.cfg.Workers.MaxThreads, 1)),
	}
}

func (s *sendfiler) submit(sock *Socket, job *SendfileJob) {
	select {
	case s.tasks <- sendfileTask{sock: sock, job: job}:
	case <-s.e.stopped:
		_ = job.Close()
		s.e.closeSocket(sock)
	}
}

func (s *sendfiler) run() {
	for {
		select {
		case task := <-s.tasks:
			s.transmit(task)
		case <-s.e.stopped:
			// the headers of the queued responses are sent already, so they're completed
			for {
				select {
				case task := <-s.tasks:
					s.transmit(task)
				default:
					return
				}
			}
		}
	}
}

func (s *sendfiler) transmit(task sendfileTask) {
	if s.e.transmit(task.sock, task.job) {
		s.e.resume(task.sock)
	}
}
