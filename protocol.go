package connector

import (
	"sync"

	"github.com/indigo-web/connector/adapter"
	"github.com/indigo-web/connector/config"
	"github.com/indigo-web/connector/internal/logging"
	"github.com/indigo-web/connector/internal/protocol/http1"
	"github.com/indigo-web/connector/transport"
	"github.com/indigo-web/utils/pool"
)

// protocol binds sockets to processors. Processors are expensive to build, so the idle
// ones are cached for the next sockets.
type protocol struct {
	cfg     *config.Config
	adapter adapter.Adapter
	log     *logging.Logger

	mu         sync.Mutex
	processors *pool.ObjectPool[*http1.Processor]
}

func newProtocol(cfg *config.Config, a adapter.Adapter, log *logging.Logger) *protocol {
	return &protocol{
		cfg:        cfg,
		adapter:    a,
		log:        log,
		processors: pool.NewObjectPool[*http1.Processor](cfg.Workers.MaxThreads),
	}
}

// Process implements transport.Handler.
func (p *protocol) Process(sock *transport.Socket) transport.SocketState {
	processor := p.acquire()
	state := processor.Process(sock)
	p.release(processor)

	return state
}

func (p *protocol) acquire() *http1.Processor {
	p.mu.Lock()
	processor := p.processors.Acquire()
	p.mu.Unlock()

	if processor == nil {
		processor = http1.New(p.cfg, p.adapter, p.log)
	}

	return processor
}

// release caches the processor, unless there are enough of them already.
func (p *protocol) release(processor *http1.Processor) {
	p.mu.Lock()
	p.processors.Release(processor)
	p.mu.Unlock()
}
