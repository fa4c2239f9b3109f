package connector

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"

	"github.com/indigo-web/connector/adapter"
	"github.com/indigo-web/connector/config"
	"github.com/indigo-web/connector/internal/address"
	"github.com/indigo-web/connector/internal/logging"
	"github.com/indigo-web/connector/transport"
)

var ErrStopped = errors.New("connector is stopped")

// Connector serves HTTP/1.1 over one plain and any number of encrypted endpoints, all
// of them handing requests over to the same adapter.
type Connector struct {
	adapter   adapter.Adapter
	cfg       *config.Config
	log       *logging.Logger
	hooks     hooks
	listeners []listener
	// errs are deferred until Serve, so the builder calls may be chained
	errs []error

	mu      sync.Mutex
	sup     *transport.Supervisor
	stopped bool
	running chan struct{}
}

type listener struct {
	port uint16
	tls  func() (*tls.Config, error)
}

// New returns a connector with the default config.
func New(a adapter.Adapter) *Connector {
	return &Connector{
		adapter: a,
		cfg:     config.Default(),
		log:     logging.Default(),
		running: make(chan struct{}),
	}
}

// Tune replaces the default config. Zero values are filled with defaults.
func (c *Connector) Tune(cfg *config.Config) *Connector {
	c.cfg = config.Fill(cfg)
	return c
}

// Logger replaces the default logger, writing into the stderr.
func (c *Connector) Logger(log *logging.Logger) *Connector {
	c.log = log
	return c
}

// NotifyOnStart calls the callback at the moment, when all the endpoints are bound and
// started. However, it isn't strongly guaranteed that they'll be able to accept new
// connections immediately
func (c *Connector) NotifyOnStart(cb func()) *Connector {
	c.hooks.OnStart = cb
	return c
}

// NotifyOnStop calls the callback at the moment, when all the endpoints are down. Unless
// daemon threads are enabled, all the clients are already disconnected by then.
func (c *Connector) NotifyOnStop(cb func()) *Connector {
	c.hooks.OnStop = cb
	return c
}

// TLS adds an encrypted endpoint on the port with the certificate loaded from the files.
func (c *Connector) TLS(port uint16, cert, key string) *Connector {
	c.listeners = append(c.listeners, listener{
		port: port,
		tls: func() (*tls.Config, error) {
			return transport.LoadTLS(cert, key)
		},
	})

	return c
}

// HTTPS adds an encrypted endpoint on the port with the certificates.
func (c *Connector) HTTPS(port uint16, certs ...tls.Certificate) *Connector {
	cfg, err := transport.TLSConfig(certs...)
	if err != nil {
		c.errs = append(c.errs, err)
		return c
	}

	c.listeners = append(c.listeners, listener{
		port: port,
		tls: func() (*tls.Config, error) {
			return cfg, nil
		},
	})

	return c
}

// AutoTLS adds an encrypted endpoint on the port, obtaining certificates for the domains
// via ACME. A self-signed certificate is generated if the connector is bound to the
// localhost.
func (c *Connector) AutoTLS(port uint16, domains ...string) *Connector {
	if address.IsLocalhost(c.cfg.NET.Address) {
		cert, key, err := generateSelfSignedCert()
		if err != nil {
			c.log.Warnf("connector: AutoTLS: can't generate self-signed certificate: %s. Disabling TLS", err)
			return c
		}

		return c.TLS(port, cert, key)
	}

	c.listeners = append(c.listeners, listener{
		port: port,
		tls: func() (*tls.Config, error) {
			return c.autoTLSConfig(domains...), nil
		},
	})

	return c
}

// Serve binds all the endpoints and serves them until stopped. It returns nil after
// Stop or GracefulStop, or the error any of the endpoints failed with.
func (c *Connector) Serve() error {
	if err := errors.Join(c.errs...); err != nil {
		return err
	}

	if err := c.cfg.Validate(); err != nil {
		return err
	}

	sup, err := c.bind()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		sup.Close()
		return ErrStopped
	}

	c.sup = sup
	close(c.running)
	c.mu.Unlock()

	callIfNotNil(c.hooks.OnStart)
	err = sup.Run()
	if c.cfg.Workers.DaemonThreads {
		sup.Close()
	} else {
		sup.Wait()
	}

	callIfNotNil(c.hooks.OnStop)

	return err
}

func (c *Connector) bind() (*transport.Supervisor, error) {
	sup := transport.NewSupervisor()
	handler := newProtocol(c.cfg, c.adapter, c.log)

	err := sup.Add(c.newEndpoint(handler), address.Join(c.cfg.NET.Address, c.cfg.NET.Port), nil)
	if err != nil {
		return nil, err
	}

	for _, l := range c.listeners {
		tlsConfig, err := l.tls()
		if err != nil {
			sup.Close()
			return nil, err
		}

		err = sup.Add(c.newEndpoint(handler), address.Join(c.cfg.NET.Address, l.port), tlsConfig)
		if err != nil {
			return nil, err
		}
	}

	return &sup, nil
}

func (c *Connector) newEndpoint(handler transport.Handler) *transport.Endpoint {
	return transport.New(c.cfg, handler, c.log)
}

// Stop stops every endpoint and closes all the connections immediately. The call doesn't
// wait for Serve to return.
func (c *Connector) Stop() {
	if sup := c.stop(); sup != nil {
		sup.Close()
	}
}

// GracefulStop stops accepting new connections and waits until the busy ones complete
// their current requests. Once the context is done, the rest of the connections are
// closed, and the context error is returned.
func (c *Connector) GracefulStop(ctx context.Context) error {
	sup := c.stop()
	if sup == nil {
		return nil
	}

	sup.Stop()
	done := make(chan struct{})
	go func() {
		sup.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		sup.Close()
		return ctx.Err()
	}
}

func (c *Connector) stop() *transport.Supervisor {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	return c.sup
}

// Running returns a channel closed once all the endpoints are bound.
func (c *Connector) Running() <-chan struct{} {
	return c.running
}

// Addrs returns the addresses of the bound endpoints, the plain one goes first.
func (c *Connector) Addrs() []net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sup == nil {
		return nil
	}

	endpoints := c.sup.Endpoints()
	addrs := make([]net.Addr, len(endpoints))
	for i, e := range endpoints {
		addrs[i] = e.Addr()
	}

	return addrs
}

// Stats returns the counters of every bound endpoint.
func (c *Connector) Stats() []transport.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sup == nil {
		return nil
	}

	return c.sup.Stats()
}

type hooks struct {
	OnStart, OnStop func()
}

func callIfNotNil(f func()) {
	if f != nil {
		f()
	}
}
