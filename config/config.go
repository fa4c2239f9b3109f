package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/indigo-web/connector/http/status"
)

type (
	WriteBufferSize struct {
		Default, Maximal int
	}

	NET struct {
		// Address is the host part to bind. Empty means every interface.
		Address string
		Port    uint16
		// Backlog is the length of the pending connections queue. Zero keeps the system default.
		Backlog int
		// SoLinger sets SO_LINGER in seconds on accepted sockets. Negative value leaves
		// the system default untouched.
		SoLinger   int
		TCPNoDelay bool
		// SocketTimeout limits every single read and write while a request is being
		// processed.
		SocketTimeout time.Duration
		// ServerSocketTimeout controls how often will the Accept() call be interrupted
		// in order to check whether it's time to stop.
		ServerSocketTimeout time.Duration
		// KeepAliveTimeout is how long an idle connection waits for the next request. It is
		// expected to be shorter than SocketTimeout.
		KeepAliveTimeout time.Duration
		// ReadBufferSize is the room for request bodies and pipelined requests behind the
		// header section in the input buffer.
		ReadBufferSize int
		// WriteBufferSize stores the response being transmitted. The buffer grows twice
		// at a time until Maximal is reached, after which it's flushed instead.
		WriteBufferSize WriteBufferSize
		// EnableLookups makes the remote host being resolved via reverse DNS. Otherwise the
		// remote host is the same as the remote address.
		EnableLookups bool
	}

	Workers struct {
		Strategy        Strategy
		MinSpareThreads int
		MaxSpareThreads int
		MaxThreads      int
		// ThreadPriority is kept for the compatibility of configuration files. Goroutines
		// have no priorities, the value is only reported.
		ThreadPriority int
		// DaemonThreads makes Stop() not to wait for connections being processed.
		DaemonThreads bool
		// PollInterval is how often the poller sweeps the idle connections for expired ones.
		PollInterval time.Duration
		// UseSendfile enables the zero-copy file transmission. The Native strategy runs it
		// in a dedicated goroutine, others do it in place.
		UseSendfile bool
	}

	HTTP struct {
		// MaxKeepAliveRequests closes the connection after this many requests. Zero or negative
		// values disable the limit, 1 disables keep-alive.
		MaxKeepAliveRequests int
		// HeaderBufferSize limits the request line together with the headers section.
		HeaderBufferSize int
		MaxHeaders       int
		// ServerHeader is sent as the Server header value unless empty.
		ServerHeader string
		// ClosingStatuses is a set of response codes after which the connection is closed
		// regardless of the Connection header.
		ClosingStatuses []status.Code
	}

	Body struct {
		// MaxSize limits request body. Bodies above are answered with 413. Negative value
		// disables the limit.
		MaxSize int64
		// MaxSavePostSize limits bodies being saved for a replay.
		MaxSavePostSize int
		// Buffer is where the whole body is collected into. It is preallocated up to
		// Prealloc bytes, regardless of the declared Content-Length, and dropped between
		// requests once grown above Retain.
		Buffer BodyBuffer
	}

	BodyBuffer struct {
		Prealloc, Retain int
	}
)

// Config holds settings used across the connector.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	NET     NET
	Workers Workers
	HTTP    HTTP
	Body    Body
}

// Default returns default config.
func Default() *Config {
	return &Config{
		NET: NET{
			Port:                8080,
			Backlog:             100,
			SoLinger:            -1,
			TCPNoDelay:          true,
			SocketTimeout:       20 * time.Second,
			ServerSocketTimeout: 5 * time.Second,
			KeepAliveTimeout:    5 * time.Second,
			ReadBufferSize:      4 * 1024,
			WriteBufferSize: WriteBufferSize{
				Default: 2 * 1024,
				Maximal: 64 * 1024,
			},
		},
		Workers: Workers{
			Strategy:        MasterSlave,
			MinSpareThreads: 4,
			MaxSpareThreads: 50,
			MaxThreads:      200,
			PollInterval:    time.Second,
		},
		HTTP: HTTP{
			MaxKeepAliveRequests: 100,
			HeaderBufferSize:     8 * 1024,
			MaxHeaders:           100,
			ClosingStatuses: []status.Code{
				status.BadRequest,
				status.RequestTimeout,
				status.LengthRequired,
				status.RequestEntityTooLarge,
				status.RequestURITooLong,
				status.InternalServerError,
				status.NotImplemented,
				status.ServiceUnavailable,
			},
		},
		Body: Body{
			MaxSize:         512 * 1024 * 1024,
			MaxSavePostSize: 4 * 1024,
			Buffer: BodyBuffer{
				Prealloc: 4 * 1024,
				Retain:   64 * 1024,
			},
		},
	}
}

var (
	ErrBadWatermarks = errors.New("spare threads watermarks must satisfy 0 <= min <= max <= maxThreads")
	ErrNoThreads     = errors.New("maxThreads must be positive")
	ErrBadTimeout    = errors.New("timeouts must be positive")
)

// Validate reports settings which can't work together.
func (c *Config) Validate() error {
	w := c.Workers
	switch {
	case w.MaxThreads <= 0:
		return ErrNoThreads
	case w.MinSpareThreads < 0, w.MinSpareThreads > w.MaxSpareThreads, w.MaxSpareThreads > w.MaxThreads:
		return fmt.Errorf("%w: min=%d max=%d maxThreads=%d",
			ErrBadWatermarks, w.MinSpareThreads, w.MaxSpareThreads, w.MaxThreads)
	case c.NET.SocketTimeout <= 0, c.NET.ServerSocketTimeout <= 0, c.NET.KeepAliveTimeout <= 0,
		w.PollInterval <= 0:
		return fmt.Errorf("%w: socket=%s serverSocket=%s keepAlive=%s poll=%s", ErrBadTimeout,
			c.NET.SocketTimeout, c.NET.ServerSocketTimeout, c.NET.KeepAliveTimeout, w.PollInterval)
	case c.HTTP.HeaderBufferSize <= 0:
		return errors.New("headerBufferSize must be positive")
	case c.NET.ReadBufferSize <= 0:
		return errors.New("read buffer size must be positive")
	}

	if _, err := c.Workers.Strategy.MarshalText(); err != nil {
		return err
	}

	return nil
}

// Fill replaces zero values of sizes and timeouts by defaults, so a partially filled
// config is still usable.
func Fill(c *Config) *Config {
	def := Default()

	fill(&c.NET.SocketTimeout, def.NET.SocketTimeout)
	fill(&c.NET.ServerSocketTimeout, def.NET.ServerSocketTimeout)
	fill(&c.NET.KeepAliveTimeout, def.NET.KeepAliveTimeout)
	fill(&c.NET.ReadBufferSize, def.NET.ReadBufferSize)
	fill(&c.NET.WriteBufferSize.Default, def.NET.WriteBufferSize.Default)
	fill(&c.NET.WriteBufferSize.Maximal, def.NET.WriteBufferSize.Maximal)
	fill(&c.Workers.MaxThreads, def.Workers.MaxThreads)
	fill(&c.Workers.PollInterval, def.Workers.PollInterval)
	fill(&c.HTTP.HeaderBufferSize, def.HTTP.HeaderBufferSize)
	fill(&c.HTTP.MaxHeaders, def.HTTP.MaxHeaders)
	fill(&c.Body.MaxSavePostSize, def.Body.MaxSavePostSize)
	fill(&c.Body.Buffer.Prealloc, def.Body.Buffer.Prealloc)
	fill(&c.Body.Buffer.Retain, def.Body.Buffer.Retain)

	return c
}

func fill[T comparable](field *T, otherwise T) {
	var zero T
	if *field == zero {
		*field = otherwise
	}
}
