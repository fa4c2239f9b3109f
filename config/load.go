package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/indigo-web/connector/http/status"
	json "github.com/json-iterator/go"
)

// Options is the flat configuration surface, as it appears in configuration files. Timeouts
// are in milliseconds. Absent keys keep values of the config they're applied to.
type Options struct {
	Port                 *uint16  `json:"port,omitempty"`
	Address              *string  `json:"address,omitempty"`
	Backlog              *int     `json:"backlog,omitempty"`
	Strategy             *string  `json:"strategy,omitempty"`
	MinSpareThreads      *int     `json:"minSpareThreads,omitempty"`
	MaxSpareThreads      *int     `json:"maxSpareThreads,omitempty"`
	MaxThreads           *int     `json:"maxThreads,omitempty"`
	ThreadPriority       *int     `json:"threadPriority,omitempty"`
	SoLinger             *int     `json:"soLinger,omitempty"`
	TCPNoDelay           *bool    `json:"tcpNoDelay,omitempty"`
	SocketTimeout        *int64   `json:"socketTimeout,omitempty"`
	ServerSocketTimeout  *int64   `json:"serverSocketTimeout,omitempty"`
	KeepAliveTimeout     *int64   `json:"keepAliveTimeout,omitempty"`
	MaxKeepAliveRequests *int     `json:"maxKeepAliveRequests,omitempty"`
	HeaderBufferSize     *int     `json:"headerBufferSize,omitempty"`
	MaxHeaders           *int     `json:"maxHeaders,omitempty"`
	UseSendfile          *bool    `json:"useSendfile,omitempty"`
	DaemonThreads        *bool    `json:"daemonThreads,omitempty"`
	EnableLookups        *bool    `json:"enableLookups,omitempty"`
	MaxBodySize          *int64   `json:"maxBodySize,omitempty"`
	MaxSavePostSize      *int     `json:"maxSavePostSize,omitempty"`
	ServerHeader         *string  `json:"server,omitempty"`
	ClosingStatuses      []uint16 `json:"closingStatuses,omitempty"`
}

// Load decodes options from the reader and applies them on top of defaults. Zero sizes
// and timeouts fall back to defaults, as in Fill.
func Load(r io.Reader) (*Config, error) {
	var opts Options
	if err := json.NewDecoder(r).Decode(&opts); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	cfg := Default()
	if err := opts.Apply(cfg); err != nil {
		return nil, err
	}

	return cfg, Fill(cfg).Validate()
}

// LoadFile is Load reading from the file at the path.
func LoadFile(path string) (*Config, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer fd.Close()

	return Load(fd)
}

// Apply overrides fields of the config by the options present.
func (o Options) Apply(c *Config) error {
	set(&c.NET.Port, o.Port)
	set(&c.NET.Address, o.Address)
	set(&c.NET.Backlog, o.Backlog)
	set(&c.NET.SoLinger, o.SoLinger)
	set(&c.NET.TCPNoDelay, o.TCPNoDelay)
	set(&c.NET.EnableLookups, o.EnableLookups)
	setMillis(&c.NET.SocketTimeout, o.SocketTimeout)
	setMillis(&c.NET.ServerSocketTimeout, o.ServerSocketTimeout)
	setMillis(&c.NET.KeepAliveTimeout, o.KeepAliveTimeout)
	set(&c.Workers.MinSpareThreads, o.MinSpareThreads)
	set(&c.Workers.MaxSpareThreads, o.MaxSpareThreads)
	set(&c.Workers.MaxThreads, o.MaxThreads)
	set(&c.Workers.ThreadPriority, o.ThreadPriority)
	set(&c.Workers.DaemonThreads, o.DaemonThreads)
	set(&c.Workers.UseSendfile, o.UseSendfile)
	set(&c.HTTP.MaxKeepAliveRequests, o.MaxKeepAliveRequests)
	set(&c.HTTP.HeaderBufferSize, o.HeaderBufferSize)
	set(&c.HTTP.MaxHeaders, o.MaxHeaders)
	set(&c.HTTP.ServerHeader, o.ServerHeader)
	set(&c.Body.MaxSize, o.MaxBodySize)
	set(&c.Body.MaxSavePostSize, o.MaxSavePostSize)

	if o.Strategy != nil {
		strategy, err := ParseStrategy(*o.Strategy)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}

		c.Workers.Strategy = strategy
	}

	if o.ClosingStatuses != nil {
		c.HTTP.ClosingStatuses = c.HTTP.ClosingStatuses[:0]
		for _, code := range o.ClosingStatuses {
			c.HTTP.ClosingStatuses = append(c.HTTP.ClosingStatuses, status.Code(code))
		}
	}

	return nil
}

// Dump renders the config back into the flat options form.
func Dump(c *Config) ([]byte, error) {
	strategy := c.Workers.Strategy.String()
	codes := make([]uint16, len(c.HTTP.ClosingStatuses))
	for i, code := range c.HTTP.ClosingStatuses {
		codes[i] = uint16(code)
	}

	return json.Marshal(Options{
		Port:                 &c.NET.Port,
		Address:              &c.NET.Address,
		Backlog:              &c.NET.Backlog,
		Strategy:             &strategy,
		MinSpareThreads:      &c.Workers.MinSpareThreads,
		MaxSpareThreads:      &c.Workers.MaxSpareThreads,
		MaxThreads:           &c.Workers.MaxThreads,
		ThreadPriority:       &c.Workers.ThreadPriority,
		SoLinger:             &c.NET.SoLinger,
		TCPNoDelay:           &c.NET.TCPNoDelay,
		SocketTimeout:        millis(c.NET.SocketTimeout),
		ServerSocketTimeout:  millis(c.NET.ServerSocketTimeout),
		KeepAliveTimeout:     millis(c.NET.KeepAliveTimeout),
		MaxKeepAliveRequests: &c.HTTP.MaxKeepAliveRequests,
		HeaderBufferSize:     &c.HTTP.HeaderBufferSize,
		MaxHeaders:           &c.HTTP.MaxHeaders,
		UseSendfile:          &c.Workers.UseSendfile,
		DaemonThreads:        &c.Workers.DaemonThreads,
		EnableLookups:        &c.NET.EnableLookups,
		MaxBodySize:          &c.Body.MaxSize,
		MaxSavePostSize:      &c.Body.MaxSavePostSize,
		ServerHeader:         &c.HTTP.ServerHeader,
		ClosingStatuses:      codes,
	})
}

func set[T any](field *T, value *T) {
	if value != nil {
		*field = *value
	}
}

func setMillis(field *time.Duration, value *int64) {
	if value != nil {
		*field = time.Duration(*value) * time.Millisecond
	}
}

func millis(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}
