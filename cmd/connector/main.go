// Command connector runs a standalone HTTP/1.1 connector serving a demo application.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/indigo-web/connector"
	"github.com/indigo-web/connector/config"
	"github.com/indigo-web/connector/internal/logging"
	json "github.com/json-iterator/go"
)

type flags struct {
	config    string
	port      int
	strategy  string
	root      string
	debug     bool
	dump      bool
	tlsPort   int
	tlsCert   string
	tlsKey    string
	autoTLS   string
	stopAfter time.Duration
}

func parseFlags(args []string) (flags, error) {
	var f flags

	set := flag.NewFlagSet("connector", flag.ContinueOnError)
	set.StringVar(&f.config, "config", "", "path to the JSON configuration file")
	set.IntVar(&f.port, "port", -1, "port to listen on, overrides the configuration")
	set.StringVar(&f.strategy, "strategy", "", "endpoint strategy: simple, leader-follower, master-slave, poll or native")
	set.StringVar(&f.root, "root", "", "directory served under /files/")
	set.BoolVar(&f.debug, "debug", false, "enable debug logging")
	set.BoolVar(&f.dump, "dump", false, "print the effective configuration and exit")
	set.IntVar(&f.tlsPort, "tls-port", 0, "port of the TLS endpoint")
	set.StringVar(&f.tlsCert, "tls-cert", "", "certificate of the TLS endpoint")
	set.StringVar(&f.tlsKey, "tls-key", "", "private key of the TLS endpoint")
	set.StringVar(&f.autoTLS, "autotls", "", "comma-separated domains to obtain certificates for via ACME")
	set.DurationVar(&f.stopAfter, "stop-timeout", 10*time.Second, "how long to wait for connections on shutdown")

	return f, set.Parse(args)
}

func configure(f flags) (*config.Config, error) {
	cfg := config.Default()
	if len(f.config) > 0 {
		loaded, err := config.LoadFile(f.config)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	if f.port >= 0 {
		if f.port > 65535 {
			return nil, fmt.Errorf("bad port: %d", f.port)
		}

		cfg.NET.Port = uint16(f.port)
	}

	if len(f.strategy) > 0 {
		strategy, err := config.ParseStrategy(f.strategy)
		if err != nil {
			return nil, err
		}

		cfg.Workers.Strategy = strategy
	}

	return cfg, cfg.Validate()
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}

		os.Exit(2)
	}

	if err = run(f); err != nil {
		fmt.Fprintln(os.Stderr, "connector:", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := configure(f)
	if err != nil {
		return err
	}

	if f.dump {
		data, err := config.Dump(cfg)
		if err != nil {
			return err
		}

		_, err = fmt.Println(string(data))
		return err
	}

	level := logging.Info
	if f.debug {
		level = logging.Debug
	}

	log := logging.New(os.Stderr, level)
	c := connector.New(demo{root: f.root}).
		Tune(cfg).
		Logger(log)
	c.NotifyOnStart(func() {
		for _, addr := range c.Addrs() {
			log.Infof("listening on %s (%s)", addr, cfg.Workers.Strategy)
		}
	})

	if f.tlsPort > 0 {
		c.TLS(uint16(f.tlsPort), f.tlsCert, f.tlsKey)
	}

	if len(f.autoTLS) > 0 {
		c.AutoTLS(443, strings.Split(f.autoTLS, ",")...)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		log.Infof("shutting down")

		stopCtx, stop := context.WithTimeout(context.Background(), f.stopAfter)
		defer stop()

		if err := c.GracefulStop(stopCtx); err != nil {
			log.Warnf("connections were closed forcefully: %s", err)
		}
	}()

	err = c.Serve()
	if report, jerr := json.MarshalIndent(c.Stats(), "", "  "); jerr == nil {
		log.Infof("stats: %s", report)
	}

	return err
}
