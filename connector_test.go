package connector

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"io"
	"math/big"
	"net"
	stdhttp "net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/indigo-web/connector/adapter"
	"github.com/indigo-web/connector/config"
	"github.com/indigo-web/connector/http"
	"github.com/indigo-web/connector/internal/logging"
	"github.com/indigo-web/connector/transport"
	"github.com/indigo-web/connector/transport/dummy"
	"github.com/stretchr/testify/require"
)

func testAdapter() adapter.Func {
	return func(req *http.Request, resp *http.Response) error {
		switch req.URI {
		case "/hello":
			return resp.String("Hello, world!")
		case "/echo":
			body, err := req.Body.String()
			if err != nil {
				return err
			}

			return resp.String(body)
		case "/scheme":
			return resp.String(req.Scheme)
		default:
			resp.Code(404)
			return nil
		}
	}
}

func testConfig(strategy config.Strategy) *config.Config {
	cfg := config.Default()
	cfg.NET.Address = "127.0.0.1"
	cfg.NET.Port = 0
	cfg.NET.ServerSocketTimeout = 100 * time.Millisecond
	cfg.Workers.Strategy = strategy
	cfg.Workers.MinSpareThreads = 1
	cfg.Workers.MaxSpareThreads = 4
	cfg.Workers.MaxThreads = 16

	return cfg
}

type app struct {
	*Connector
	errc chan error
}

func run(t *testing.T, c *Connector) app {
	a := app{Connector: c, errc: make(chan error, 1)}
	go func() {
		a.errc <- c.Serve()
	}()

	select {
	case <-c.Running():
	case err := <-a.errc:
		require.FailNow(t, "serve failed", err)
	case <-time.After(3 * time.Second):
		require.FailNow(t, "connector didn't start")
	}

	return a
}

func (a app) url(i int, path string) string {
	scheme := "http"
	if i > 0 {
		scheme = "https"
	}

	return scheme + "://" + a.Addrs()[i].String() + path
}

func (a app) gracefulStop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, a.GracefulStop(ctx))
	require.NoError(t, <-a.errc)
}

func get(t *testing.T, client *stdhttp.Client, url string) (int, string) {
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestConnector(t *testing.T) {
	strategies := []config.Strategy{
		config.Simple, config.LeaderFollower, config.MasterSlave, config.Poll, config.Native,
	}

	for _, strategy := range strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			var started, stopped atomic.Bool
			c := New(testAdapter()).
				Tune(testConfig(strategy)).
				Logger(logging.Nop()).
				NotifyOnStart(func() { started.Store(true) }).
				NotifyOnStop(func() { stopped.Store(true) })
			a := run(t, c)
			require.Eventually(t, started.Load, time.Second, 10*time.Millisecond)

			client := &stdhttp.Client{Timeout: 5 * time.Second}

			t.Run("hello", func(t *testing.T) {
				code, body := get(t, client, a.url(0, "/hello"))
				require.Equal(t, stdhttp.StatusOK, code)
				require.Equal(t, "Hello, world!", body)
			})

			t.Run("echo", func(t *testing.T) {
				resp, err := client.Post(a.url(0, "/echo"), "text/plain", strings.NewReader("ping"))
				require.NoError(t, err)
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				require.NoError(t, resp.Body.Close())
				require.Equal(t, "ping", string(body))
			})

			t.Run("not found", func(t *testing.T) {
				code, _ := get(t, client, a.url(0, "/nowhere"))
				require.Equal(t, stdhttp.StatusNotFound, code)
			})

			t.Run("keep-alive", func(t *testing.T) {
				for i := range 10 {
					code, body := get(t, client, a.url(0, fmt.Sprintf("/hello?i=%d", i)))
					require.Equal(t, stdhttp.StatusOK, code)
					require.Equal(t, "Hello, world!", body)
				}

				stats := a.Stats()
				require.Len(t, stats, 1)
				require.Equal(t, strategy.String(), stats[0].Strategy)
				require.Less(t, stats[0].Accepted, uint64(10))
			})

			client.CloseIdleConnections()
			a.gracefulStop(t)
			require.True(t, stopped.Load())
		})
	}
}

func TestHTTPS(t *testing.T) {
	cfg := testConfig(config.MasterSlave)
	c := New(testAdapter()).
		Tune(cfg).
		Logger(logging.Nop()).
		HTTPS(0, selfSigned(t))
	a := run(t, c)
	require.Len(t, a.Addrs(), 2)

	client := &stdhttp.Client{
		Timeout: 5 * time.Second,
		Transport: &stdhttp.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	code, body := get(t, client, a.url(0, "/scheme"))
	require.Equal(t, stdhttp.StatusOK, code)
	require.Equal(t, "http", body)

	code, body = get(t, client, a.url(1, "/scheme"))
	require.Equal(t, stdhttp.StatusOK, code)
	require.Equal(t, "https", body)

	client.CloseIdleConnections()
	a.gracefulStop(t)
}

func selfSigned(t *testing.T) tls.Certificate {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"Localhost"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func TestLifecycle(t *testing.T) {
	t.Run("stop", func(t *testing.T) {
		a := run(t, New(testAdapter()).Tune(testConfig(config.Native)).Logger(logging.Nop()))

		conn, err := net.Dial("tcp", a.Addrs()[0].String())
		require.NoError(t, err)
		_, err = conn.Write([]byte("GET /hello HTTP/1.1\r\nHost: localhost\r\n\r\n"))
		require.NoError(t, err)

		a.Stop()
		require.NoError(t, <-a.errc)
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		// depending on whether the request was read, the connection is either closed or reset
		_, err = io.ReadAll(conn)
		require.False(t, transport.IsTimeout(err), "the connection must be closed")
	})

	t.Run("stop before serve", func(t *testing.T) {
		c := New(testAdapter()).Tune(testConfig(config.Simple)).Logger(logging.Nop())
		c.Stop()
		require.ErrorIs(t, c.Serve(), ErrStopped)
		require.Nil(t, c.Addrs())
		require.Nil(t, c.Stats())
	})

	t.Run("bad config", func(t *testing.T) {
		cfg := testConfig(config.MasterSlave)
		cfg.Workers.MinSpareThreads = 10
		cfg.Workers.MaxSpareThreads = 5
		err := New(testAdapter()).Tune(cfg).Logger(logging.Nop()).Serve()
		require.ErrorIs(t, err, config.ErrBadWatermarks)
	})

	t.Run("bad certificates", func(t *testing.T) {
		c := New(testAdapter()).Tune(testConfig(config.MasterSlave)).Logger(logging.Nop())
		require.ErrorIs(t, c.HTTPS(0).Serve(), transport.ErrNoCertificates)

		c = New(testAdapter()).Tune(testConfig(config.MasterSlave)).Logger(logging.Nop())
		require.Error(t, c.TLS(0, "no-such.crt", "no-such.key").Serve())
	})

	t.Run("address in use", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer l.Close()

		cfg := testConfig(config.MasterSlave)
		cfg.NET.Port = uint16(l.Addr().(*net.TCPAddr).Port)
		require.Error(t, New(testAdapter()).Tune(cfg).Logger(logging.Nop()).Serve())
	})

	t.Run("graceful stop timeout", func(t *testing.T) {
		release := make(chan struct{})
		slow := adapter.Func(func(_ *http.Request, resp *http.Response) error {
			<-release
			return resp.String("late")
		})

		a := run(t, New(slow).Tune(testConfig(config.MasterSlave)).Logger(logging.Nop()))
		conn, err := net.Dial("tcp", a.Addrs()[0].String())
		require.NoError(t, err)
		_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: localhost\r\n\r\n"))
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return a.Stats()[0].Busy == 1
		}, 2*time.Second, 10*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		require.ErrorIs(t, a.GracefulStop(ctx), context.DeadlineExceeded)

		close(release)
		require.NoError(t, <-a.errc)
	})
}

func TestProtocol(t *testing.T) {
	cfg := testConfig(config.MasterSlave)
	p := newProtocol(cfg, testAdapter(), logging.Nop())

	conn := dummy.NewConn([]byte("GET /hello HTTP/1.1\r\nHost: localhost\r\n\r\n"))
	sock := transport.NewSocket(conn, cfg.HTTP.MaxKeepAliveRequests)
	require.Equal(t, transport.Closed, p.Process(sock))
	require.Contains(t, conn.Written(), "Hello, world!")

	// the processor is cached and picked up again
	first := p.acquire()
	p.release(first)
	require.Same(t, first, p.acquire())
}
