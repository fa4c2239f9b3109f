package http

import (
	"crypto/tls"
	"io"
	"testing"

	"github.com/indigo-web/connector/http/action"
	"github.com/indigo-web/connector/http/method"
	"github.com/stretchr/testify/require"
)

type staticBody struct {
	pieces [][]byte
}

func (s *staticBody) Retrieve() ([]byte, error) {
	if len(s.pieces) == 0 {
		return nil, io.EOF
	}

	piece := s.pieces[0]
	s.pieces = s.pieces[1:]
	return piece, nil
}

type brokenBody struct{}

func (brokenBody) Retrieve() ([]byte, error) {
	return nil, io.ErrUnexpectedEOF
}

func TestRequest(t *testing.T) {
	t.Run("peers are resolved once", func(t *testing.T) {
		hook := newRecorder()
		request := newRequest(hook, new(staticBody))

		require.Equal(t, "10.0.0.1", request.RemoteAddr())
		require.Equal(t, "10.0.0.1", request.RemoteAddr())
		require.Equal(t, 4242, request.RemotePort())
		require.Equal(t, "client.local", request.RemoteHost())
		require.Equal(t, "10.0.0.2", request.LocalAddr())
		require.Equal(t, 8080, request.LocalPort())
		require.Equal(t, 1, hook.count(action.RemoteAddr))
		require.Equal(t, 1, hook.count(action.LocalAddr))
	})

	t.Run("tls attributes", func(t *testing.T) {
		hook := newRecorder()
		request := newRequest(hook, new(staticBody))
		require.Nil(t, request.Attribute(AttrCipherSuite))
		require.Zero(t, hook.count(action.SSLAttributes))

		request.Env.Encryption = tls.VersionTLS13
		require.Equal(t, "TLS_AES_128_GCM_SHA256", request.Attribute(AttrCipherSuite))
		require.Nil(t, request.PeerCertificates())
		request.Attribute(AttrCipherSuite)
		require.Equal(t, 1, hook.count(action.SSLAttributes))
		require.Equal(t, 1, hook.count(action.SSLCertificate))
	})

	t.Run("recycle", func(t *testing.T) {
		hook := newRecorder()
		request := newRequest(hook, new(staticBody))
		request.Method = method.POST
		request.URI = "/"
		request.Headers.Add("Host", "localhost")
		request.Notes[3] = "note"
		request.SetAttribute("foo", 1)
		request.RemoteAddr()

		request.Recycle()
		require.Equal(t, method.Unknown, request.Method)
		require.Empty(t, request.URI)
		require.True(t, request.Headers.Empty())
		require.Nil(t, request.Notes[3])
		require.Nil(t, request.Attribute("foo"))
		require.Equal(t, int64(-1), request.ContentLength)

		request.RemoteAddr()
		require.Equal(t, 2, hook.count(action.RemoteAddr))
	})
}

func TestBody(t *testing.T) {
	t.Run("reader", func(t *testing.T) {
		request := newRequest(newRecorder(), &staticBody{pieces: [][]byte{
			[]byte("Hello, "), []byte("world!"),
		}})

		data, err := io.ReadAll(request.Body)
		require.NoError(t, err)
		require.Equal(t, "Hello, world!", string(data))
	})

	t.Run("bytes", func(t *testing.T) {
		request := newRequest(newRecorder(), &staticBody{pieces: [][]byte{
			[]byte("Hello, "), []byte("world!"),
		}})

		str, err := request.Body.String()
		require.NoError(t, err)
		require.Equal(t, "Hello, world!", str)
		// the second call must return the cached value
		str, err = request.Body.String()
		require.NoError(t, err)
		require.Equal(t, "Hello, world!", str)
	})

	t.Run("JSON", func(t *testing.T) {
		request := newRequest(newRecorder(), &staticBody{pieces: [][]byte{
			[]byte(`{"name": "connector", `), []byte(`"workers": 4}`),
		}})
		request.ContentType = "application/json; charset=utf-8"

		var model struct {
			Name    string `json:"name"`
			Workers int    `json:"workers"`
		}
		require.NoError(t, request.Body.JSON(&model))
		require.Equal(t, "connector", model.Name)
		require.Equal(t, 4, model.Workers)
	})

	t.Run("JSON with bad content type", func(t *testing.T) {
		request := newRequest(newRecorder(), new(staticBody))
		request.ContentType = "text/html"
		require.Error(t, request.Body.JSON(new(struct{})))
	})

	t.Run("callback", func(t *testing.T) {
		request := newRequest(newRecorder(), &staticBody{pieces: [][]byte{
			[]byte("a"), []byte("b"), []byte("c"),
		}})

		var collected string
		require.NoError(t, request.Body.Callback(func(b []byte) error {
			collected += string(b)
			return nil
		}))
		require.Equal(t, "abc", collected)
	})

	t.Run("declared length doesn't preallocate", func(t *testing.T) {
		request := newRequest(newRecorder(), brokenBody{})
		request.ContentLength = 512 << 20

		_, err := request.Body.Bytes()
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
		require.LessOrEqual(t, cap(request.Body.buff), 16)

		request.Recycle()
		require.LessOrEqual(t, cap(request.Body.buff), 16)
	})

	t.Run("grown buffer is dropped", func(t *testing.T) {
		large := make([]byte, 1024)
		request := newRequest(newRecorder(), &staticBody{pieces: [][]byte{large}})
		request.ContentLength = int64(len(large))

		data, err := request.Body.Bytes()
		require.NoError(t, err)
		require.Len(t, data, len(large))

		request.Recycle()
		require.Zero(t, cap(request.Body.buff))
	})

	t.Run("small buffer is kept", func(t *testing.T) {
		request := newRequest(newRecorder(), &staticBody{pieces: [][]byte{[]byte("ping")}})
		request.ContentLength = 4

		_, err := request.Body.Bytes()
		require.NoError(t, err)
		request.Recycle()
		require.Equal(t, 4, cap(request.Body.buff))
		require.Empty(t, request.Body.buff)
	})
}
