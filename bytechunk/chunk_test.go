package bytechunk

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

type accumulativeWriter struct {
	Data   []byte
	Writes int
}

func (a *accumulativeWriter) Write(b []byte) (int, error) {
	a.Data = append(a.Data, b...)
	a.Writes++
	return len(b), nil
}

func TestChunk_Append(t *testing.T) {
	t.Run("unbounded growth", func(t *testing.T) {
		c := New(4, 0)
		require.NoError(t, c.AppendString("Hello, "))
		require.NoError(t, c.AppendString("world!"))
		require.Equal(t, "Hello, world!", c.String())
		require.GreaterOrEqual(t, c.Cap(), len("Hello, world!"))
	})

	t.Run("doubling", func(t *testing.T) {
		c := New(16, 0)
		require.NoError(t, c.Append(make([]byte, 17)))
		require.Equal(t, 32, c.Cap())
	})

	t.Run("ceiling flushes into the sink", func(t *testing.T) {
		sink := new(accumulativeWriter)
		c := New(4, 8).SetSink(sink)
		require.NoError(t, c.AppendString("abcdef"))
		require.Empty(t, sink.Data)
		require.NoError(t, c.AppendString("ghij"))
		require.Equal(t, "abcdef", string(sink.Data))
		require.Equal(t, "ghij", c.String())
		require.Equal(t, 8, c.Cap())
	})

	t.Run("payload bigger than the ceiling", func(t *testing.T) {
		sink := new(accumulativeWriter)
		c := New(4, 4).SetSink(sink)
		require.NoError(t, c.AppendString("ab"))
		require.NoError(t, c.AppendString("0123456789"))
		require.Equal(t, "ab0123456789", string(sink.Data))
		require.True(t, c.Empty())
	})

	t.Run("no sink", func(t *testing.T) {
		c := New(4, 4)
		require.NoError(t, c.AppendString("abcd"))
		require.ErrorIs(t, c.AppendString("e"), ErrNoSink)
	})

	t.Run("consumed space is reused before growing", func(t *testing.T) {
		c := New(8, 8)
		require.NoError(t, c.AppendString("abcdefgh"))
		c.Skip(6)
		require.NoError(t, c.AppendString("ijkl"))
		require.Equal(t, "ghijkl", c.String())
	})

	t.Run("wrapped slice is copied on growth", func(t *testing.T) {
		backing := []byte("hello")
		c := Wrap(backing)
		require.NoError(t, c.AppendString(" world"))
		require.Equal(t, "hello world", c.String())
		require.Equal(t, "hello", string(backing))
	})
}

func TestChunk_Fill(t *testing.T) {
	t.Run("reads into the free space", func(t *testing.T) {
		c := New(16, 0).SetSource(strings.NewReader("GET / HTTP/1.1\r\n"))
		n, err := c.Fill()
		require.NoError(t, err)
		require.Equal(t, 16, n)
		require.Equal(t, "GET / HTTP/1.1\r\n", c.String())

		_, err = c.Fill()
		require.ErrorIs(t, err, ErrFull)
	})

	t.Run("eof", func(t *testing.T) {
		c := New(16, 0).SetSource(strings.NewReader("abc"))
		n, err := c.Fill()
		require.NoError(t, err)
		require.Equal(t, 3, n)
		_, err = c.Fill()
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("data with eof is delivered first", func(t *testing.T) {
		c := New(16, 0).SetSource(iotest.DataErrReader(strings.NewReader("abc")))
		n, err := c.Fill()
		require.NoError(t, err)
		require.Equal(t, 3, n)
		_, err = c.Fill()
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("read error", func(t *testing.T) {
		bang := errors.New("bang")
		c := New(16, 0).SetSource(iotest.ErrReader(bang))
		_, err := c.Fill()
		require.ErrorIs(t, err, bang)
	})

	t.Run("no source", func(t *testing.T) {
		_, err := New(16, 0).Fill()
		require.ErrorIs(t, err, ErrNoSource)
	})
}

func TestChunk_FlushBuffer(t *testing.T) {
	sink := new(accumulativeWriter)
	c := New(16, 0).SetSink(sink)
	require.NoError(t, c.AppendString("Hello"))
	c.Skip(1)
	require.NoError(t, c.FlushBuffer())
	require.Equal(t, "ello", string(sink.Data))
	require.True(t, c.Empty())
	require.Zero(t, c.Position())

	require.ErrorIs(t, Wrap([]byte("x")).FlushBuffer(), ErrNoSink)
}

func TestChunk_Search(t *testing.T) {
	c := New(32, 0)
	require.NoError(t, c.AppendString("xxGET /index HTTP/1.1"))
	c.Skip(2)

	require.Equal(t, 3, c.IndexByte(' ', 0))
	require.Equal(t, 10, c.IndexByte(' ', 4))
	require.Equal(t, -1, c.IndexByte('?', 0))
	require.True(t, c.StartsWith("GET"))
	require.True(t, c.StartsWithFold("get /"))
	require.False(t, c.StartsWith("xx"))
	require.Equal(t, byte('G'), c.Byte(0))

	c.SetLimit(c.Position() + 3)
	require.True(t, c.Equals("GET"))
	require.True(t, c.EqualsFold("get"))
}

func TestChunk_Recycle(t *testing.T) {
	source := bytes.NewReader([]byte("payload"))
	c := New(16, 0).SetSource(source)
	_, err := c.Fill()
	require.NoError(t, err)

	c.Recycle()
	require.True(t, c.Empty())
	_, err = c.Fill()
	require.ErrorIs(t, err, ErrNoSource)

	c.SetSource(strings.NewReader("payload"))
	_, err = c.Fill()
	require.NoError(t, err)
	require.Equal(t, "payload", c.String())
}
