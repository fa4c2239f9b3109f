package bytechunk

import (
	"errors"
	"io"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
)

var (
	ErrNoSource = errors.New("bytechunk: no fill source attached")
	ErrNoSink   = errors.New("bytechunk: no flush sink attached")
	ErrFull     = errors.New("bytechunk: no room left to fill")
)

// Chunk is a window of bytes [position, limit) over a backing array. The array is either
// owned or borrowed (see Wrap), in which case it's copied out on the first growth. A chunk
// may be attached to a source it fills from and to a sink it flushes into.
//
// Chunks are not safe for concurrent use.
type Chunk struct {
	buff     []byte
	pos, lim int
	// ceiling limits the growth of the backing array. Zero means unbounded.
	ceiling  int
	borrowed bool
	source   io.Reader
	sink     io.Writer
}

// New returns a chunk with an owned backing array of the initial size. Growth of the array
// stops at ceiling, in which case already buffered data is flushed into the sink instead.
func New(initial, ceiling int) *Chunk {
	if ceiling > 0 && initial > ceiling {
		initial = ceiling
	}

	return &Chunk{
		buff:    make([]byte, initial),
		ceiling: ceiling,
	}
}

// Wrap returns a chunk over a borrowed slice. The whole slice is considered valid data.
// The slice isn't modified by appending: once it must grow, the data is copied into a
// newly allocated array.
func Wrap(b []byte) *Chunk {
	return &Chunk{
		buff:     b[:len(b):len(b)],
		lim:      len(b),
		borrowed: true,
	}
}

// SetSource attaches the reader Fill pulls the data from.
func (c *Chunk) SetSource(r io.Reader) *Chunk {
	c.source = r
	return c
}

// SetSink attaches the writer FlushBuffer evacuates the data into.
func (c *Chunk) SetSink(w io.Writer) *Chunk {
	c.sink = w
	return c
}

// SetCeiling changes the growth ceiling. Zero disables it.
func (c *Chunk) SetCeiling(n int) {
	c.ceiling = n
}

func (c *Chunk) Ceiling() int {
	return c.ceiling
}

// Bytes returns the valid window. The slice stays valid until the chunk is modified.
func (c *Chunk) Bytes() []byte {
	return c.buff[c.pos:c.lim]
}

// String returns the valid window as a string WITHOUT copying.
func (c *Chunk) String() string {
	return uf.B2S(c.Bytes())
}

func (c *Chunk) Len() int {
	return c.lim - c.pos
}

func (c *Chunk) Cap() int {
	return len(c.buff)
}

func (c *Chunk) Empty() bool {
	return c.pos == c.lim
}

func (c *Chunk) Position() int {
	return c.pos
}

func (c *Chunk) Limit() int {
	return c.lim
}

// SetPosition moves the beginning of the window. Values out of [0, limit] panic, as
// they break the chunk's invariant.
func (c *Chunk) SetPosition(pos int) {
	if pos < 0 || pos > c.lim {
		panic("bytechunk: position out of range")
	}

	c.pos = pos
}

// SetLimit moves the end of the window. Values out of [position, capacity] panic.
func (c *Chunk) SetLimit(lim int) {
	if lim < c.pos || lim > len(c.buff) {
		panic("bytechunk: limit out of range")
	}

	c.lim = lim
}

// Skip consumes n bytes from the beginning of the window.
func (c *Chunk) Skip(n int) {
	c.SetPosition(c.pos + n)
}

// Raw exposes the whole backing array. Offsets returned by Position and Limit index it.
func (c *Chunk) Raw() []byte {
	return c.buff
}

// Fill reads from the source into the free space after the limit. It returns io.EOF
// once the source is exhausted.
func (c *Chunk) Fill() (n int, err error) {
	if c.source == nil {
		return 0, ErrNoSource
	}

	if c.lim == len(c.buff) {
		return 0, ErrFull
	}

	n, err = c.source.Read(c.buff[c.lim:])
	c.lim += n
	if n > 0 && err == io.EOF {
		// the data must be processed first. The EOF will be reported on the next fill
		err = nil
	}

	return n, err
}

// Append copies the bytes at the end of the window, growing the backing array if
// necessary. Once the growth ceiling is reached, the buffered data is flushed into the sink.
func (c *Chunk) Append(b []byte) error {
	if len(b) <= len(c.buff)-c.lim {
		c.lim += copy(c.buff[c.lim:], b)
		return nil
	}

	c.grow(c.Len() + len(b))
	if len(b) <= len(c.buff)-c.lim {
		c.lim += copy(c.buff[c.lim:], b)
		return nil
	}

	if c.lim > 0 && c.pos == c.lim {
		c.Reset()
	} else if c.pos > 0 {
		c.Compact()
	}

	if len(b) <= len(c.buff)-c.lim {
		c.lim += copy(c.buff[c.lim:], b)
		return nil
	}

	// the ceiling is reached, so the data must be evacuated
	if c.sink == nil {
		return ErrNoSink
	}

	if err := c.FlushBuffer(); err != nil {
		return err
	}

	if len(b) > len(c.buff) {
		// no sense to cut the payload into buffer-sized pieces
		_, err := c.sink.Write(b)
		return err
	}

	c.lim += copy(c.buff[c.lim:], b)
	return nil
}

func (c *Chunk) AppendString(s string) error {
	return c.Append(uf.S2B(s))
}

func (c *Chunk) AppendByte(b byte) error {
	if c.lim < len(c.buff) {
		c.buff[c.lim] = b
		c.lim++
		return nil
	}

	return c.Append([]byte{b})
}

// grow enlarges the backing array geometrically in order to fit n bytes of valid data,
// never exceeding the ceiling.
func (c *Chunk) grow(n int) {
	if n <= len(c.buff) && !c.borrowed {
		return
	}

	if c.ceiling > 0 && len(c.buff) >= c.ceiling {
		return
	}

	newSize := max(len(c.buff)*2, n, 16)
	if c.ceiling > 0 && newSize > c.ceiling {
		newSize = c.ceiling
	}

	if newSize <= len(c.buff) {
		return
	}

	buff := make([]byte, newSize)
	c.lim = copy(buff, c.buff[c.pos:c.lim])
	c.pos = 0
	c.buff = buff
	c.borrowed = false
}

// FlushBuffer writes the window into the sink and drains it.
func (c *Chunk) FlushBuffer() error {
	if c.pos == c.lim {
		c.Reset()
		return nil
	}

	if c.sink == nil {
		return ErrNoSink
	}

	n, err := c.sink.Write(c.buff[c.pos:c.lim])
	c.pos += n
	if err != nil {
		return err
	}

	c.Reset()
	return nil
}

// Compact moves the window to the beginning of the backing array.
func (c *Chunk) Compact() {
	if c.pos == 0 {
		return
	}

	c.lim = copy(c.buff, c.buff[c.pos:c.lim])
	c.pos = 0
}

// Reset empties the window, keeping the backing array, the source and the sink.
func (c *Chunk) Reset() {
	c.pos, c.lim = 0, 0
}

// Recycle prepares the chunk to be reused for another connection: the window is emptied
// and the source and sink are detached.
func (c *Chunk) Recycle() {
	c.Reset()
	c.source = nil
	c.sink = nil
}

// Byte returns a byte at offset i from the position.
func (c *Chunk) Byte(i int) byte {
	return c.buff[c.pos+i]
}

// IndexByte returns an offset from the position of the first occurrence of b, starting
// the search from the from offset. -1 is returned if there is none.
func (c *Chunk) IndexByte(b byte, from int) int {
	for i := c.pos + from; i < c.lim; i++ {
		if c.buff[i] == b {
			return i - c.pos
		}
	}

	return -1
}

func (c *Chunk) Equals(s string) bool {
	return uf.B2S(c.Bytes()) == s
}

func (c *Chunk) EqualsFold(s string) bool {
	return strcomp.EqualFold(uf.B2S(c.Bytes()), s)
}

func (c *Chunk) StartsWith(s string) bool {
	return c.Len() >= len(s) && uf.B2S(c.buff[c.pos:c.pos+len(s)]) == s
}

func (c *Chunk) StartsWithFold(s string) bool {
	return c.Len() >= len(s) && strcomp.EqualFold(uf.B2S(c.buff[c.pos:c.pos+len(s)]), s)
}
