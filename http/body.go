package http

import (
	"io"

	"github.com/indigo-web/connector/http/mime"
	"github.com/indigo-web/connector/http/status"
	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
)

type BodyCallback func([]byte) error

type Retriever interface {
	// Retrieve reads and returns a piece of body available for processing. The piece is
	// valid until the next call.
	Retrieve() ([]byte, error)
}

type retriever = Retriever

type Body struct {
	retriever
	request  *Request
	buff     []byte
	pending  []byte
	error    error
	prealloc int
	retain   int
}

// NewBody returns a body reading from the retriever. The buffer collecting the whole body
// is preallocated up to prealloc bytes and dropped on Reset if grown above retain.
func NewBody(impl Retriever, prealloc, retain int) *Body {
	return &Body{
		retriever: impl,
		prealloc:  prealloc,
		retain:    retain,
	}
}

// Callback invokes the callback every time as there's a piece of body available
// for reading. If the callback returns an error, it'll be passed back to the caller.
//
// Please note: this method can be used only once.
func (b *Body) Callback(cb BodyCallback) error {
	if b.error != nil {
		return b.error
	}

	for {
		var data []byte
		data, b.error = b.Retrieve()
		switch b.error {
		case nil:
		case io.EOF:
			return cb(data)
		default:
			return b.error
		}

		if b.error = cb(data); b.error != nil {
			return b.error
		}
	}
}

// Bytes returns the whole body at once in a byte representation. The returned slice is
// reused by the next request.
func (b *Body) Bytes() ([]byte, error) {
	if len(b.buff) != 0 {
		return b.buff, nil
	}

	if b.error != nil {
		if b.error == io.EOF {
			return b.buff, nil
		}

		return nil, b.error
	}

	// the declared length isn't trusted: the body may never arrive
	if n := int(min(b.request.ContentLength, int64(b.prealloc))); n > cap(b.buff) {
		b.buff = make([]byte, 0, n)
	}

	for {
		var data []byte
		data, b.error = b.Retrieve()
		b.buff = append(b.buff, data...)
		switch b.error {
		case nil:
		case io.EOF:
			return b.buff, nil
		default:
			return nil, b.error
		}
	}
}

// String returns the whole body at once in a string representation.
func (b *Body) String() (string, error) {
	bytes, err := b.Bytes()
	return uf.B2S(bytes), err
}

// Read implements the io.Reader interface.
func (b *Body) Read(into []byte) (n int, err error) {
	if len(b.pending) == 0 && b.error == nil {
		b.pending, b.error = b.Retrieve()
	}

	n = copy(into, b.pending)
	b.pending = b.pending[n:]

	if len(b.pending) == 0 && b.error != nil {
		err = b.error
	}

	return n, err
}

// JSON convoys the request's body to a json unmarshaller automatically.
//
// Please note: this method cannot be used on requests with Content-Type incompatible
// with mime.JSON (in this case, status.ErrUnsupportedMediaType is returned).
func (b *Body) JSON(model any) error {
	if !mime.Complies(mime.JSON, b.request.ContentType) {
		return status.ErrUnsupportedMediaType
	}

	data, err := b.Bytes()
	if err != nil {
		return err
	}

	iterator := json.ConfigDefault.BorrowIterator(data)
	iterator.ReadVal(model)
	err = iterator.Error
	json.ConfigDefault.ReturnIterator(iterator)

	return err
}

// Discard discards the rest of the body (if any). If no networking error was encountered,
// nil is returned.
func (b *Body) Discard() error {
	for b.error == nil {
		_, b.error = b.Retrieve()
	}

	if b.error == io.EOF {
		return nil
	}

	return b.error
}

// Error returns a previously encountered error, otherwise nil.
func (b *Body) Error() error {
	return b.error
}

// Reset prepares the body for the next request. Unread data isn't discarded, this is
// up to the retriever.
func (b *Body) Reset() {
	b.error = nil
	b.pending = nil
	if cap(b.buff) > b.retain {
		b.buff = nil
	} else {
		b.buff = b.buff[:0]
	}
}
