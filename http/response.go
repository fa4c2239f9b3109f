package http

import (
	"errors"
	"io"
	"strconv"

	"github.com/indigo-web/connector/http/action"
	"github.com/indigo-web/connector/http/mime"
	"github.com/indigo-web/connector/http/status"
	"github.com/indigo-web/connector/kv"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
)

var ErrCommitted = errors.New("response is already committed")

// Fields are the values the response is serialized from.
type Fields struct {
	Code   status.Code
	Status status.Status
	// Headers don't include Content-Type and Content-Length, as they're kept separately.
	Headers     *kv.Storage
	ContentType string
	// ContentLength is -1 when unknown.
	ContentLength int64
	Committed     bool
	Sendfile      *SendfileJob
}

// Response is a streaming response: headers are mutable until the response is committed,
// which happens implicitly on the first write or explicitly via Commit.
type Response struct {
	fields   Fields
	sendfile SendfileJob
	hook     ActionHook
	out      io.Writer
}

// NewResponse returns a new response, passing commits and other operations to the hook
// and body writes to out.
func NewResponse(hook ActionHook, out io.Writer) *Response {
	return &Response{
		fields: Fields{
			Code:          status.OK,
			Headers:       kv.NewPrealloc(8),
			ContentLength: -1,
		},
		hook: hook,
		out:  out,
	}
}

// Code sets a Response code. It is a no-op once the response is committed.
func (r *Response) Code(code status.Code) *Response {
	if !r.fields.Committed {
		r.fields.Code = code
	}

	return r
}

// Status sets a custom status text.
func (r *Response) Status(status status.Status) *Response {
	if !r.fields.Committed {
		r.fields.Status = status
	}

	return r
}

// ContentType sets a custom Content-Type header value.
func (r *Response) ContentType(value mime.MIME) *Response {
	if !r.fields.Committed {
		r.fields.ContentType = value
	}

	return r
}

// ContentLength sets the length of the body. Bodies of unknown length are sent chunked
// (or close-delimited, for HTTP/1.0 clients).
func (r *Response) ContentLength(n int64) *Response {
	if !r.fields.Committed {
		r.fields.ContentLength = n
	}

	return r
}

// Header adds header values to a key.
func (r *Response) Header(key string, values ...string) *Response {
	if r.fields.Committed {
		return r
	}

	switch {
	case strcomp.EqualFold(key, "content-type"):
		return r.ContentType(values[0])
	case strcomp.EqualFold(key, "content-length"):
		n, err := strconv.ParseInt(values[0], 10, 64)
		if err != nil {
			return r
		}

		return r.ContentLength(n)
	}

	for _, value := range values {
		r.fields.Headers.Add(key, value)
	}

	return r
}

// SetHeader replaces all the values of the key by a single one.
func (r *Response) SetHeader(key, value string) *Response {
	if !r.fields.Committed {
		r.fields.Headers.Delete(key)
	}

	return r.Header(key, value)
}

// Commit sends the status line and the headers.
func (r *Response) Commit() error {
	if r.fields.Committed {
		return nil
	}

	return r.hook.Action(action.Commit, nil)
}

// Write implements the io.Writer. The response is committed first.
func (r *Response) Write(b []byte) (n int, err error) {
	if !r.fields.Committed {
		if err = r.hook.Action(action.Commit, nil); err != nil {
			return 0, err
		}
	}

	return r.out.Write(b)
}

func (r *Response) WriteString(s string) (n int, err error) {
	return r.Write(uf.S2B(s))
}

// String writes the whole body at once. Unless set, the Content-Length is derived.
func (r *Response) String(body string) error {
	return r.Bytes(uf.S2B(body))
}

// Bytes writes the whole body at once. Unless set, the Content-Length is derived.
func (r *Response) Bytes(body []byte) error {
	if !r.fields.Committed && r.fields.ContentLength < 0 {
		r.fields.ContentLength = int64(len(body))
	}

	_, err := r.Write(body)
	return err
}

// JSON serializes the model and writes it as the body.
func (r *Response) JSON(model any) error {
	if !r.fields.Committed && len(r.fields.ContentType) == 0 {
		r.fields.ContentType = mime.JSON
	}

	stream := json.ConfigDefault.BorrowStream(r)
	stream.WriteVal(model)
	err := stream.Flush()
	json.ConfigDefault.ReturnStream(stream)

	return err
}

// Error sets the status code carried by the error. status.HTTPError carries its own
// code, others result in 500 Internal Server Error.
func (r *Response) Error(err error) *Response {
	if err == nil {
		return r
	}

	var httpErr status.HTTPError
	if errors.As(err, &httpErr) && httpErr.Code != status.CloseConnection {
		return r.Code(httpErr.Code)
	}

	return r.Code(status.InternalServerError)
}

// Flush pushes the buffered data out, committing the response if necessary.
func (r *Response) Flush() error {
	return r.hook.Action(action.Flush, nil)
}

// Finish completes the response. Nothing may be written after.
func (r *Response) Finish() error {
	return r.hook.Action(action.Close, nil)
}

// Sendfile makes the file region being transmitted by the transport itself, bypassing
// the response body. Nothing must be written into the body afterwards. Negative length
// means until the end of the file.
func (r *Response) Sendfile(path string, offset, length int64) error {
	if r.fields.Committed {
		return ErrCommitted
	}

	if len(r.fields.ContentType) == 0 {
		r.fields.ContentType = mime.WithCharset(mime.ByFilename(path))
	}

	r.sendfile = SendfileJob{
		Path:   path,
		Offset: offset,
		Length: length,
	}

	if err := r.hook.Action(action.Sendfile, &r.sendfile); err != nil {
		return err
	}

	r.fields.Sendfile = &r.sendfile
	return nil
}

// Reset discards everything set so far. It fails if the response is already committed.
func (r *Response) Reset() error {
	if r.fields.Committed {
		return ErrCommitted
	}

	r.clear()
	return r.hook.Action(action.Reset, nil)
}

// Expose gives the access to the response fields. Setting Committed manually makes all
// the setters no-ops.
func (r *Response) Expose() *Fields {
	return &r.fields
}

// Recycle clears the response, so it may be reused for the next one.
func (r *Response) Recycle() {
	r.clear()
	r.fields.Committed = false
}

func (r *Response) clear() {
	r.fields.Code = status.OK
	r.fields.Status = ""
	r.fields.Headers.Clear()
	r.fields.ContentType = ""
	r.fields.ContentLength = -1
	r.fields.Sendfile = nil
	r.sendfile = SendfileJob{}
}
