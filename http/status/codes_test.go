package status

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLine(t *testing.T) {
	require.Equal(t, "200 OK", Line(OK))
	require.Equal(t, "404 Not Found", Line(NotFound))
	require.Equal(t, "100 Continue", Line(Continue))
	require.Equal(t, "599 Unknown Status Code", Line(599))
	require.Equal(t, "1000 Unknown Status Code", Line(1000))
}

func TestText(t *testing.T) {
	require.Equal(t, Status("I'm a teapot"), Text(Teapot))
	require.Equal(t, Status("Unknown Status Code"), Text(299))
}

func TestAllowsBody(t *testing.T) {
	require.True(t, AllowsBody(OK))
	require.False(t, AllowsBody(NoContent))
	require.False(t, AllowsBody(NotModified))
	require.False(t, AllowsBody(Continue))
}

func TestHTTPError(t *testing.T) {
	err := NewError(BadRequest, "nope")
	var httpErr HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, BadRequest, httpErr.Code)
	require.EqualError(t, err, "nope")
}

func BenchmarkLine(b *testing.B) {
	for range b.N {
		_ = Line(NotFound)
	}
}

func TestClosingPolicy(t *testing.T) {
	policy := ClosingPolicy{BadRequest, InternalServerError}
	require.True(t, policy.Closes(BadRequest))
	require.False(t, policy.Closes(OK))
	require.False(t, ClosingPolicy(nil).Closes(BadRequest))
}
