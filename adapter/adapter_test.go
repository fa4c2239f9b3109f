package adapter

import (
	"testing"

	"github.com/indigo-web/connector/http"
	"github.com/stretchr/testify/require"
)

func TestFunc(t *testing.T) {
	var called bool
	var a Adapter = Func(func(*http.Request, *http.Response) error {
		called = true
		return nil
	})

	require.NoError(t, a.Service(nil, nil))
	require.True(t, called)
	require.True(t, a.Event(nil, nil, false))
}
