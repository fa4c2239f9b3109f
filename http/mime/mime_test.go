package mime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComplies(t *testing.T) {
	for _, value := range []string{"", JSON, JSON + ";", JSON + "; charset=utf-8", " " + JSON, "Application/JSON"} {
		require.True(t, Complies(JSON, value), value)
	}

	require.False(t, Complies(JSON, HTML))
	require.False(t, Complies(JSON, "application/jsonp"))
}

func TestEssence(t *testing.T) {
	require.Equal(t, "text/html", Essence("text/html ; charset=utf-8"))
	require.Equal(t, "", Essence(";charset=utf-8"))
}

func TestByExtension(t *testing.T) {
	require.Equal(t, HTML, ByExtension(".HTML"))
	require.Equal(t, PNG, ByFilename("/var/www/logo.png"))
	require.Equal(t, OctetStream, ByExtension(".unknown"))
	require.Equal(t, OctetStream, ByFilename("Makefile"))
	require.Equal(t, "text/plain;charset=utf-8", WithCharset(ByExtension(".txt")))
	require.Equal(t, PNG, WithCharset(PNG))
}
