package address

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	require.Equal(t, "0.0.0.0:8080", Join("", 8080))
	require.Equal(t, "localhost:80", Join("localhost", 80))
	require.Equal(t, "[::1]:443", Join("::1", 443))
}

func TestNormalize(t *testing.T) {
	require.Equal(t, "0.0.0.0:8080", Normalize(":8080"))
	require.Equal(t, "localhost:8080", Normalize("localhost:8080"))
	require.True(t, IsLocalhost("LOCALHOST:8080"))
	require.True(t, IsLocalhost("[::1]:8080"))
	require.False(t, IsLocalhost("example.com:8080"))
	require.True(t, IsIP("10.0.0.1:80"))
	require.True(t, IsIP("[::1]:80"))
	require.False(t, IsIP("example.com"))
}

func TestSplitHost(t *testing.T) {
	for _, tc := range []struct {
		Host string
		Name string
		Port int
		OK   bool
	}{
		{"example.com", "example.com", 80, true},
		{"example.com:8080", "example.com", 8080, true},
		{"example.com:", "example.com", 80, true},
		{"[::1]", "[::1]", 80, true},
		{"[::1]:9090", "[::1]", 9090, true},
		{"example.com:http", "", 0, false},
		{"example.com:65536", "", 0, false},
	} {
		name, port, ok := SplitHost(tc.Host, 80)
		require.Equal(t, tc.OK, ok, tc.Host)
		require.Equal(t, tc.Name, name, tc.Host)
		require.Equal(t, tc.Port, port, tc.Host)
	}
}
