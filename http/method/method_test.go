package method

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for m := GET; m <= PATCH; m++ {
		require.Equal(t, m, Parse(m.String()))
	}

	require.Equal(t, Unknown, Parse("get"))
	require.Equal(t, Unknown, Parse("PROPFIND"))
	require.Equal(t, Unknown, Parse(""))
}

func BenchmarkParse(b *testing.B) {
	for range b.N {
		_ = Parse("OPTIONS")
	}
}
