package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromBytes(t *testing.T) {
	tcs := []struct {
		Token string
		Want  Proto
	}{
		{"HTTP/1.1", HTTP11},
		{"HTTP/1.0", HTTP10},
		{"HTTP/1.7", HTTP11},
		{"", HTTP09},
		{"HTTP/2.0", Unknown},
		{"HTTP/1,1", Unknown},
		{"http/1.1", Unknown},
		{"HTTP/1.1 ", Unknown},
	}

	for _, tc := range tcs {
		t.Run(tc.Token, func(t *testing.T) {
			require.Equal(t, tc.Want, FromBytes([]byte(tc.Token)))
		})
	}
}
