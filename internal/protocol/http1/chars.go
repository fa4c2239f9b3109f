package http1

import (
	"math"
	"strings"
)

// tchar is a lookup table of characters allowed in tokens (RFC 9110, 5.6.2)
var tchar = func() (t [256]bool) {
	for c := '0'; c <= '9'; c++ {
		t[c] = true
	}

	for c := 'a'; c <= 'z'; c++ {
		t[c] = true
		t[c-'a'+'A'] = true
	}

	for _, c := range "!#$%&'*+-.^_`|~" {
		t[c] = true
	}

	return t
}()

func isToken(b []byte) bool {
	if len(b) == 0 {
		return false
	}

	for _, c := range b {
		if !tchar[c] {
			return false
		}
	}

	return true
}

func isOWS(c byte) bool {
	return c == ' ' || c == '\t'
}

// trimOWS cuts the optional whitespaces around the value. The returned offset is the
// number of bytes cut from the beginning.
func trimOWS(b []byte) (value []byte, offset int) {
	for offset < len(b) && isOWS(b[offset]) {
		offset++
	}

	end := len(b)
	for end > offset && isOWS(b[end-1]) {
		end--
	}

	return b[offset:end], offset
}

// parseContentLength accepts non-empty sequences of decimal digits only, so signs
// and whitespaces are rejected unlike with strconv.
func parseContentLength(s string) (n int64, ok bool) {
	if len(s) == 0 {
		return 0, false
	}

	for i := 0; i < len(s); i++ {
		c := s[i] - '0'
		if c > 9 || n > (math.MaxInt64-int64(c))/10 {
			return 0, false
		}

		n = n*10 + int64(c)
	}

	return n, true
}

// eachToken calls fn for every non-empty element of a comma-separated list.
func eachToken(list string, fn func(token string) bool) bool {
	for len(list) > 0 {
		var token string
		token, list, _ = strings.Cut(list, ",")
		if token = strings.Trim(token, " \t"); len(token) == 0 {
			continue
		}

		if !fn(token) {
			return false
		}
	}

	return true
}
