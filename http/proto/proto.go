package proto

import "github.com/indigo-web/utils/uf"

type Proto uint8

const (
	Unknown Proto = iota
	// HTTP09 is a request line consisting of a method and a URI only.
	HTTP09
	HTTP10
	HTTP11
)

func (p Proto) String() string {
	lut := [...]string{HTTP09: "", HTTP10: "HTTP/1.0", HTTP11: "HTTP/1.1"}
	if int(p) >= len(lut) {
		return ""
	}

	return lut[p]
}

const (
	protoTokenLength   = len("HTTP/x.x")
	majorVersionOffset = len("HTTP/x") - 1
	minorVersionOffset = len("HTTP/x.x") - 1
	httpScheme         = "HTTP/"
)

// FromBytes recognizes a protocol token. An empty token is an HTTP/0.9 request. HTTP/1.x
// tokens with a minor version above 1 are treated as HTTP/1.1, as RFC 9112 requires
// from a server.
func FromBytes(raw []byte) Proto {
	if len(raw) == 0 {
		return HTTP09
	}

	if len(raw) != protoTokenLength || uf.B2S(raw[:majorVersionOffset]) != httpScheme ||
		raw[majorVersionOffset+1] != '.' {
		return Unknown
	}

	major, minor := raw[majorVersionOffset]-'0', raw[minorVersionOffset]-'0'
	if major != 1 || minor > 9 {
		return Unknown
	}

	if minor == 0 {
		return HTTP10
	}

	return HTTP11
}

// KeepAliveByDefault tells whether connections are persistent unless stated otherwise.
func (p Proto) KeepAliveByDefault() bool {
	return p == HTTP11
}
