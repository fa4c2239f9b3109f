package address

import (
	"net"
	"strconv"
	"strings"
)

const DefaultAddr = "0.0.0.0"

// Join renders the host and the port into a dialable address. Empty host means every
// interface.
func Join(host string, port uint16) string {
	if len(host) == 0 {
		host = DefaultAddr
	}

	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}

func Normalize(addr string) string {
	if len(stripPort(addr)) == 0 {
		// only port is presented
		return DefaultAddr + addr
	}

	return addr
}

func IsLocalhost(addr string) bool {
	host := stripPort(addr)
	return strings.EqualFold(host, "localhost") || host == "127.0.0.1" || host == "[::1]"
}

func IsIP(addr string) bool {
	return net.ParseIP(strings.Trim(stripPort(addr), "[]")) != nil
}

// SplitHost separates the value of the Host header into the name and the port. Missing
// port results in the fallback one. Ok is false if the value is malformed.
func SplitHost(host string, fallback int) (name string, port int, ok bool) {
	colon := strings.LastIndexByte(host, ':')
	if colon == -1 || strings.LastIndexByte(host, ']') > colon {
		// either no port or a bare IPv6 literal in brackets
		return host, fallback, len(host) > 0 || fallback > 0
	}

	name, rawPort := host[:colon], host[colon+1:]
	if len(rawPort) == 0 {
		return name, fallback, true
	}

	port, err := strconv.Atoi(rawPort)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, false
	}

	return name, port, true
}

func stripPort(addr string) string {
	if strings.HasPrefix(addr, "[") {
		if end := strings.IndexByte(addr, ']'); end != -1 {
			return addr[:end+1]
		}
	}

	colon := strings.IndexByte(addr, ':')
	if colon != -1 {
		return addr[:colon]
	}

	return addr
}
