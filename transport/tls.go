package transport

import (
	"crypto/tls"
	"errors"
)

var (
	ErrBadCertificate = errors.New("one or more passed certificates are empty")
	ErrNoCertificates = errors.New("no certificates were passed")
)

// TLSConfig returns the config encrypting the endpoint connections with the certificates.
func TLSConfig(certs ...tls.Certificate) (*tls.Config, error) {
	// simple checks in order to avoid the most obvious mistakes
	switch {
	case len(certs) == 0:
		return nil, ErrNoCertificates
	case !noEmptyCerts(certs):
		return nil, ErrBadCertificate
	}

	return &tls.Config{
		Certificates: certs,
		NextProtos:   []string{"http/1.1"},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// LoadTLS reads the PEM-encoded key pair and returns the config built out of it.
func LoadTLS(cert, key string) (*tls.Config, error) {
	c, err := tls.LoadX509KeyPair(cert, key)
	if err != nil {
		return nil, err
	}

	return TLSConfig(c)
}

func noEmptyCerts(certs []tls.Certificate) bool {
	for _, c := range certs {
		if c.Certificate == nil {
			return false
		}
	}

	return true
}
