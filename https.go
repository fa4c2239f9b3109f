package connector

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	return "/"
}

func cacheDir() string {
	const base = "golang-autocert"
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches", base)
	case "windows":
		for _, ev := range []string{"APPDATA", "CSIDL_APPDATA", "TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return filepath.Join(v, base)
			}
		}
		// Worst case:
		return filepath.Join(homeDir(), base)
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, base)
	}
	return filepath.Join(homeDir(), ".cache", base)
}

// autoTLSConfig obtains certificates via ACME, accepting the CA's terms of service. The
// certificates are cached on the disk if possible.
func (c *Connector) autoTLSConfig(domains ...string) *tls.Config {
	m := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
	}

	if len(domains) > 0 {
		m.HostPolicy = autocert.HostWhitelist(domains...)
	}

	cache := cacheDir()
	if err := mkdirIfNotExists(cache); err != nil {
		c.log.Warnf("connector: AutoTLS: not using a cache: %s", err)
	} else {
		m.Cache = autocert.DirCache(cache)
	}

	cfg := m.TLSConfig()
	cfg.NextProtos = append([]string{"http/1.1"}, cfg.NextProtos...)

	return cfg
}

// generateSelfSignedCert returns the paths to the certificate for the localhost and its
// key, generating them unless they're cached already.
func generateSelfSignedCert() (cert, key string, err error) {
	var (
		cache        = cacheDir()
		certFilename = filepath.Join(cache, "localhost.crt")
		keyFilename  = filepath.Join(cache, "localhost.key")
	)

	if certExists(certFilename, keyFilename) {
		return certFilename, keyFilename, nil
	}

	if err := mkdirIfNotExists(cache); err != nil {
		return "", "", err
	}

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", "", err
	}

	notBefore := time.Now()
	notAfter := notBefore.Add(10 * 365 * 24 * time.Hour) // 10 years validity

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"Localhost"}},
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return "", "", err
	}

	privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", "", err
	}

	if err = writePEM(certFilename, "CERTIFICATE", certDER); err != nil {
		return "", "", err
	}

	if err = writePEM(keyFilename, "PRIVATE KEY", privBytes); err != nil {
		return "", "", err
	}

	return certFilename, keyFilename, nil
}

func writePEM(filename, blockType string, data []byte) error {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	if err = pem.Encode(file, &pem.Block{Type: blockType, Bytes: data}); err != nil {
		_ = file.Close()
		return err
	}

	return file.Close()
}

func mkdirIfNotExists(dir string) error {
	if stat, err := os.Stat(dir); err == nil && stat.IsDir() {
		return nil
	}

	return os.MkdirAll(dir, 0700)
}

func certExists(cert, key string) bool {
	return fileExists(cert) && fileExists(key)
}

func fileExists(filename string) bool {
	stat, err := os.Stat(filename)

	return err == nil && !stat.IsDir()
}
