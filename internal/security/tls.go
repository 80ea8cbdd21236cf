package security

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
)

// TLSConfig holds TLS configuration.
type TLSConfig struct {
	CertFile          string
	KeyFile           string
	CAFile            string
	RequireClientAuth bool
}

// LoadServerTLSConfig loads server TLS configuration. With a CA file, client certificates are
// verified against it, and RequireClientAuth makes them mandatory.
func LoadServerTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate and key: %w", err)
	}

	clientAuth := tls.NoClientCert
	switch {
	case cfg.RequireClientAuth:
		clientAuth = tls.RequireAndVerifyClientCert
	case cfg.CAFile != "":
		clientAuth = tls.VerifyClientCertIfGiven
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		CipherSuites: []uint16{
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_CHACHA20_POLY1305_SHA256,
		},
		ClientAuth: clientAuth,
	}

	if cfg.CAFile != "" {
		caData, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caData) {
			return nil, errors.New("failed to parse CA certificate")
		}

		tlsCfg.ClientCAs = caCertPool
	}

	return tlsCfg, nil
}

// VerifyTLSFiles verifies that the certificate and key exist, and the CA file when one is set.
func VerifyTLSFiles(certFile, keyFile, caFile string) error {
	files := []string{certFile, keyFile}
	if caFile != "" {
		files = append(files, caFile)
	}
	for _, file := range files {
		if file == "" {
			return errors.New("TLS file path must not be empty")
		}
		if _, err := os.Stat(file); err != nil {
			return fmt.Errorf("TLS file not found: %s - %w", file, err)
		}
	}
	return nil
}

// CertificateActor names the caller behind a verified client certificate by its Common Name.
func CertificateActor(clientCert *x509.Certificate) (string, error) {
	if clientCert == nil {
		return "", errors.New("client certificate is nil")
	}
	cn := strings.TrimSpace(clientCert.Subject.CommonName)
	if cn == "" {
		return "", errors.New("certificate Common Name is empty")
	}
	if !validActor(cn) {
		return "", fmt.Errorf("certificate Common Name %q is not a valid actor", cn)
	}
	return cn, nil
}
