// Package certs keeps a self-signed certificate for serving the API over
// HTTPS on the local machine.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Certificate defaults.
const (
	DefaultValidity = 90 * 24 * time.Hour
	// renewBefore is how close to expiry a stored certificate is replaced.
	renewBefore     = 7 * 24 * time.Hour
	organization    = "tally"
)

// Store loads and regenerates the certificate pair in a directory.
type Store struct {
	now      func() time.Time
	dir      string
	certFile string
	keyFile  string
	hosts    []string
	validity time.Duration
}

// NewStore creates a store in dir. The certificate covers localhost, the
// loopback addresses and any extra hosts given.
func NewStore(dir string, hosts ...string) *Store {
	return &Store{
		now:      time.Now,
		dir:      dir,
		certFile: filepath.Join(dir, "tally.crt"),
		keyFile:  filepath.Join(dir, "tally.key"),
		hosts:    append([]string{"localhost", "127.0.0.1", "::1"}, hosts...),
		validity: DefaultValidity,
	}
}

// Paths returns the certificate and key file paths.
func (s *Store) Paths() (certFile, keyFile string) {
	return s.certFile, s.keyFile
}

// Load returns the stored certificate, generating a new pair when none
// exists or the stored one is unreadable, expiring or missing a host.
func (s *Store) Load() (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		slog.Warn("Stored certificate is unreadable, regenerating", "path", s.certFile, "error", err)
	default:
		verr := s.verify(cert)
		if verr == nil {
			return cert, nil
		}
		slog.Info("Regenerating certificate", "path", s.certFile, "reason", verr)
	}
	return s.generate()
}

func (s *Store) verify(cert tls.Certificate) error {
	if len(cert.Certificate) == 0 {
		return fmt.Errorf("no certificates found")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	now := s.now()
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("certificate not yet valid")
	}
	if now.Add(renewBefore).After(leaf.NotAfter) {
		return fmt.Errorf("certificate expires %s", leaf.NotAfter.Format(time.DateOnly))
	}
	for _, host := range s.hosts {
		if err := leaf.VerifyHostname(host); err != nil {
			return fmt.Errorf("certificate not valid for %s", host)
		}
	}
	return nil
}

func (s *Store) generate() (tls.Certificate, error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate private key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := s.now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{organization}, CommonName: "localhost"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(s.validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, host := range s.hosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to encode private key: %w", err)
	}

	if err := writePEM(s.certFile, "CERTIFICATE", der); err != nil {
		return tls.Certificate{}, err
	}
	if err := writePEM(s.keyFile, "PRIVATE KEY", keyDER); err != nil {
		return tls.Certificate{}, err
	}

	slog.Info("Generated self-signed certificate", "path", s.certFile, "expires", template.NotAfter.Format(time.DateOnly))
	return tls.LoadX509KeyPair(s.certFile, s.keyFile)
}

// writePEM replaces path atomically so a crash never leaves half a pair.
func writePEM(path, blockType string, der []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := pem.Encode(tmp, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
