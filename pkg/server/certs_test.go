package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeKeyPair(t *testing.T, dir, cn string) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath := filepath.Join(dir, "tls.crt")
	keyPath := filepath.Join(dir, "tls.key")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certPath, keyPath
}

func leafCN(t *testing.T, r *CertReloader) string {
	t.Helper()

	cert, err := r.GetCertificate(nil)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return leaf.Subject.CommonName
}

func TestCertReloader(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeKeyPair(t, dir, "first")

	r, err := NewCertReloader(certPath, keyPath, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, "first", leafCN(t, r))

	writeKeyPair(t, dir, "second")
	require.NoError(t, r.Reload())
	require.Equal(t, "second", leafCN(t, r))
}

func TestCertReloaderKeepsPairOnBadReload(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeKeyPair(t, dir, "good")

	r, err := NewCertReloader(certPath, keyPath, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(keyPath, []byte("garbage"), 0o600))
	require.Error(t, r.Reload())
	require.Equal(t, "good", leafCN(t, r))
}

func TestCertReloaderMissingFiles(t *testing.T) {
	_, err := NewCertReloader("/nonexistent/tls.crt", "/nonexistent/tls.key", zap.NewNop())
	require.Error(t, err)
}
