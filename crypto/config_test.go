package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Functions

// writeSelfSignedCert places a fresh self-signed
// certificate and its key into dir.
func writeSelfSignedCert(t *testing.T, dir string) (string, string) {

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")

	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600))

	return certPath, keyPath
}

// TestNewPublicTLSConfig checks that a valid
// certificate is loaded into a strict config.
func TestNewPublicTLSConfig(t *testing.T) {

	dir := t.TempDir()
	certPath, keyPath := writeSelfSignedCert(t, dir)

	config, err := NewPublicTLSConfig(certPath, keyPath)
	require.NoError(t, err)

	assert.Len(t, config.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), config.MinVersion)
	assert.False(t, config.InsecureSkipVerify)

	// Key not matching is refused.
	_, err = NewPublicTLSConfig(certPath, certPath)
	assert.Error(t, err)

	_, err = NewPublicTLSConfig(filepath.Join(dir, "missing.pem"), keyPath)
	assert.Error(t, err)
}
