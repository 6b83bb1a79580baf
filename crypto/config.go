package crypto

import (
	"crypto/tls"

	"github.com/pkg/errors"
)

// Functions

// NewPublicTLSConfig returns a TLS config that is to be used
// when exposing ports to the public Internet. It defines very
// strict defaults but assumes that available system cert pools
// will be used when verifying certificates.
func NewPublicTLSConfig(certPath string, keyPath string) (*tls.Config, error) {

	// Put certificate specified via arguments as the
	// only certificate into config.
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load TLS cert and key")
	}

	// Define very strict defaults for public TLS usage.
	// TLS 1.3 suites are not configurable and all safe.
	config := &tls.Config{
		Certificates:     []tls.Certificate{cert},
		MinVersion:       tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP384, tls.CurveP256},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		},
	}

	return config, nil
}
