package tls

import (
	tls "crypto/tls"
	"crypto/x509"
	"encoding/pem"

	"github.com/rs/zerolog/log"
)

var secureCipherSuites = []uint16{
	// TLS 1.3 suites, picked automatically when 1.3 is negotiated.
	tls.TLS_AES_128_GCM_SHA256,
	tls.TLS_AES_256_GCM_SHA384,
	tls.TLS_CHACHA20_POLY1305_SHA256,

	// TLS 1.2 ECDHE suites with forward secrecy.
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
}

// MakeTLS builds the listener configuration for the LDAPS endpoint from a
// PEM certificate and key. Key material is never logged.
func MakeTLS(certPEM, keyPEM []byte) (*tls.Config, error) {
	if certPEM == nil && keyPEM == nil {
		return new(tls.Config), nil
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	// Continue with an empty pool when the system pool is unavailable.
	rootCAs, err := x509.SystemCertPool()
	if rootCAs == nil {
		rootCAs = x509.NewCertPool()
		log.Warn().Err(err).Msg("Using empty cert-pool")
	}

	for _, der := range decodeCertificates(certPEM) {
		x509Cert, err := x509.ParseCertificate(der)
		if err != nil {
			log.Error().Err(err).Msg("issue parsing cert PEM")
			continue
		}
		rootCAs.AddCert(x509Cert)
	}

	log.Debug().Strs("ciphersuites", CipherSuiteNames(secureCipherSuites)).Msg("LDAPS cipher suites")

	return &tls.Config{
		RootCAs:                  rootCAs,
		MinVersion:               tls.VersionTLS12,
		MaxVersion:               tls.VersionTLS13,
		PreferServerCipherSuites: true,
		CipherSuites:             secureCipherSuites,
		Certificates:             []tls.Certificate{cert},
	}, nil
}

// decodeCertificates collects every CERTIFICATE block from a PEM bundle.
func decodeCertificates(certPEM []byte) [][]byte {
	var ders [][]byte
	for {
		var block *pem.Block
		block, certPEM = pem.Decode(certPEM)
		if block == nil {
			return ders
		}
		if block.Type == "CERTIFICATE" {
			ders = append(ders, block.Bytes)
		}
	}
}

func CipherSuiteNames(suites []uint16) []string {
	var names []string
	for _, suite := range suites {
		names = append(names, tls.CipherSuiteName(suite))
	}
	return names
}
