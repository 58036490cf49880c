package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	tls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"
)

func selfSignedPair(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func TestMakeTLSWithKeyPair(t *testing.T) {
	certPEM, keyPEM := selfSignedPair(t)

	cfg, err := MakeTLS(certPEM, keyPEM)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("certificates = %d, want 1", len(cfg.Certificates))
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Fatalf("minVersion = %x, want TLS 1.2", cfg.MinVersion)
	}
}

func TestMakeTLSWithoutMaterial(t *testing.T) {
	cfg, err := MakeTLS(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Certificates) != 0 {
		t.Fatal("no key material should mean no certificates")
	}
}

func TestDecodeCertificatesSkipsOtherBlocks(t *testing.T) {
	certPEM, keyPEM := selfSignedPair(t)
	bundle := append(append([]byte{}, keyPEM...), certPEM...)

	ders := decodeCertificates(bundle)
	if len(ders) != 1 {
		t.Fatalf("got %d certificate blocks, want 1", len(ders))
	}
	if decodeCertificates([]byte("not pem")) != nil {
		t.Fatal("garbage input should yield no certificates")
	}
}
