package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"sync"
)

var (
	testKeysOnce   sync.Once
	testPrivatePEM string
	testPublicPEM  string
	testKeysErr    error
)

// testKeyPEM returns a P-256 key pair generated once per process, PEM-encoded.
func testKeyPEM() (private, public string, err error) {
	testKeysOnce.Do(func() {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			testKeysErr = err
			return
		}
		priv, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			testKeysErr = err
			return
		}
		pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			testKeysErr = err
			return
		}
		testPrivatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: priv}))
		testPublicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub}))
	})
	return testPrivatePEM, testPublicPEM, testKeysErr
}

// NewTestTokenProvider returns an ES256 TokenProvider over a throwaway key pair,
// issuer "test-issuer" and audience "test-audience". For tests only.
func NewTestTokenProvider() (*TokenProvider, error) {
	priv, pub, err := testKeyPEM()
	if err != nil {
		return nil, err
	}
	return NewTokenProviderFromConfig(priv, pub, "", "test-issuer", "test-audience")
}

// NewTestHMACTokenProvider returns an HS256 TokenProvider with a fixed secret. For tests only.
func NewTestHMACTokenProvider() (*TokenProvider, error) {
	return NewHMACTokenProvider([]byte("authguard-test-secret-0123456789abcdef"), "test-issuer", "test-audience")
}
