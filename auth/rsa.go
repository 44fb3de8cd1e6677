package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// EncryptWithPublicKey xors the nul-terminated password with salt and
// encrypts it with the PEM encoded RSA public key using OAEP, as
// sha256_password and caching_sha2_password full authentication expect.
func EncryptWithPublicKey(pubPEM, password, salt []byte) ([]byte, error) {
	block, rest := pem.Decode(pubPEM)
	if block == nil {
		return nil, fmt.Errorf("no pem data found, data: %s", rest)
	}
	pkix, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := pkix.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("auth: public key is not RSA")
	}

	plain := xorPassword(password, salt)
	return rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, plain, nil)
}

// DecryptWithPrivateKey reverses EncryptWithPublicKey and returns the
// plaintext password.
func DecryptWithPrivateKey(key *rsa.PrivateKey, encrypted, salt []byte) ([]byte, error) {
	plain, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, key, encrypted, nil)
	if err != nil {
		return nil, err
	}
	if len(salt) > 0 {
		for i := range plain {
			plain[i] ^= salt[i%len(salt)]
		}
	}
	if n := len(plain); n > 0 && plain[n-1] == 0x00 {
		plain = plain[:n-1]
	}
	return plain, nil
}

// MarshalPublicKey returns the PEM encoding of the public half of key.
func MarshalPublicKey(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

func xorPassword(password, salt []byte) []byte {
	plain := make([]byte, len(password)+1)
	copy(plain, password)
	if len(salt) == 0 {
		return plain
	}
	for i := range plain {
		plain[i] ^= salt[i%len(salt)]
	}
	return plain
}
