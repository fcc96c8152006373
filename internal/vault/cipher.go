package vault

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// SchemeThresholdStub identifies the threshold-encryption gateway stub.
	SchemeThresholdStub = "bite-threshold-stub"
	// SchemeSecretbox identifies the local NaCl secretbox cipher.
	SchemeSecretbox = "nacl-secretbox"

	stubPrefix = "ENCRYPTED("
	stubSuffix = ")"
)

// ThresholdStubCipher mimics the threshold-encryption gateway's wire format
// without performing real encryption. It exists for development and tests;
// production deployments inject the gateway-backed cipher or SecretboxCipher.
type ThresholdStubCipher struct{}

// NewThresholdStubCipher creates a new stub cipher
func NewThresholdStubCipher() *ThresholdStubCipher {
	return &ThresholdStubCipher{}
}

// Encrypt wraps the plaintext in the gateway's ciphertext marker.
func (c *ThresholdStubCipher) Encrypt(plaintext []byte) (*EncryptedLimit, error) {
	return &EncryptedLimit{
		Encrypted:  true,
		Ciphertext: stubPrefix + string(plaintext) + stubSuffix,
		Scheme:     SchemeThresholdStub,
	}, nil
}

// Decrypt validates the wrapper and unwraps the plaintext.
func (c *ThresholdStubCipher) Decrypt(ciphertext *EncryptedLimit) ([]byte, error) {
	if !strings.HasPrefix(ciphertext.Ciphertext, stubPrefix) || !strings.HasSuffix(ciphertext.Ciphertext, stubSuffix) {
		return nil, fmt.Errorf("%w: unrecognized wrapper", ErrInvalidCiphertext)
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(ciphertext.Ciphertext, stubPrefix), stubSuffix)
	return []byte(inner), nil
}

// SecretboxCipher encrypts limits locally with NaCl secretbox. Used when the
// threshold-encryption gateway is not available to a deployment.
type SecretboxCipher struct {
	key [32]byte
}

// NewSecretboxCipher creates a secretbox cipher from a 32-byte key
func NewSecretboxCipher(key []byte) (*SecretboxCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("secretbox key must be 32 bytes, got %d", len(key))
	}
	c := &SecretboxCipher{}
	copy(c.key[:], key)
	return c, nil
}

// Encrypt seals the plaintext under a random nonce. The nonce is prepended
// to the sealed box before encoding.
func (c *SecretboxCipher) Encrypt(plaintext []byte) (*EncryptedLimit, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &c.key)
	return &EncryptedLimit{
		Encrypted:  true,
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		Scheme:     SchemeSecretbox,
	}, nil
}

// Decrypt opens a sealed box produced by Encrypt.
func (c *SecretboxCipher) Decrypt(ciphertext *EncryptedLimit) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64", ErrInvalidCiphertext)
	}
	if len(raw) < 24 {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrInvalidCiphertext)
	}

	var nonce [24]byte
	copy(nonce[:], raw[:24])

	plaintext, ok := secretbox.Open(nil, raw[24:], &nonce, &c.key)
	if !ok {
		return nil, fmt.Errorf("%w: authentication failed", ErrInvalidCiphertext)
	}
	return plaintext, nil
}
