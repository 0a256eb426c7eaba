// Package vault seals and opens the JSON blobs the gateway stores at rest
// (Payload, Features, and Result.json_tail) with an AEAD cipher, so a
// database dump alone never discloses underwriting inputs.
//
// The original service used Fernet (AES-128-CBC + HMAC) via a single
// lru_cache'd cipher built from ENCRYPTION_KEY. This port uses
// ChaCha20-Poly1305 from golang.org/x/crypto, keeping the same "one
// process-wide cipher derived from one key" shape but as an explicit struct
// rather than a cached global.
package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/softmax/underwriting-gateway/internal/apierr"
)

// Vault seals and opens JSON payloads with ChaCha20-Poly1305.
type Vault struct {
	aead   interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
		Overhead() int
	}
}

// New derives a 32-byte key from the configured secret via SHA-256, so
// operators can supply a passphrase of any length for ENCRYPTION_KEY the
// same way the original accepted an arbitrary Fernet-compatible key.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, apierr.Crypto("ENCRYPTION_KEY must be set for field-level encryption", nil)
	}
	key := sha256.Sum256([]byte(secret))
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, apierr.Crypto("failed to initialize cipher", err)
	}
	return &Vault{aead: aead}, nil
}

// SealJSON marshals v to JSON and seals it, returning nonce||ciphertext.
func (v *Vault) SealJSON(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, apierr.Crypto("failed to marshal payload for encryption", err)
	}
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, apierr.Crypto("failed to generate nonce", err)
	}
	sealed := v.aead.Seal(nil, nonce, data, nil)
	return append(nonce, sealed...), nil
}

// OpenJSON opens a blob produced by SealJSON and unmarshals it into out.
func (v *Vault) OpenJSON(blob []byte, out any) error {
	ns := v.aead.NonceSize()
	if len(blob) < ns {
		return apierr.Crypto("ciphertext shorter than nonce", nil)
	}
	nonce, ciphertext := blob[:ns], blob[ns:]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return apierr.Crypto("ciphertext authentication failed", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return apierr.Crypto("failed to unmarshal decrypted payload", err)
	}
	return nil
}

// SealRaw is a convenience wrapper for callers that already have a
// map[string]any, kept distinct from SealJSON for readability at call
// sites that deal exclusively in raw JSON documents.
func (v *Vault) SealRaw(m map[string]any) ([]byte, error) {
	return v.SealJSON(m)
}

func (v *Vault) OpenRaw(blob []byte) (map[string]any, error) {
	var m map[string]any
	if err := v.OpenJSON(blob, &m); err != nil {
		return nil, err
	}
	return m, nil
}
