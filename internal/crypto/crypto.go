// Package crypto seals and opens AgentCredential secrets with authenticated
// symmetric encryption, grounded on original_source/app/core/crypto.py's
// encrypt_json/decrypt_json pair — translated to Go's own AEAD primitive
// (AES-256-GCM from the standard library) rather than carrying over
// Fernet. See DESIGN.md for why.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Sealer seals and opens JSON-serializable credential blobs under a single
// process-wide key.
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer builds a Sealer from a 32-byte key. Callers derive the key from
// CryptoConfig.CredentialsEncryptionKey (e.g. base64/hex-decoded upstream of
// this constructor); NewSealer itself only validates length.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("crypto: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	return &Sealer{gcm: gcm}, nil
}

// SealJSON serializes data and seals it; the returned blob is
// nonce||ciphertext||tag, ready to store as AgentCredential.SealedSecret.
func (s *Sealer) SealJSON(data map[string]string) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("crypto: marshal: %w", err)
	}
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}
	sealed := s.gcm.Seal(nonce, nonce, raw, nil)
	return sealed, nil
}

// OpenJSON reverses SealJSON. A forged or corrupted blob fails
// authentication and returns an error rather than garbage plaintext.
func (s *Sealer) OpenJSON(blob []byte) (map[string]string, error) {
	nonceSize := s.gcm.NonceSize()
	if len(blob) < nonceSize {
		return nil, errors.New("crypto: sealed blob too short")
	}
	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	raw, err := s.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: open: %w", err)
	}
	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("crypto: unmarshal: %w", err)
	}
	return data, nil
}
