// Package notecipher seals note content with the deployment key.
//
// Blobs are nonce||ciphertext||tag using XChaCha20-Poly1305 with a random
// 24-byte nonce per call, so encrypting the same text twice yields different
// blobs. Any modification of a blob is detected on Decrypt.
package notecipher

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/model"
)

// KeySize is the key length the cipher requires.
const KeySize = chacha20poly1305.KeySize

// Cipher encrypts and decrypts note content. Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// New constructs a Cipher over key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", errs.ErrKeyUnavailable, KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrKeyUnavailable, err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext into an opaque blob.
func (c *Cipher) Encrypt(plaintext string) (model.EncryptedBlob, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a blob produced by Encrypt. All failures wrap errs.ErrDecryptionFailed.
func (c *Cipher) Decrypt(blob model.EncryptedBlob) (string, error) {
	if len(blob) < chacha20poly1305.NonceSizeX+c.aead.Overhead() {
		return "", fmt.Errorf("%w: blob too short (%d bytes)", errs.ErrDecryptionFailed, len(blob))
	}
	nonce := blob[:chacha20poly1305.NonceSizeX]
	ct := blob[chacha20poly1305.NonceSizeX:]
	pt, err := c.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrDecryptionFailed, err)
	}
	if !utf8.Valid(pt) {
		return "", fmt.Errorf("%w: plaintext is not utf-8", errs.ErrDecryptionFailed)
	}
	return string(pt), nil
}
