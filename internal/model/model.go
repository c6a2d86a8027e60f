// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

const (
	// DefaultTitle is used when a caller creates or edits a note without a title.
	DefaultTitle = "Untitled note"

	// ContentPlaceholder replaces the content of a note that failed to decrypt.
	ContentPlaceholder = "[content could not be decrypted]"
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// EncryptedBlob is an opaque nonce||ciphertext produced by the note cipher.
type EncryptedBlob []byte

// StoredNote is a note row as persisted; content is never held in plaintext here.
type StoredNote struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID     // FK -> users.id, immutable
	Title      string        // 1..200 characters
	ContentEnc EncryptedBlob // AEAD blob
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Note is a note as seen by its owner, content decrypted.
type Note struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Title     string
	Content   string // ContentPlaceholder when DecryptErr != nil
	CreatedAt time.Time
	UpdatedAt time.Time

	// DecryptErr is set when the stored blob could not be decrypted.
	DecryptErr error
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID           uuid.UUID // PK
	Username     string    // unique
	PasswordHash []byte    // Argon2id(password, PasswordSalt)
	PasswordSalt []byte    // per-user salt
	CreatedAt    time.Time
}
