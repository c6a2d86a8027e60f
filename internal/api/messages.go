// Package api defines the notekeeper.v1.Notes gRPC contract: message types,
// the JSON wire codec, the service descriptor and a typed client.
package api

import "time"

// RegisterRequest creates an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

// LoginRequest exchanges credentials for an access token.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
}

// Note is a decrypted note as returned to its owner.
type Note struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	// ContentUnavailable is set when the stored content could not be decrypted;
	// Content then holds a placeholder.
	ContentUnavailable bool      `json:"content_unavailable,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CreateNoteRequest adds a note. A nil Title means "Untitled note".
type CreateNoteRequest struct {
	Title   *string `json:"title,omitempty"`
	Content string  `json:"content"`
}

type CreateNoteResponse struct {
	Note Note `json:"note"`
}

type ListNotesRequest struct{}

type ListNotesResponse struct {
	Notes []Note `json:"notes"`
}

type GetNoteRequest struct {
	ID string `json:"id"`
}

type GetNoteResponse struct {
	Note Note `json:"note"`
}

// UpdateNoteRequest replaces title and content. A nil Title means "Untitled note".
type UpdateNoteRequest struct {
	ID      string  `json:"id"`
	Title   *string `json:"title,omitempty"`
	Content string  `json:"content"`
}

type UpdateNoteResponse struct {
	Note Note `json:"note"`
}

type DeleteNoteRequest struct {
	ID string `json:"id"`
}

type DeleteNoteResponse struct{}
