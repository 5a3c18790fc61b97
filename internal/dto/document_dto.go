package dto

import "time"

type ProcessDocumentRequest struct {
	// Path to an extracted-text document on the server's filesystem.
	FilePath string `json:"file_path" validate:"required"`
	Format   string `json:"format" validate:"omitempty,oneof=text markdown"`
	// Omitted on first upload; the server mints an id. Supplying an existing
	// live id replaces that session's document atomically.
	SessionId string `json:"session_id" validate:"omitempty,uuid4"`
}

type ProcessDocumentResponse struct {
	SessionId     string    `json:"session_id"`
	UploadTime    time.Time `json:"upload_time"`
	PageCount     int       `json:"page_count"`
	ChunksCreated int       `json:"chunks_created"`
	Replaced      bool      `json:"replaced"`
}

type ResetSessionRequest struct {
	SessionId string `json:"session_id" validate:"required,uuid4"`
}

type ResetSessionResponse struct {
	SessionId    string `json:"session_id"`
	TurnsCleared int    `json:"turns_cleared"`
}

type SessionStatusResponse struct {
	SessionId  string     `json:"session_id"`
	Live       bool       `json:"live"`
	Expired    bool       `json:"expired"`
	UploadTime *time.Time `json:"upload_time,omitempty"`
	Turns      int        `json:"turns"`
}
