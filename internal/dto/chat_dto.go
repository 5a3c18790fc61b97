package dto

import "time"

type AskRequest struct {
	SessionId string `json:"session_id" validate:"required,uuid4"`
	Question  string `json:"question" validate:"required"`
}

type CitationDTO struct {
	Source string `json:"source"`
	Page   int    `json:"page"`
}

type AskResponse struct {
	SessionId string        `json:"session_id"`
	Answer    string        `json:"answer"`
	Citations []CitationDTO `json:"citations"`
}

type SummarizeRequest struct {
	SessionId string `json:"session_id" validate:"required,uuid4"`
}

type SummarizeResponse struct {
	SessionId string        `json:"session_id"`
	Summary   string        `json:"summary"`
	Citations []CitationDTO `json:"citations"`
}

type CompareRequest struct {
	SessionIds []string `json:"session_ids" validate:"required,min=2,max=5,dive,uuid4"`
	Question   string   `json:"question" validate:"required"`
}

type CompareResponse struct {
	SessionIds []string      `json:"session_ids"`
	Answer     string        `json:"answer"`
	Citations  []CitationDTO `json:"citations"`
}

type TurnDTO struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

type ChatHistoryResponse struct {
	SessionId string    `json:"session_id"`
	Turns     []TurnDTO `json:"turns"`
}
