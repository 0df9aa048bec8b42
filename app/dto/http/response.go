package http

import "github.com/microlearn/auth-service/app/dto"

type RegisterResponse struct {
	User    dto.PublicUser `json:"user"`
	Message string         `json:"message"`
}

type LoginResponse struct {
	User         dto.PublicUser `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	ExpiresIn    int64          `json:"expiresIn"`
}

type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationErrorResponse carries a machine-readable issue list for 400s
// produced by request validation.
type ValidationErrorResponse struct {
	Error  string       `json:"error"`
	Issues []FieldIssue `json:"issues"`
}

type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
