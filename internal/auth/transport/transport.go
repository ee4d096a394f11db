package transport

import "github.com/google/uuid"

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	ContractorID uuid.UUID `json:"contractorId"`
}

type WhoamiResponse struct {
	ContractorID uuid.UUID `json:"contractorId"`
	Roles        []string  `json:"roles"`
}
