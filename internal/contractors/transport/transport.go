package transport

import (
	"time"

	"github.com/google/uuid"

	"leadmarket_backend/internal/contractors/repository"
)

type CreateCheckoutSessionRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required,min=2,max=120"`
}

type CheckoutSessionResponse struct {
	SessionID   string `json:"sessionId"`
	CheckoutURL string `json:"checkoutUrl"`
}

type UpdateSessionRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type RegisterRequest struct {
	Name      string   `json:"name" binding:"required,min=2,max=120"`
	Company   string   `json:"company" binding:"required,min=2,max=160"`
	Email     string   `json:"email" binding:"required,email"`
	Phone     string   `json:"phone" binding:"required"`
	Password  string   `json:"password" binding:"required,min=10,max=72"`
	SessionID string   `json:"sessionId" binding:"required"`
	ZipCodes  []string `json:"zipCodes" binding:"required,min=1,max=200,dive,us_zip"`
}

type UpdateProfileRequest struct {
	Name               *string  `json:"name" binding:"omitempty,min=2,max=120"`
	Company            *string  `json:"company" binding:"omitempty,min=2,max=160"`
	Phone              *string  `json:"phone" binding:"omitempty"`
	ZipCodes           []string `json:"zipCodes" binding:"omitempty,min=1,max=200,dive,us_zip"`
	CRMAPIKey          *string  `json:"crmApiKey"`
	PipelineID         *string  `json:"pipelineId"`
	PipelineLocationID *string  `json:"pipelineLocationId"`
}

type ContractorResponse struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Company            string    `json:"company"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	PricePerLeadCents  int64     `json:"pricePerLeadCents"`
	ZipCodes           []string  `json:"zipCodes"`
	HasCRMKey          bool      `json:"hasCrmKey"`
	PipelineID         *string   `json:"pipelineId,omitempty"`
	PipelineLocationID *string   `json:"pipelineLocationId,omitempty"`
	IsVerified         bool      `json:"isVerified"`
	CreatedAt          time.Time `json:"createdAt"`
}

func ToContractorResponse(c repository.Contractor) ContractorResponse {
	return ContractorResponse{
		ID:                 c.ID,
		Name:               c.Name,
		Company:            c.Company,
		Email:              c.Email,
		Phone:              c.Phone,
		PricePerLeadCents:  c.PricePerLeadCents,
		ZipCodes:           c.ZipCodes,
		HasCRMKey:          c.CRMAPIKey != nil && *c.CRMAPIKey != "",
		PipelineID:         c.PipelineID,
		PipelineLocationID: c.PipelineLocationID,
		IsVerified:         c.IsVerified,
		CreatedAt:          c.CreatedAt,
	}
}
