package transport

import "leadmarket_backend/internal/leads/domain"

type SubmitLeadRequest struct {
	FirstName string `json:"firstName" binding:"required,min=1,max=80"`
	LastName  string `json:"lastName" binding:"required,min=1,max=80"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone" binding:"required"`
	Address   string `json:"address" binding:"omitempty,max=200"`
	City      string `json:"city" binding:"omitempty,max=120"`
	Zip       string `json:"zip" binding:"required"`
}

type UpdateStatusRequest struct {
	LeadIDs []string `json:"leadIds" binding:"required,min=1,max=100"`
	Status  string   `json:"status" binding:"required"`
}

type LeadResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	Zip       string `json:"zip"`
	Status    string `json:"status"`
}

func ToLeadResponse(lead domain.Lead) LeadResponse {
	return LeadResponse{
		ID:        lead.ID,
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		Email:     lead.Email,
		Phone:     lead.Phone,
		Address:   lead.Address,
		City:      lead.City,
		Zip:       lead.Zip,
		Status:    string(lead.Status),
	}
}

func ToLeadResponses(leads []domain.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, ToLeadResponse(lead))
	}
	return out
}
