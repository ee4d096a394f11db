package transport

import (
	"github.com/google/uuid"

	"leadmarket_backend/internal/admin/service"
	"leadmarket_backend/internal/billing"
	contractortransport "leadmarket_backend/internal/contractors/transport"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
}

type SetPriceRequest struct {
	PricePerLeadCents int64 `json:"pricePerLeadCents" binding:"min=0"`
}

type ContractorRevenueResponse struct {
	ContractorID uuid.UUID `json:"contractorId"`
	Name         string    `json:"name"`
	Company      string    `json:"company"`
	LeadCount    int64     `json:"leadCount"`
	AmountCents  int64     `json:"amountCents"`
}

type RevenueResponse struct {
	Contractors      []ContractorRevenueResponse `json:"contractors"`
	TotalLeads       int64                       `json:"totalLeads"`
	TotalAmountCents int64                       `json:"totalAmountCents"`
}

func ToRevenueResponse(report service.RevenueReport) RevenueResponse {
	out := RevenueResponse{
		Contractors:      make([]ContractorRevenueResponse, 0, len(report.Contractors)),
		TotalLeads:       report.TotalLeads,
		TotalAmountCents: report.TotalAmountCents,
	}
	for _, row := range report.Contractors {
		out.Contractors = append(out.Contractors, ContractorRevenueResponse{
			ContractorID: row.ContractorID,
			Name:         row.Name,
			Company:      row.Company,
			LeadCount:    row.LeadCount,
			AmountCents:  row.AmountCents,
		})
	}
	return out
}

type BillingRunResponse struct {
	RunDate            string `json:"runDate"`
	Swept              int    `json:"swept"`
	Matched            int    `json:"matched"`
	Unmatched          int    `json:"unmatched"`
	AlreadyBilled      int    `json:"alreadyBilled"`
	Routed             int    `json:"routed"`
	Dropped            int    `json:"dropped"`
	Valid              int    `json:"valid"`
	Invalid            int    `json:"invalid"`
	ContractorsCharged int    `json:"contractorsCharged"`
	ContractorsFailed  int    `json:"contractorsFailed"`
	Resumed            int    `json:"resumed"`
	TotalAmountCents   int64  `json:"totalAmountCents"`
}

func ToBillingRunResponse(summary billing.Summary) BillingRunResponse {
	return BillingRunResponse{
		RunDate:            summary.RunDate.Format("2006-01-02"),
		Swept:              summary.Swept,
		Matched:            summary.Matched,
		Unmatched:          summary.Unmatched,
		AlreadyBilled:      summary.AlreadyBilled,
		Routed:             summary.Routed,
		Dropped:            summary.Dropped,
		Valid:              summary.Valid,
		Invalid:            summary.Invalid,
		ContractorsCharged: summary.ContractorsCharged,
		ContractorsFailed:  summary.ContractorsFailed,
		Resumed:            summary.Resumed,
		TotalAmountCents:   summary.TotalAmountCents,
	}
}

// ContractorListResponse reuses the contractor module's response shape.
type ContractorListResponse struct {
	Contractors []contractortransport.ContractorResponse `json:"contractors"`
	Count       int                                      `json:"count"`
}
