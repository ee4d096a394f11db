// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadmarket_backend/platform/events"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// ContractorRegistered is published when a contractor completes registration
// after their checkout session.
type ContractorRegistered struct {
	BaseEvent
	ContractorID uuid.UUID `json:"contractorId"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Company      string    `json:"company"`
}

func (e ContractorRegistered) EventName() string { return "contractors.registered" }

// LeadCreated is published when a prospect submits interest and a CRM
// contact is created with status OPEN.
type LeadCreated struct {
	BaseEvent
	LeadID string `json:"leadId"`
	Zip    string `json:"zip"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
}

func (e LeadCreated) EventName() string { return "leads.created" }

// LeadRouted is published when the reconciliation job routes a lead to a
// matched contractor. Notification uses it to alert the contractor.
type LeadRouted struct {
	BaseEvent
	ContractorID    uuid.UUID `json:"contractorId"`
	ContractorEmail string    `json:"contractorEmail"`
	ContractorPhone string    `json:"contractorPhone"`
	LeadID          string    `json:"leadId"`
	LeadName        string    `json:"leadName"`
	LeadPhone       string    `json:"leadPhone"`
	LeadZip         string    `json:"leadZip"`
}

func (e LeadRouted) EventName() string { return "billing.lead.routed" }

// ContractorCharged is published after a successful per-lead charge so a
// receipt can be sent.
type ContractorCharged struct {
	BaseEvent
	ContractorID    uuid.UUID `json:"contractorId"`
	ContractorEmail string    `json:"contractorEmail"`
	LeadCount       int       `json:"leadCount"`
	AmountCents     int64     `json:"amountCents"`
	PaymentIntentID string    `json:"paymentIntentId"`
}

func (e ContractorCharged) EventName() string { return "billing.contractor.charged" }
