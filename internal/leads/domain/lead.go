// Package domain holds the lead types shared by the leads, billing, and CRM
// packages. A lead is never persisted locally; the CRM is its system of record.
package domain

import "strings"

// Status is the CRM lead status.
type Status string

const (
	// StatusOpen is a fresh, unbilled lead.
	StatusOpen Status = "OPEN"
	// StatusInProgress is the secondary unpaid bucket swept by the same run.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusConnected marks a lead as matched, billed, and delivered.
	StatusConnected Status = "CONNECTED"
)

// BillableStatuses are the buckets the reconciliation job sweeps, in order.
var BillableStatuses = []Status{StatusOpen, StatusInProgress}

// AllStatuses lists every status a lead can carry.
var AllStatuses = []Status{StatusOpen, StatusInProgress, StatusConnected}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusConnected:
		return true
	}
	return false
}

// Lead is a CRM contact record projected onto the fixed property set the
// application reads and writes.
type Lead struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	City      string
	Zip       string
	Status    Status
	Revenue   string
}

// Name returns the lead's display name.
func (l Lead) Name() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// NormalizeZip reduces a ZIP string to its 5-digit prefix. Coverage sets and
// matching both operate on this form only.
func NormalizeZip(zip string) string {
	trimmed := strings.TrimSpace(zip)
	if len(trimmed) > 5 {
		return trimmed[:5]
	}
	return trimmed
}
