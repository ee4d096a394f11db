// Package crm implements the HubSpot contact API client. It is the system of
// record for leads; the application keeps no local lead rows.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/platform/config"
)

const defaultBaseURL = "https://api.hubapi.com"

// leadProperties is the fixed property set read for every contact.
var leadProperties = []string{
	"firstname", "lastname", "email", "phone",
	"address", "city", "zip", "hs_lead_status", "revenue",
}

// Client talks to the HubSpot contacts API with a single account key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates the canonical CRM client from application config.
func New(cfg config.CRMConfig) *Client {
	return NewWithKey(cfg.GetHubSpotAPIKey())
}

// NewWithKey creates a client for an arbitrary API key. The lead router uses
// this to mirror leads into a contractor's own CRM connection.
func NewWithKey(apiKey string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type searchRequest struct {
	FilterGroups []filterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties"`
	Limit        int           `json:"limit"`
	After        string        `json:"after,omitempty"`
}

type filterGroup struct {
	Filters []filter `json:"filters"`
}

type filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type contactRecord struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type searchResponse struct {
	Total   int             `json:"total"`
	Results []contactRecord `json:"results"`
	Paging  *struct {
		Next struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

// SearchByStatus returns every contact with the given lead status, following
// the search cursor until the result set is exhausted.
func (c *Client) SearchByStatus(ctx context.Context, status domain.Status) ([]domain.Lead, error) {
	var leads []domain.Lead
	after := ""

	for {
		page, next, err := c.searchPage(ctx, status, after)
		if err != nil {
			return nil, err
		}
		leads = append(leads, page...)
		if next == "" {
			return leads, nil
		}
		after = next
	}
}

func (c *Client) searchPage(ctx context.Context, status domain.Status, after string) ([]domain.Lead, string, error) {
	reqBody := searchRequest{
		FilterGroups: []filterGroup{{
			Filters: []filter{{
				PropertyName: "hs_lead_status",
				Operator:     "EQ",
				Value:        string(status),
			}},
		}},
		Properties: leadProperties,
		Limit:      100,
		After:      after,
	}

	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/contacts/search", reqBody, &resp); err != nil {
		return nil, "", err
	}

	leads := make([]domain.Lead, 0, len(resp.Results))
	for _, record := range resp.Results {
		leads = append(leads, leadFromRecord(record))
	}

	next := ""
	if resp.Paging != nil {
		next = resp.Paging.Next.After
	}
	return leads, next, nil
}

type createContactRequest struct {
	Properties map[string]string `json:"properties"`
}

// CreateContact creates a contact for the lead and returns its CRM id.
func (c *Client) CreateContact(ctx context.Context, lead domain.Lead) (string, error) {
	reqBody := createContactRequest{Properties: propertiesFromLead(lead)}

	var resp contactRecord
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/contacts", reqBody, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// TagCompany stamps the matched contractor's company name on the canonical
// contact so the CRM shows who bought the lead.
func (c *Client) TagCompany(ctx context.Context, leadID, company string) error {
	reqBody := createContactRequest{Properties: map[string]string{"company": company}}
	path := "/crm/v3/objects/contacts/" + leadID
	return c.do(ctx, http.MethodPatch, path, reqBody, nil)
}

type batchUpdateRequest struct {
	Inputs []batchUpdateInput `json:"inputs"`
}

type batchUpdateInput struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// UpdateStatuses sets the lead status on all given contacts in one batch call.
func (c *Client) UpdateStatuses(ctx context.Context, leadIDs []string, status domain.Status) error {
	if len(leadIDs) == 0 {
		return nil
	}

	inputs := make([]batchUpdateInput, 0, len(leadIDs))
	for _, id := range leadIDs {
		inputs = append(inputs, batchUpdateInput{
			ID:         id,
			Properties: map[string]string{"hs_lead_status": string(status)},
		})
	}

	return c.do(ctx, http.MethodPost, "/crm/v3/objects/contacts/batch/update", batchUpdateRequest{Inputs: inputs}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal crm payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("crm request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("crm returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func leadFromRecord(record contactRecord) domain.Lead {
	props := record.Properties
	return domain.Lead{
		ID:        record.ID,
		FirstName: props["firstname"],
		LastName:  props["lastname"],
		Email:     props["email"],
		Phone:     props["phone"],
		Address:   props["address"],
		City:      props["city"],
		Zip:       domain.NormalizeZip(props["zip"]),
		Status:    domain.Status(props["hs_lead_status"]),
		Revenue:   props["revenue"],
	}
}

func propertiesFromLead(lead domain.Lead) map[string]string {
	props := map[string]string{
		"firstname":      lead.FirstName,
		"lastname":       lead.LastName,
		"email":          lead.Email,
		"phone":          lead.Phone,
		"address":        lead.Address,
		"city":           lead.City,
		"zip":            lead.Zip,
		"hs_lead_status": string(lead.Status),
	}
	if lead.Revenue != "" {
		props["revenue"] = lead.Revenue
	}
	return props
}
