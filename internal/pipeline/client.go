// Package pipeline implements the GHL sales-pipeline client. The lead router
// creates a contact and an opportunity there for every routed lead.
package pipeline

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

// Client talks to the pipeline REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a pipeline client, or nil when no key is configured.
// A nil client skips pipeline routing without error.
func New(cfg config.PipelineConfig) *Client {
	if cfg.GetPipelineAPIKey() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetPipelineBaseURL(), "/"),
		apiKey:  cfg.GetPipelineAPIKey(),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type contactRequest struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	PostalCode string `json:"postalCode,omitempty"`
	LocationID string `json:"locationId,omitempty"`
}

type contactResponse struct {
	Contact struct {
		ID string `json:"id"`
	} `json:"contact"`
}

// CreateContact creates a pipeline contact for the lead. The location id
// comes from the matched contractor and defaults to empty when absent.
func (c *Client) CreateContact(ctx context.Context, lead domain.Lead, locationID string) (string, error) {
	if c == nil {
		return "", nil
	}

	reqBody := contactRequest{
		FirstName:  lead.FirstName,
		LastName:   lead.LastName,
		Email:      lead.Email,
		Phone:      lead.Phone,
		PostalCode: lead.Zip,
		LocationID: locationID,
	}

	var resp contactResponse
	if err := c.do(ctx, http.MethodPost, "/contacts/", reqBody, &resp); err != nil {
		return "", err
	}
	return resp.Contact.ID, nil
}

type opportunityRequest struct {
	Title     string `json:"title"`
	Status    string `json:"status"`
	ContactID string `json:"contactId"`
}

// CreateOpportunity opens an opportunity for the contact on the contractor's
// pipeline. An empty pipeline id is sent as-is and rejected upstream; the
// caller treats that as a routing drop.
func (c *Client) CreateOpportunity(ctx context.Context, pipelineID, contactID, title string) error {
	if c == nil {
		return nil
	}

	reqBody := opportunityRequest{
		Title:     title,
		Status:    "open",
		ContactID: contactID,
	}

	path := fmt.Sprintf("/pipelines/%s/opportunities", pipelineID)
	return c.do(ctx, http.MethodPost, path, reqBody, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal pipeline payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pipeline request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pipeline returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
