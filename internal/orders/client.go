// Package orders is the HTTP client for the order store. Submission is
// safely retriable per externalReference: the backend treats a duplicate
// creation as an upsert, and this client treats a conflict as success.
package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/brenoghost0/dermosul-checkout/internal/domain"
)

var ErrNotFound = errors.New("order not found")

// ValidationError carries structured field errors the backend returned so
// the form layer can map them back onto fields.
type ValidationError struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Submit creates the order. A 409 means a submission for the same
// externalReference already landed (eager submit vs. reconciliation race,
// or a network retry); the existing record is fetched and returned as
// success.
func (c *Client) Submit(ctx context.Context, draft *domain.OrderDraft) (*domain.OrderRecord, error) {
	payload, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("marshal order draft: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("order submission failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read order response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var rec domain.OrderRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("decode order record: %w", err)
		}
		return &rec, nil

	case resp.StatusCode == http.StatusConflict:
		log.WithField("external_reference", draft.ExternalReference).
			Info("order already exists, treating conflict as success")
		return c.ByReference(ctx, draft.ExternalReference)

	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		var vErr ValidationError
		if err := json.Unmarshal(body, &vErr); err != nil || vErr.Message == "" {
			vErr.Message = "Dados do pedido inválidos."
		}
		return nil, &vErr

	default:
		return nil, fmt.Errorf("order store returned %d", resp.StatusCode)
	}
}

// ByReference looks the order up by its externalReference.
func (c *Client) ByReference(ctx context.Context, externalReference string) (*domain.OrderRecord, error) {
	u := c.baseURL + "/orders/by-reference/" + url.PathEscape(externalReference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build order lookup: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("order lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order store returned %d", resp.StatusCode)
	}

	var rec domain.OrderRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode order record: %w", err)
	}
	return &rec, nil
}
