// Package cep looks up addresses by postal code (ViaCEP response shape).
// A lookup failure is scoped to the postal-code field: callers must leave
// every other address field untouched.
package cep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/brenoghost0/dermosul-checkout/internal/validate"
)

var (
	ErrNotFound   = errors.New("CEP não encontrado.")
	ErrLookup     = errors.New("Falha ao buscar CEP.")
	ErrInvalidCEP = errors.New("CEP inválido.")
)

// Address is the lookup result that overwrites the address group.
type Address struct {
	Street   string `json:"address"`
	District string `json:"district"`
	City     string `json:"city"`
	State    string `json:"state"`
}

type viaCEPResponse struct {
	Logradouro string `json:"logradouro"`
	Bairro     string `json:"bairro"`
	Localidade string `json:"localidade"`
	UF         string `json:"uf"`
	Erro       bool   `json:"erro"`
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

// Lookup resolves a complete (8-digit) postal code. Anything shorter is
// rejected before the network is touched.
func (c *Client) Lookup(ctx context.Context, postalCode string) (*Address, error) {
	digits := validate.Digits(postalCode)
	if len(digits) != 8 {
		return nil, ErrInvalidCEP
	}

	url := fmt.Sprintf("%s/%s/json/", c.baseURL, digits)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookup, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.WithError(err).WithField("cep", digits).Warn("address lookup failed")
		return nil, ErrLookup
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrLookup
	}

	var body viaCEPResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, ErrLookup
	}
	if body.Erro {
		return nil, ErrNotFound
	}

	return &Address{
		Street:   body.Logradouro,
		District: body.Bairro,
		City:     body.Localidade,
		State:    body.UF,
	}, nil
}
