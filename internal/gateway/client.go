// Package gateway is the HTTP client for the payment gateway. Charges are
// idempotent per externalReference on the gateway side: retrying a call
// with the same reference never double-charges.
package gateway

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
	"github.com/sony/gobreaker/v2"

	"github.com/brenoghost0/dermosul-checkout/internal/domain"
)

// ErrCircuitOpen wraps gobreaker's open-circuit errors so callers can treat
// a tripped gateway as a transient failure.
var ErrCircuitOpen = errors.New("payment gateway temporarily unavailable")

// Error is a gateway rejection (declined card, malformed Pix request). The
// message is the gateway's own when it sent one.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

const defaultFailureMessage = "Falha no processamento do pagamento."

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	CPF   string `json:"cpf"`
	Phone string `json:"phone"`
}

// Status is the gateway's settlement view for one externalReference.
type Status struct {
	Paid      bool   `json:"paid"`
	PaymentID string `json:"paymentId,omitempty"`
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		breaker: cb,
	}
}

type pixRequest struct {
	Amount            int64    `json:"amount"`
	Customer          Customer `json:"customer"`
	ExternalReference string   `json:"externalReference"`
}

type cardRequest struct {
	Amount            int64       `json:"amount"`
	Customer          Customer    `json:"customer"`
	ExternalReference string      `json:"externalReference"`
	CreditCard        cardOnWire  `json:"creditCard"`
	Installments      int         `json:"installments"`
}

type cardOnWire struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CVV         string `json:"cvv"`
}

type chargeEnvelope struct {
	Success          bool   `json:"success"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	QRCode           string `json:"qrCode"`
	CopyPaste        string `json:"copyPaste"`
	Message          string `json:"message"`
}

// CreatePixCharge asks the gateway for a Pix charge and returns the QR code
// image, the copy-paste string and the gateway payment id.
func (c *Client) CreatePixCharge(ctx context.Context, amount int64, customer Customer, externalReference string) (*domain.PixCharge, error) {
	body := pixRequest{Amount: amount, Customer: customer, ExternalReference: externalReference}
	env, err := c.charge(ctx, "/payments/pix", body)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"external_reference": externalReference,
		"gateway_payment_id": env.GatewayPaymentID,
		"amount":             amount,
	}).Info("pix charge created")

	return &domain.PixCharge{
		GatewayPaymentID: env.GatewayPaymentID,
		QRCodeImage:      env.QRCode,
		CopyPaste:        env.CopyPaste,
	}, nil
}

// ChargeCard authorizes a card charge. The charge carries the true
// installment count and the full total; per-installment amounts are a
// display concern only. The card details are the caller's to clear once
// this returns.
func (c *Client) ChargeCard(ctx context.Context, amount int64, customer Customer, externalReference string, card domain.CardDetails, installments int) (string, error) {
	body := cardRequest{
		Amount:            amount,
		Customer:          customer,
		ExternalReference: externalReference,
		CreditCard: cardOnWire{
			HolderName:  card.HolderName,
			Number:      card.Number,
			ExpiryMonth: card.ExpiryMonth,
			ExpiryYear:  card.ExpiryYear,
			CVV:         card.CVV,
		},
		Installments: installments,
	}
	env, err := c.charge(ctx, "/payments/credit-card", body)
	if err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"external_reference": externalReference,
		"gateway_payment_id": env.GatewayPaymentID,
		"installments":       installments,
	}).Info("card charge authorized")

	return env.GatewayPaymentID, nil
}

// StatusByReference asks the gateway whether the charge for this reference
// settled. paymentID narrows the lookup when known.
func (c *Client) StatusByReference(ctx context.Context, externalReference, paymentID string) (Status, error) {
	path := "/payments/status/by-reference/" + url.PathEscape(externalReference)
	if paymentID != "" {
		path += "?paymentId=" + url.QueryEscape(paymentID)
	}

	raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Status{}, err
	}

	var st Status
	if err := json.Unmarshal(raw, &st); err != nil {
		return Status{}, fmt.Errorf("decode gateway status: %w", err)
	}
	return st, nil
}

func (c *Client) charge(ctx context.Context, path string, body interface{}) (*chargeEnvelope, error) {
	raw, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}

	var env chargeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = defaultFailureMessage
		}
		return nil, &Error{Message: msg}
	}
	return &env, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("marshal gateway request: %w", err)
			}
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("build gateway request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("access_token", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("gateway request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read gateway response: %w", err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("gateway returned %d", resp.StatusCode)
		}
		return data, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return raw, err
}
