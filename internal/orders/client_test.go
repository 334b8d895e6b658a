package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brenoghost0/dermosul-checkout/internal/domain"
)

func draftFixture() *domain.OrderDraft {
	return &domain.OrderDraft{
		ExternalReference: "kit-capilar-1756400000000",
		ProductID:         "prod_1",
		ProductTitle:      "Kit Capilar",
		Qty:               2,
		ProductPrice:      9500,
		GatewayPaymentID:  "pay_abc123",
		Status:            domain.OrderStatusAwaitingPayment,
		PaymentMethod:     domain.PaymentMethodPix,
	}
}

func TestSubmitCreated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got domain.OrderDraft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "kit-capilar-1756400000000", got.ExternalReference)
		assert.Equal(t, domain.OrderStatusAwaitingPayment, got.Status)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(domain.OrderRecord{
			ID:        "ord_123",
			Status:    domain.OrderStatusAwaitingPayment,
			CreatedAt: time.Now().UTC(),
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	rec, err := c.Submit(context.Background(), draftFixture())
	require.NoError(t, err)
	assert.Equal(t, "ord_123", rec.ID)
}

func TestSubmitConflictFetchesExisting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders":
			w.WriteHeader(http.StatusConflict)
		case "/orders/by-reference/kit-capilar-1756400000000":
			json.NewEncoder(w).Encode(domain.OrderRecord{ID: "ord_existing", Status: domain.OrderStatusPaid})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	rec, err := c.Submit(context.Background(), draftFixture())
	require.NoError(t, err)
	assert.Equal(t, "ord_existing", rec.ID)
	assert.Equal(t, domain.OrderStatusPaid, rec.Status)
}

func TestSubmitValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ValidationError{
			Message: "Dados do pedido inválidos.",
			Fields:  map[string]string{"cpf": "CPF inválido."},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Submit(context.Background(), draftFixture())

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "CPF inválido.", vErr.Fields["cpf"])
}

func TestSubmitServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Submit(context.Background(), draftFixture())
	require.Error(t, err)

	var vErr *ValidationError
	assert.False(t, errors.As(err, &vErr))
}

func TestByReferenceNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.ByReference(context.Background(), "missing-ref")
	assert.ErrorIs(t, err, ErrNotFound)
}
