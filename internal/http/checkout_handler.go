package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/brenoghost0/dermosul-checkout/internal/cep"
	"github.com/brenoghost0/dermosul-checkout/internal/checkout"
	"github.com/brenoghost0/dermosul-checkout/internal/domain"
	"github.com/brenoghost0/dermosul-checkout/internal/gateway"
	"github.com/brenoghost0/dermosul-checkout/internal/orders"
	"github.com/brenoghost0/dermosul-checkout/internal/pricing"
	"github.com/brenoghost0/dermosul-checkout/internal/validate"
)

type CheckoutService interface {
	Quote(cart domain.CartSelection) pricing.Quote
	StartPix(ctx context.Context, in checkout.CheckoutInput) (*domain.PixCharge, error)
	PayCard(ctx context.Context, in checkout.CheckoutInput, card *domain.CardDetails, installments int) (*domain.OrderSummary, error)
	CheckStatus(ctx context.Context, externalReference string) (*checkout.StatusResult, error)
	Cancel(ctx context.Context, externalReference string) error
}

type CheckoutHandler struct {
	svc     CheckoutService
	timeout time.Duration
}

func NewCheckoutHandler(svc CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, timeout: timeout}
}

type checkoutRequest struct {
	Customer domain.CustomerDraft `json:"customer"`
	Shipping domain.ShippingDraft `json:"shipping"`
	Cart     domain.CartSelection `json:"cart"`

	// ExternalReference lets a client retry the same attempt after a
	// transient failure; omitted, a fresh one is minted.
	ExternalReference string `json:"externalReference,omitempty"`
}

type cardCheckoutRequest struct {
	checkoutRequest
	Card         domain.CardDetails `json:"card"`
	Installments int                `json:"installments"`
}

type pixResponse struct {
	ExternalReference string            `json:"externalReference"`
	Pix               *domain.PixCharge `json:"pix"`
}

type cardResponse struct {
	ExternalReference string               `json:"externalReference"`
	Summary           *domain.OrderSummary `json:"summary"`
}

// POST /api/v1/checkout/quote
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cart domain.CartSelection `json:"cart"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "corpo da requisição inválido")
		return
	}
	respondJSON(w, http.StatusOK, h.svc.Quote(req.Cart))
}

// POST /api/v1/checkout/pix
func (h *CheckoutHandler) StartPix(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "corpo da requisição inválido")
		return
	}
	if fields := validateForms(req); len(fields) > 0 {
		respondFieldErrors(w, fields)
		return
	}

	in := h.toInput(req)
	charge, err := h.svc.StartPix(ctx, in)
	if err != nil {
		handleCheckoutError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, pixResponse{
		ExternalReference: in.ExternalReference,
		Pix:               charge,
	})
}

// POST /api/v1/checkout/card
func (h *CheckoutHandler) PayCard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req cardCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "corpo da requisição inválido")
		return
	}
	defer req.Card.Clear()

	if fields := validateForms(req.checkoutRequest); len(fields) > 0 {
		respondFieldErrors(w, fields)
		return
	}
	if msg := validate.CardExpiry(req.Card.ExpiryMonth+"/"+req.Card.ExpiryYear, time.Now()); msg != "" {
		respondFieldErrors(w, map[string]string{"cardExpiry": msg})
		return
	}

	in := h.toInput(req.checkoutRequest)
	summary, err := h.svc.PayCard(ctx, in, &req.Card, req.Installments)
	if err != nil {
		handleCheckoutError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, cardResponse{
		ExternalReference: in.ExternalReference,
		Summary:           summary,
	})
}

// GET /api/v1/checkout/{reference}/status
func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	reference := chi.URLParam(r, "reference")
	if reference == "" {
		respondError(w, http.StatusBadRequest, "missing_reference", "externalReference é obrigatório")
		return
	}

	res, err := h.svc.CheckStatus(ctx, reference)
	if err != nil {
		handleCheckoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// DELETE /api/v1/checkout/{reference}
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	reference := chi.URLParam(r, "reference")
	if reference == "" {
		respondError(w, http.StatusBadRequest, "missing_reference", "externalReference é obrigatório")
		return
	}

	if err := h.svc.Cancel(ctx, reference); err != nil {
		handleCheckoutError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutHandler) toInput(req checkoutRequest) checkout.CheckoutInput {
	ref := req.ExternalReference
	if ref == "" {
		ref = checkout.MintReference(req.Cart.ProductSlug, time.Now())
	}
	return checkout.CheckoutInput{
		Customer:          req.Customer,
		Shipping:          req.Shipping,
		Cart:              req.Cart,
		ExternalReference: ref,
	}
}

func validateForms(req checkoutRequest) map[string]string {
	fields := validate.Customer(req.Customer)
	for field, msg := range validate.Shipping(req.Shipping) {
		fields[field] = msg
	}
	return fields
}

func handleCheckoutError(w http.ResponseWriter, err error) {
	var gwErr *gateway.Error
	var vErr *orders.ValidationError

	switch {
	case errors.Is(err, checkout.ErrUnknownReference):
		respondError(w, http.StatusNotFound, "unknown_reference", "referência não encontrada")
	case errors.Is(err, checkout.ErrAttemptTerminal):
		respondError(w, http.StatusConflict, "attempt_settled", "pagamento já finalizado")
	case errors.Is(err, gateway.ErrCircuitOpen):
		respondError(w, http.StatusServiceUnavailable, "gateway_unavailable", "Falha no processamento do pagamento.")
	case errors.As(err, &gwErr):
		respondError(w, http.StatusUnprocessableEntity, "payment_rejected", gwErr.Message)
	case errors.As(err, &vErr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  vErr.Message,
			Code:   "validation_failed",
			Fields: vErr.Fields,
		})
	default:
		log.WithError(err).Error("checkout request failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "Falha no processamento do pagamento.")
	}
}

// AddressHandler resolves a postal code to a street address.
type AddressHandler struct {
	lookup  AddressLookup
	timeout time.Duration
}

type AddressLookup interface {
	Lookup(ctx context.Context, postalCode string) (*cep.Address, error)
}

func NewAddressHandler(lookup AddressLookup, timeout time.Duration) *AddressHandler {
	return &AddressHandler{lookup: lookup, timeout: timeout}
}

// GET /api/v1/address/{cep}
func (h *AddressHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	code := chi.URLParam(r, "cep")
	addr, err := h.lookup.Lookup(ctx, code)
	switch {
	case errors.Is(err, cep.ErrInvalidCEP):
		respondError(w, http.StatusBadRequest, "invalid_cep", cep.ErrInvalidCEP.Error())
	case errors.Is(err, cep.ErrNotFound):
		respondError(w, http.StatusNotFound, "cep_not_found", cep.ErrNotFound.Error())
	case err != nil:
		respondError(w, http.StatusBadGateway, "cep_lookup_failed", cep.ErrLookup.Error())
	default:
		respondJSON(w, http.StatusOK, addr)
	}
}
