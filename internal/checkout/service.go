package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/brenoghost0/dermosul-checkout/internal/domain"
	"github.com/brenoghost0/dermosul-checkout/internal/gateway"
	"github.com/brenoghost0/dermosul-checkout/internal/pricing"
	"github.com/brenoghost0/dermosul-checkout/internal/publisher"
	"github.com/brenoghost0/dermosul-checkout/internal/reconcile"
	"github.com/brenoghost0/dermosul-checkout/internal/repository"
	"github.com/brenoghost0/dermosul-checkout/internal/validate"
)

type PaymentGateway interface {
	CreatePixCharge(ctx context.Context, amount int64, customer gateway.Customer, externalReference string) (*domain.PixCharge, error)
	ChargeCard(ctx context.Context, amount int64, customer gateway.Customer, externalReference string, card domain.CardDetails, installments int) (string, error)
	StatusByReference(ctx context.Context, externalReference, paymentID string) (gateway.Status, error)
}

type OrderStore interface {
	Submit(ctx context.Context, draft *domain.OrderDraft) (*domain.OrderRecord, error)
	ByReference(ctx context.Context, externalReference string) (*domain.OrderRecord, error)
}

type AttemptStore interface {
	CreateAttempt(ctx context.Context, attempt *repository.CheckoutAttempt) error
	GetAttemptByReference(ctx context.Context, externalReference string) (*repository.CheckoutAttempt, error)
	UpdateAttemptStatus(ctx context.Context, externalReference string, status domain.AttemptStatus) error
}

type ChargeCache interface {
	Get(ctx context.Context, externalReference string) (*domain.PixCharge, error)
	Set(ctx context.Context, externalReference string, charge *domain.PixCharge) error
	Delete(ctx context.Context, externalReference string) error
}

type PaidPublisher interface {
	PublishPaid(ctx context.Context, event publisher.PaidEvent) error
}

// CheckoutInput carries everything a payment initiation needs. The card,
// when present, is cleared before the call returns.
type CheckoutInput struct {
	Customer domain.CustomerDraft
	Shipping domain.ShippingDraft
	Cart     domain.CartSelection

	// ExternalReference must be minted once per attempt and reused on a
	// transient retry of the same attempt.
	ExternalReference string
}

// StatusResult is what a status check concluded for one attempt.
type StatusResult struct {
	State   reconcile.State      `json:"state"`
	Pix     *domain.PixCharge    `json:"pix,omitempty"`
	Summary *domain.OrderSummary `json:"summary,omitempty"`
}

type Service struct {
	repo      AttemptStore
	gateway   PaymentGateway
	orders    OrderStore
	cache     ChargeCache
	publisher PaidPublisher

	group     singleflight.Group
	pollersMu sync.Mutex
	pollers   map[string]*reconcile.Poller

	now func() time.Time
}

func NewService(repo AttemptStore, gw PaymentGateway, orders OrderStore, cache ChargeCache, pub PaidPublisher) *Service {
	return &Service{
		repo:      repo,
		gateway:   gw,
		orders:    orders,
		cache:     cache,
		publisher: pub,
		pollers:   make(map[string]*reconcile.Poller),
		now:       time.Now,
	}
}

// Quote prices the selection. Quantity is clamped, never rejected.
func (s *Service) Quote(cart domain.CartSelection) pricing.Quote {
	return pricing.Compute(cart.UnitPrice, cart.Quantity, pricing.DefaultTiers)
}

// StartPix creates the Pix charge, persists the attempt and eagerly
// submits the order as awaiting payment. The eager submit is best effort:
// a failure there is logged and left to reconciliation, because the
// customer already holds a payable QR code.
func (s *Service) StartPix(ctx context.Context, in CheckoutInput) (*domain.PixCharge, error) {
	quote := s.Quote(in.Cart)

	charge, err := s.gateway.CreatePixCharge(ctx, quote.Total, GatewayCustomer(in.Customer), in.ExternalReference)
	if err != nil {
		return nil, err
	}

	attempt := domain.PaymentAttempt{
		ExternalReference: in.ExternalReference,
		Method:            domain.PaymentMethodPix,
		GatewayPaymentID:  charge.GatewayPaymentID,
		Status:            domain.AttemptStatusAwaitingConfirmation,
	}
	draft := BuildOrderDraft(in.Customer, in.Shipping, in.Cart, quote, attempt, domain.OrderStatusAwaitingPayment)
	if err := validate.OrderDraft(draft); err != nil {
		return nil, err
	}

	if err := s.persistAttempt(ctx, in, quote, attempt, draft); err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, in.ExternalReference, charge); err != nil {
		log.WithError(err).WithField("external_reference", in.ExternalReference).
			Warn("failed to cache pix charge")
	}

	if _, err := s.orders.Submit(ctx, draft); err != nil {
		log.WithError(err).WithField("external_reference", in.ExternalReference).
			Warn("eager order submit failed, reconciliation will retry")
	}

	return charge, nil
}

// PayCard charges the card and, on approval, lands the paid order. The
// card details are cleared as soon as the gateway call resolves, approved
// or not.
func (s *Service) PayCard(ctx context.Context, in CheckoutInput, card *domain.CardDetails, installments int) (*domain.OrderSummary, error) {
	quote := s.Quote(in.Cart)

	paymentID, err := s.gateway.ChargeCard(ctx, quote.Total, GatewayCustomer(in.Customer), in.ExternalReference, *card, installments)
	card.Clear()
	if err != nil {
		return nil, err
	}

	attempt := domain.PaymentAttempt{
		ExternalReference: in.ExternalReference,
		Method:            domain.PaymentMethodCard,
		GatewayPaymentID:  paymentID,
		Status:            domain.AttemptStatusInitiated,
	}
	draft := BuildOrderDraft(in.Customer, in.Shipping, in.Cart, quote, attempt, domain.OrderStatusPaid)
	if err := validate.OrderDraft(draft); err != nil {
		return nil, err
	}

	if err := s.persistAttempt(ctx, in, quote, attempt, draft); err != nil {
		return nil, err
	}

	rec, err := s.orders.Submit(ctx, draft)
	if err != nil {
		// The charge went through; leave the attempt open so a status
		// check can land the order later.
		log.WithError(err).WithField("external_reference", in.ExternalReference).
			Error("card charged but order submit failed")
		return nil, fmt.Errorf("submit paid order: %w", err)
	}

	if err := s.repo.UpdateAttemptStatus(ctx, in.ExternalReference, domain.AttemptStatusConfirmed); err != nil {
		log.WithError(err).WithField("external_reference", in.ExternalReference).
			Warn("failed to mark attempt confirmed")
	}
	s.publishPaid(ctx, in.ExternalReference, in.Cart.ProductSlug, quote, domain.PaymentMethodCard, rec)

	summary := summaryFromParts(in.Cart, quote, domain.PaymentMethodCard, installments, rec)
	return summary, nil
}

// CheckStatus runs one reconciliation pass for the reference. Concurrent
// checks for the same reference collapse into a single pass.
func (s *Service) CheckStatus(ctx context.Context, externalReference string) (*StatusResult, error) {
	v, err, _ := s.group.Do(externalReference, func() (interface{}, error) {
		return s.checkStatus(ctx, externalReference)
	})
	if err != nil {
		return nil, err
	}
	return v.(*StatusResult), nil
}

func (s *Service) checkStatus(ctx context.Context, externalReference string) (*StatusResult, error) {
	attempt, err := s.repo.GetAttemptByReference(ctx, externalReference)
	if errors.Is(err, repository.ErrReferenceNotFound) {
		return nil, ErrUnknownReference
	}
	if err != nil {
		return nil, fmt.Errorf("load attempt: %w", err)
	}

	switch attempt.Status {
	case domain.AttemptStatusConfirmed:
		return s.confirmedResult(ctx, attempt)
	case domain.AttemptStatusCancelled:
		return &StatusResult{State: reconcile.StateCancelled}, nil
	case domain.AttemptStatusFailed:
		return &StatusResult{State: reconcile.StateGaveUp}, nil
	}

	res := s.pollerFor(attempt).Pass(ctx)
	switch res.State {
	case reconcile.StateConfirmed:
		if err := s.repo.UpdateAttemptStatus(ctx, externalReference, domain.AttemptStatusConfirmed); err != nil {
			log.WithError(err).WithField("external_reference", externalReference).
				Warn("failed to mark attempt confirmed")
		}
		s.dropPoller(externalReference)
		if err := s.cache.Delete(ctx, externalReference); err != nil {
			log.WithError(err).WithField("external_reference", externalReference).
				Warn("failed to evict pix charge from cache")
		}
		summary := summaryFromAttempt(attempt, res.Order)
		s.publishPaidFromAttempt(ctx, attempt, res.Order)
		return &StatusResult{State: res.State, Summary: summary}, nil

	case reconcile.StateGaveUp:
		if err := s.repo.UpdateAttemptStatus(ctx, externalReference, domain.AttemptStatusFailed); err != nil {
			log.WithError(err).WithField("external_reference", externalReference).
				Warn("failed to mark attempt failed")
		}
		s.dropPoller(externalReference)
		return &StatusResult{State: res.State}, nil

	default:
		result := &StatusResult{State: res.State}
		if attempt.PaymentMethod == domain.PaymentMethodPix {
			if charge, cacheErr := s.cache.Get(ctx, externalReference); cacheErr == nil {
				result.Pix = charge
			}
		}
		return result, nil
	}
}

// Cancel abandons a pending attempt. A settled attempt cannot be
// cancelled.
func (s *Service) Cancel(ctx context.Context, externalReference string) error {
	// Settle with the poller first. A pass in flight finishes before
	// Cancel returns, and if it confirmed the payment the cancellation
	// loses: a confirmed charge is never rolled back. A confirming status
	// check writes the attempt before dropping its poller, so the load
	// below always sees the settled status.
	s.pollersMu.Lock()
	p, ok := s.pollers[externalReference]
	s.pollersMu.Unlock()
	if ok {
		if res := p.Cancel(); res.State == reconcile.StateConfirmed {
			return ErrAttemptTerminal
		}
		s.dropPoller(externalReference)
	}

	attempt, err := s.repo.GetAttemptByReference(ctx, externalReference)
	if errors.Is(err, repository.ErrReferenceNotFound) {
		return ErrUnknownReference
	}
	if err != nil {
		return fmt.Errorf("load attempt: %w", err)
	}

	if !domain.CanTransitionTo(attempt.Status, domain.AttemptStatusCancelled) {
		return ErrAttemptTerminal
	}

	if err := s.repo.UpdateAttemptStatus(ctx, externalReference, domain.AttemptStatusCancelled); err != nil {
		return fmt.Errorf("cancel attempt: %w", err)
	}
	if err := s.cache.Delete(ctx, externalReference); err != nil {
		log.WithError(err).WithField("external_reference", externalReference).
			Warn("failed to evict pix charge from cache")
	}

	log.WithField("external_reference", externalReference).Info("checkout attempt cancelled")
	return nil
}

func (s *Service) persistAttempt(ctx context.Context, in CheckoutInput, quote pricing.Quote, attempt domain.PaymentAttempt, draft *domain.OrderDraft) error {
	// A transient retry reuses the reference; the row from the first try
	// already covers it.
	if existing, err := s.repo.GetAttemptByReference(ctx, in.ExternalReference); err == nil && existing != nil {
		return nil
	}

	draftJSON, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal order draft: %w", err)
	}

	err = s.repo.CreateAttempt(ctx, &repository.CheckoutAttempt{
		ID:                uuid.New().String(),
		ExternalReference: in.ExternalReference,
		ProductSlug:       in.Cart.ProductSlug,
		PaymentMethod:     attempt.Method,
		GatewayPaymentID:  attempt.GatewayPaymentID,
		AmountTotal:       quote.Total,
		Quantity:          quote.Quantity,
		Status:            attempt.Status,
		OrderDraft:        draftJSON,
	})
	if err != nil {
		return fmt.Errorf("persist attempt: %w", err)
	}
	return nil
}

func (s *Service) pollerFor(attempt *repository.CheckoutAttempt) *reconcile.Poller {
	s.pollersMu.Lock()
	defer s.pollersMu.Unlock()

	if p, ok := s.pollers[attempt.ExternalReference]; ok {
		return p
	}

	p := reconcile.NewPoller(
		attempt.ExternalReference,
		attempt.GatewayPaymentID,
		s.orders,
		s.gateway,
		s.orders,
		func() *domain.OrderDraft {
			var draft domain.OrderDraft
			if err := json.Unmarshal(attempt.OrderDraft, &draft); err != nil {
				log.WithError(err).WithField("external_reference", attempt.ExternalReference).
					Error("stored order draft is corrupt")
			}
			return &draft
		},
	)
	s.pollers[attempt.ExternalReference] = p
	return p
}

func (s *Service) dropPoller(externalReference string) {
	s.pollersMu.Lock()
	delete(s.pollers, externalReference)
	s.pollersMu.Unlock()
}

func (s *Service) publishPaid(ctx context.Context, ref, slug string, quote pricing.Quote, method domain.PaymentMethod, rec *domain.OrderRecord) {
	event := publisher.PaidEvent{
		ExternalReference: ref,
		ProductSlug:       slug,
		TotalAmount:       quote.Total,
		Quantity:          quote.Quantity,
		PaymentMethod:     string(method),
		PaidAt:            s.now().UTC(),
	}
	if rec != nil {
		event.OrderID = rec.ID
	}
	if err := s.publisher.PublishPaid(ctx, event); err != nil {
		log.WithError(err).WithField("external_reference", ref).
			Warn("failed to publish checkout-paid event")
	}
}

func (s *Service) publishPaidFromAttempt(ctx context.Context, attempt *repository.CheckoutAttempt, rec *domain.OrderRecord) {
	event := publisher.PaidEvent{
		ExternalReference: attempt.ExternalReference,
		ProductSlug:       attempt.ProductSlug,
		TotalAmount:       attempt.AmountTotal,
		Quantity:          attempt.Quantity,
		PaymentMethod:     string(attempt.PaymentMethod),
		PaidAt:            s.now().UTC(),
	}
	if rec != nil {
		event.OrderID = rec.ID
	}
	if err := s.publisher.PublishPaid(ctx, event); err != nil {
		log.WithError(err).WithField("external_reference", attempt.ExternalReference).
			Warn("failed to publish checkout-paid event")
	}
}

func (s *Service) confirmedResult(ctx context.Context, attempt *repository.CheckoutAttempt) (*StatusResult, error) {
	rec, err := s.orders.ByReference(ctx, attempt.ExternalReference)
	if err != nil {
		log.WithError(err).WithField("external_reference", attempt.ExternalReference).
			Debug("order lookup failed for confirmed attempt")
		rec = nil
	}
	return &StatusResult{
		State:   reconcile.StateConfirmed,
		Summary: summaryFromAttempt(attempt, rec),
	}, nil
}

func summaryFromAttempt(attempt *repository.CheckoutAttempt, rec *domain.OrderRecord) *domain.OrderSummary {
	var draft domain.OrderDraft
	if err := json.Unmarshal(attempt.OrderDraft, &draft); err != nil {
		log.WithError(err).WithField("external_reference", attempt.ExternalReference).
			Error("stored order draft is corrupt")
	}

	summary := &domain.OrderSummary{
		Slug:          attempt.ProductSlug,
		ProductTitle:  draft.ProductTitle,
		TotalAmount:   attempt.AmountTotal,
		Installments:  1,
		Quantity:      attempt.Quantity,
		PaymentMethod: attempt.PaymentMethod,
	}
	if rec != nil {
		summary.OrderID = rec.ID
		summary.CreatedAt = rec.CreatedAt
	}
	return summary
}

func summaryFromParts(cart domain.CartSelection, quote pricing.Quote, method domain.PaymentMethod, installments int, rec *domain.OrderRecord) *domain.OrderSummary {
	if installments < 1 {
		installments = 1
	}
	summary := &domain.OrderSummary{
		Slug:          cart.ProductSlug,
		ProductImage:  cart.ProductImage,
		ProductTitle:  cart.ProductTitle,
		TotalAmount:   quote.Total,
		Installments:  installments,
		Quantity:      quote.Quantity,
		PaymentMethod: method,
	}
	if rec != nil {
		summary.OrderID = rec.ID
		summary.CreatedAt = rec.CreatedAt
	}
	return summary
}
