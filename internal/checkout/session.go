package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/brenoghost0/dermosul-checkout/internal/domain"
	"github.com/brenoghost0/dermosul-checkout/internal/gateway"
	"github.com/brenoghost0/dermosul-checkout/internal/pricing"
	"github.com/brenoghost0/dermosul-checkout/internal/reconcile"
	"github.com/brenoghost0/dermosul-checkout/internal/validate"
)

// Step is where the customer is in the checkout flow.
type Step string

const (
	StepCollectingInfo   Step = "collecting_info"
	StepSelectingPayment Step = "selecting_payment"
	StepPaying           Step = "paying"
	StepSucceeded        Step = "succeeded"
	StepFailed           Step = "failed"
)

// Session drives one customer through the checkout flow. A failed payment
// never loses the data already entered: the session returns to payment
// selection with customer, shipping and cart intact.
type Session struct {
	svc *Service

	mu       sync.Mutex
	step     Step
	customer domain.CustomerDraft
	shipping domain.ShippingDraft
	cart     domain.CartSelection

	// attempt survives a transient failure so the retry reuses the same
	// externalReference. A gateway rejection discards it: the next try is
	// a new attempt with a fresh reference.
	attempt *domain.PaymentAttempt
	failure string

	pix     *domain.PixCharge
	summary *domain.OrderSummary
}

func NewSession(svc *Service, cart domain.CartSelection) *Session {
	cart.Quantity = pricing.ClampQuantity(cart.Quantity)
	return &Session{
		svc:  svc,
		step: StepCollectingInfo,
		cart: cart,
	}
}

func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// FailureMessage is the user-facing message of the last payment failure,
// empty when none.
func (s *Session) FailureMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

func (s *Session) Summary() *domain.OrderSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

func (s *Session) PixCharge() *domain.PixCharge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pix
}

// SetQuantity clamps and reprices. Allowed any time before payment starts.
func (s *Session) SetQuantity(qty int) pricing.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Quantity = pricing.ClampQuantity(qty)
	return s.svc.Quote(s.cart)
}

func (s *Session) Quote() pricing.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.svc.Quote(s.cart)
}

// SubmitInfo validates the contact and address forms. Field errors come
// back keyed by field name; with none, the session advances to payment
// selection.
func (s *Session) SubmitInfo(customer domain.CustomerDraft, shipping domain.ShippingDraft) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != StepCollectingInfo && s.step != StepSelectingPayment {
		return nil, IllegalStepError
	}

	fieldErrs := validate.Customer(customer)
	for field, msg := range validate.Shipping(shipping) {
		fieldErrs[field] = msg
	}
	if len(fieldErrs) > 0 {
		return fieldErrs, nil
	}

	s.customer = customer
	s.shipping = shipping
	s.step = StepSelectingPayment
	return nil, nil
}

// PayPix starts a Pix payment. On success the session stays in paying
// until CheckStatus settles it.
func (s *Session) PayPix(ctx context.Context) (*domain.PixCharge, error) {
	s.mu.Lock()
	if s.step != StepSelectingPayment {
		s.mu.Unlock()
		return nil, IllegalStepError
	}
	in := s.beginAttempt(domain.PaymentMethodPix)
	s.mu.Unlock()

	charge, err := s.svc.StartPix(ctx, in)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.step == StepPaying {
			s.recordFailure(err)
		}
		return nil, err
	}
	if s.attempt == nil || s.step != StepPaying {
		// Cancelled while the charge was in flight; the session already
		// moved on, leave it where the cancel put it.
		return charge, nil
	}
	s.attempt.GatewayPaymentID = charge.GatewayPaymentID
	s.attempt.Status = domain.AttemptStatusAwaitingConfirmation
	s.pix = charge
	return charge, nil
}

// PayCard charges the card. The card details are cleared before this
// returns, approved or declined.
func (s *Session) PayCard(ctx context.Context, card *domain.CardDetails, installments int) (*domain.OrderSummary, error) {
	s.mu.Lock()
	if s.step != StepSelectingPayment {
		s.mu.Unlock()
		card.Clear()
		return nil, IllegalStepError
	}
	in := s.beginAttempt(domain.PaymentMethodCard)
	s.mu.Unlock()

	summary, err := s.svc.PayCard(ctx, in, card, installments)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.step == StepPaying {
			s.recordFailure(err)
		}
		return nil, err
	}
	// The charge went through even if a cancel raced it: succeeded wins.
	if s.attempt != nil {
		s.attempt.Status = domain.AttemptStatusConfirmed
	}
	s.summary = summary
	s.step = StepSucceeded
	return summary, nil
}

// CheckStatus settles a pending Pix attempt against the service. Drives
// the session to succeeded or failed when the attempt reaches a terminal
// state.
func (s *Session) CheckStatus(ctx context.Context) (*StatusResult, error) {
	s.mu.Lock()
	if s.step != StepPaying || s.attempt == nil {
		s.mu.Unlock()
		return nil, IllegalStepError
	}
	ref := s.attempt.ExternalReference
	s.mu.Unlock()

	res, err := s.svc.CheckStatus(ctx, ref)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt == nil || s.step != StepPaying {
		// A concurrent cancel emptied the attempt; the service arbitrated
		// who won, so this stale result must not move the session.
		return res, nil
	}
	switch res.State {
	case reconcile.StateConfirmed:
		s.attempt.Status = domain.AttemptStatusConfirmed
		s.summary = res.Summary
		s.step = StepSucceeded
	case reconcile.StateCancelled, reconcile.StateGaveUp:
		s.failure = "Não foi possível confirmar o pagamento."
		s.attempt = nil
		s.pix = nil
		s.step = StepFailed
	}
	return res, nil
}

// Cancel abandons the pending attempt and returns to payment selection
// with everything entered so far intact.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if s.step != StepPaying || s.attempt == nil {
		s.mu.Unlock()
		return IllegalStepError
	}
	ref := s.attempt.ExternalReference
	s.mu.Unlock()

	if err := s.svc.Cancel(ctx, ref); err != nil && !errors.Is(err, ErrUnknownReference) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt = nil
	s.pix = nil
	s.failure = ""
	s.step = StepSelectingPayment
	return nil
}

// Retry leaves the failed state and goes back to payment selection.
func (s *Session) Retry() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepFailed {
		return IllegalStepError
	}
	s.step = StepSelectingPayment
	return nil
}

// beginAttempt mints the externalReference exactly once per attempt. A
// transient failure keeps the attempt so the retry reuses the reference;
// the charge already created at the gateway stays reachable.
func (s *Session) beginAttempt(method domain.PaymentMethod) CheckoutInput {
	if s.attempt == nil || s.attempt.Method != method {
		s.attempt = &domain.PaymentAttempt{
			ExternalReference: MintReference(s.cart.ProductSlug, s.svc.now()),
			Method:            method,
			Status:            domain.AttemptStatusInitiated,
		}
	}
	s.step = StepPaying
	return CheckoutInput{
		Customer:          s.customer,
		Shipping:          s.shipping,
		Cart:              s.cart,
		ExternalReference: s.attempt.ExternalReference,
	}
}

// recordFailure moves to failed. A gateway rejection is definitive: the
// attempt is discarded and the next try mints a fresh reference. Anything
// else is transient and the attempt survives for a retry.
func (s *Session) recordFailure(err error) {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		s.failure = gwErr.Message
		s.attempt = nil
	} else {
		s.failure = "Falha no processamento do pagamento."
	}
	s.pix = nil
	s.step = StepFailed
}
