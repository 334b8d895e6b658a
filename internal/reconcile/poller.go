// Package reconcile settles a pending Pix payment against two sources of
// truth. The order store is checked first because a confirmed order is
// final; the gateway is only consulted when the store has nothing
// definitive. When the gateway reports paid but the store never heard
// about it (the eager submit was lost), the order is re-submitted here
// with paid status.
package reconcile

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/brenoghost0/dermosul-checkout/internal/domain"
	"github.com/brenoghost0/dermosul-checkout/internal/gateway"
)

type State string

const (
	StatePolling   State = "polling"
	StateConfirmed State = "confirmed"
	StateCancelled State = "cancelled"
	StateGaveUp    State = "gave_up"
)

func (s State) IsTerminal() bool {
	return s != StatePolling
}

const (
	defaultInterval  = 5 * time.Second
	defaultMaxPasses = 60
)

type OrderLookup interface {
	ByReference(ctx context.Context, externalReference string) (*domain.OrderRecord, error)
}

type GatewayStatus interface {
	StatusByReference(ctx context.Context, externalReference, paymentID string) (gateway.Status, error)
}

type OrderSubmitter interface {
	Submit(ctx context.Context, draft *domain.OrderDraft) (*domain.OrderRecord, error)
}

// Result is what a reconciliation pass concluded. Order is set only when
// the state is confirmed.
type Result struct {
	State State
	Order *domain.OrderRecord
}

// Poller reconciles one payment attempt. Passes are serialized: a pass
// that is still in flight blocks the next one, and once a pass reaches a
// terminal state every later pass returns that same result.
type Poller struct {
	externalReference string
	gatewayPaymentID  string
	orders            OrderLookup
	gateway           GatewayStatus
	submitter         OrderSubmitter
	makePaidDraft     func() *domain.OrderDraft

	interval  time.Duration
	maxPasses int

	mu     sync.Mutex
	passes int
	result Result
}

func NewPoller(
	externalReference string,
	gatewayPaymentID string,
	orders OrderLookup,
	gw GatewayStatus,
	submitter OrderSubmitter,
	makePaidDraft func() *domain.OrderDraft,
) *Poller {
	return &Poller{
		externalReference: externalReference,
		gatewayPaymentID:  gatewayPaymentID,
		orders:            orders,
		gateway:           gw,
		submitter:         submitter,
		makePaidDraft:     makePaidDraft,
		interval:          defaultInterval,
		maxPasses:         defaultMaxPasses,
		result:            Result{State: StatePolling},
	}
}

// Run ticks until the attempt reaches a terminal state or the context is
// cancelled, and returns the final result.
func (p *Poller) Run(ctx context.Context) Result {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res := p.Pass(ctx)
			if res.State.IsTerminal() {
				return res
			}
		case <-ctx.Done():
			return p.Cancel()
		}
	}
}

// Pass runs a single reconciliation check. Safe to drive externally, e.g.
// from a status endpoint hit on the client's own timer.
func (p *Poller) Pass(ctx context.Context) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.result.State.IsTerminal() {
		return p.result
	}

	p.passes++
	logger := log.WithFields(log.Fields{
		"external_reference": p.externalReference,
		"pass":               p.passes,
	})

	// Source one: the order store.
	rec, err := p.orders.ByReference(ctx, p.externalReference)
	if err == nil && rec.Status == domain.OrderStatusPaid {
		logger.Info("payment confirmed by order store")
		p.result = Result{State: StateConfirmed, Order: rec}
		return p.result
	}
	if err != nil {
		logger.WithError(err).Debug("order store lookup inconclusive")
	}

	// Source two: the gateway.
	status, gwErr := p.gateway.StatusByReference(ctx, p.externalReference, p.gatewayPaymentID)
	if gwErr != nil {
		logger.WithError(gwErr).Warn("gateway status check failed")
	} else if status.Paid {
		// A settled charge is exempt from the pass cap: giving up here
		// would strand money the customer already paid, so the submit is
		// retried on every pass until it lands.
		p.result = p.selfHeal(ctx, logger, rec)
		return p.result
	}

	if p.passes >= p.maxPasses {
		logger.Warn("reconciliation window exhausted, giving up")
		p.result = Result{State: StateGaveUp}
		return p.result
	}

	return Result{State: StatePolling}
}

// Cancel moves the attempt to cancelled unless it already settled. A
// payment that confirmed first stays confirmed.
func (p *Poller) Cancel() Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.result.State.IsTerminal() {
		return p.result
	}
	log.WithField("external_reference", p.externalReference).Info("reconciliation cancelled")
	p.result = Result{State: StateCancelled}
	return p.result
}

// selfHeal lands the paid order in the store when the gateway settled the
// charge but the store has no paid record for it.
func (p *Poller) selfHeal(ctx context.Context, logger *log.Entry, existing *domain.OrderRecord) Result {
	if existing != nil && existing.Status == domain.OrderStatusPaid {
		return Result{State: StateConfirmed, Order: existing}
	}

	draft := p.makePaidDraft()
	draft.Status = domain.OrderStatusPaid

	rec, err := p.submitter.Submit(ctx, draft)
	if err != nil {
		logger.WithError(err).Error("failed to submit paid order during reconciliation")
		return Result{State: StatePolling}
	}

	logger.Info("payment confirmed by gateway, order submitted")
	return Result{State: StateConfirmed, Order: rec}
}
