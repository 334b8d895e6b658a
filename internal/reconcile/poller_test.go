package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brenoghost0/dermosul-checkout/internal/domain"
	"github.com/brenoghost0/dermosul-checkout/internal/gateway"
	"github.com/brenoghost0/dermosul-checkout/internal/orders"
)

type MockOrderLookup struct {
	Record *domain.OrderRecord
	Err    error
	Calls  int
}

func (m *MockOrderLookup) ByReference(_ context.Context, _ string) (*domain.OrderRecord, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Record, nil
}

type MockGatewayStatus struct {
	Status gateway.Status
	Err    error
	Calls  int
}

func (m *MockGatewayStatus) StatusByReference(_ context.Context, _, _ string) (gateway.Status, error) {
	m.Calls++
	return m.Status, m.Err
}

type MockSubmitter struct {
	Record    *domain.OrderRecord
	Err       error
	Submitted []*domain.OrderDraft
	mu        sync.Mutex
}

func (m *MockSubmitter) Submit(_ context.Context, draft *domain.OrderDraft) (*domain.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Submitted = append(m.Submitted, draft)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Record, nil
}

func newTestPoller(lookup *MockOrderLookup, gw *MockGatewayStatus, sub *MockSubmitter) *Poller {
	return NewPoller(
		"kit-capilar-1756400000000",
		"pay_abc123",
		lookup,
		gw,
		sub,
		func() *domain.OrderDraft {
			return &domain.OrderDraft{
				ExternalReference: "kit-capilar-1756400000000",
				Status:            domain.OrderStatusAwaitingPayment,
			}
		},
	)
}

func TestPass_StillPending(t *testing.T) {
	lookup := &MockOrderLookup{Err: orders.ErrNotFound}
	gw := &MockGatewayStatus{Status: gateway.Status{Paid: false}}
	sub := &MockSubmitter{}

	p := newTestPoller(lookup, gw, sub)
	res := p.Pass(context.Background())

	assert.Equal(t, StatePolling, res.State)
	assert.Equal(t, 1, lookup.Calls)
	assert.Equal(t, 1, gw.Calls)
	assert.Empty(t, sub.Submitted)
}

func TestPass_ConfirmedByOrderStore(t *testing.T) {
	lookup := &MockOrderLookup{Record: &domain.OrderRecord{ID: "ord_1", Status: domain.OrderStatusPaid}}
	gw := &MockGatewayStatus{}
	sub := &MockSubmitter{}

	p := newTestPoller(lookup, gw, sub)
	res := p.Pass(context.Background())

	require.Equal(t, StateConfirmed, res.State)
	assert.Equal(t, "ord_1", res.Order.ID)
	// Store answer is final, the gateway is never asked.
	assert.Equal(t, 0, gw.Calls)
}

func TestPass_AwaitingOrderSkipsToGateway(t *testing.T) {
	lookup := &MockOrderLookup{Record: &domain.OrderRecord{ID: "ord_1", Status: domain.OrderStatusAwaitingPayment}}
	gw := &MockGatewayStatus{Status: gateway.Status{Paid: false}}
	sub := &MockSubmitter{}

	p := newTestPoller(lookup, gw, sub)
	res := p.Pass(context.Background())

	assert.Equal(t, StatePolling, res.State)
	assert.Equal(t, 1, gw.Calls)
}

func TestPass_GatewayPaidTriggersSelfHeal(t *testing.T) {
	lookup := &MockOrderLookup{Err: orders.ErrNotFound}
	gw := &MockGatewayStatus{Status: gateway.Status{Paid: true}}
	sub := &MockSubmitter{Record: &domain.OrderRecord{ID: "ord_healed", Status: domain.OrderStatusPaid}}

	p := newTestPoller(lookup, gw, sub)
	res := p.Pass(context.Background())

	require.Equal(t, StateConfirmed, res.State)
	assert.Equal(t, "ord_healed", res.Order.ID)
	require.Len(t, sub.Submitted, 1)
	assert.Equal(t, domain.OrderStatusPaid, sub.Submitted[0].Status)
}

func TestPass_SelfHealSubmitFailureKeepsPolling(t *testing.T) {
	lookup := &MockOrderLookup{Err: orders.ErrNotFound}
	gw := &MockGatewayStatus{Status: gateway.Status{Paid: true}}
	sub := &MockSubmitter{Err: errors.New("order store down")}

	p := newTestPoller(lookup, gw, sub)
	res := p.Pass(context.Background())

	assert.Equal(t, StatePolling, res.State)

	// Next pass retries the submit.
	sub.Err = nil
	sub.Record = &domain.OrderRecord{ID: "ord_retry", Status: domain.OrderStatusPaid}
	res = p.Pass(context.Background())
	assert.Equal(t, StateConfirmed, res.State)
	assert.Len(t, sub.Submitted, 2)
}

func TestPass_SettledChargeOutlivesPassCap(t *testing.T) {
	lookup := &MockOrderLookup{Err: orders.ErrNotFound}
	gw := &MockGatewayStatus{Status: gateway.Status{Paid: true}}
	sub := &MockSubmitter{Err: errors.New("order store down")}

	p := newTestPoller(lookup, gw, sub)
	p.maxPasses = 2

	// The customer paid; exhausting the window must not strand the order.
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		assert.Equal(t, StatePolling, p.Pass(ctx).State)
	}

	sub.Err = nil
	sub.Record = &domain.OrderRecord{ID: "ord_late", Status: domain.OrderStatusPaid}
	res := p.Pass(ctx)
	require.Equal(t, StateConfirmed, res.State)
	assert.Equal(t, "ord_late", res.Order.ID)
}

func TestPass_TerminalStateSticks(t *testing.T) {
	lookup := &MockOrderLookup{Record: &domain.OrderRecord{ID: "ord_1", Status: domain.OrderStatusPaid}}
	gw := &MockGatewayStatus{}
	sub := &MockSubmitter{}

	p := newTestPoller(lookup, gw, sub)
	first := p.Pass(context.Background())
	require.Equal(t, StateConfirmed, first.State)

	// Later passes return the settled result without touching the sources.
	second := p.Pass(context.Background())
	assert.Equal(t, first, second)
	assert.Equal(t, 1, lookup.Calls)
}

func TestPass_GivesUpAfterMaxPasses(t *testing.T) {
	lookup := &MockOrderLookup{Err: orders.ErrNotFound}
	gw := &MockGatewayStatus{Status: gateway.Status{Paid: false}}
	sub := &MockSubmitter{}

	p := newTestPoller(lookup, gw, sub)
	p.maxPasses = 3

	ctx := context.Background()
	assert.Equal(t, StatePolling, p.Pass(ctx).State)
	assert.Equal(t, StatePolling, p.Pass(ctx).State)
	assert.Equal(t, StateGaveUp, p.Pass(ctx).State)

	// Stays gave_up afterwards.
	assert.Equal(t, StateGaveUp, p.Pass(ctx).State)
	assert.Equal(t, 3, lookup.Calls)
}

func TestRun_ContextCancelSettlesCancelled(t *testing.T) {
	lookup := &MockOrderLookup{Err: orders.ErrNotFound}
	gw := &MockGatewayStatus{Status: gateway.Status{Paid: false}}
	sub := &MockSubmitter{}

	p := newTestPoller(lookup, gw, sub)
	p.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(25 * time.Millisecond)
		cancel()
	}()

	res := p.Run(ctx)
	assert.Equal(t, StateCancelled, res.State)
	assert.Equal(t, StateCancelled, p.Pass(context.Background()).State)
}

func TestCancel(t *testing.T) {
	lookup := &MockOrderLookup{Err: orders.ErrNotFound}
	gw := &MockGatewayStatus{Status: gateway.Status{Paid: false}}
	sub := &MockSubmitter{}

	p := newTestPoller(lookup, gw, sub)
	res := p.Cancel()
	assert.Equal(t, StateCancelled, res.State)

	// Cancelled is terminal; a later pass does not resurrect polling.
	assert.Equal(t, StateCancelled, p.Pass(context.Background()).State)
}

func TestCancel_AfterConfirmKeepsConfirmed(t *testing.T) {
	lookup := &MockOrderLookup{Record: &domain.OrderRecord{ID: "ord_1", Status: domain.OrderStatusPaid}}
	gw := &MockGatewayStatus{}
	sub := &MockSubmitter{}

	p := newTestPoller(lookup, gw, sub)
	require.Equal(t, StateConfirmed, p.Pass(context.Background()).State)

	res := p.Cancel()
	assert.Equal(t, StateConfirmed, res.State)
}

func TestPass_ConcurrentPassesConfirmOnce(t *testing.T) {
	lookup := &MockOrderLookup{Err: orders.ErrNotFound}
	gw := &MockGatewayStatus{Status: gateway.Status{Paid: true}}
	sub := &MockSubmitter{Record: &domain.OrderRecord{ID: "ord_1", Status: domain.OrderStatusPaid}}

	p := newTestPoller(lookup, gw, sub)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Pass(context.Background())
		}()
	}
	wg.Wait()

	// Only the first pass reaches the submitter.
	assert.Len(t, sub.Submitted, 1)
	assert.Equal(t, StateConfirmed, p.Pass(context.Background()).State)
}
