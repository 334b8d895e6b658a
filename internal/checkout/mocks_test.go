package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/brenoghost0/dermosul-checkout/internal/cache"
	"github.com/brenoghost0/dermosul-checkout/internal/domain"
	"github.com/brenoghost0/dermosul-checkout/internal/gateway"
	"github.com/brenoghost0/dermosul-checkout/internal/orders"
	"github.com/brenoghost0/dermosul-checkout/internal/publisher"
	"github.com/brenoghost0/dermosul-checkout/internal/repository"
)

// MockAttemptStore implements AttemptStore for testing
type MockAttemptStore struct {
	mu        sync.Mutex
	Attempts  map[string]*repository.CheckoutAttempt
	CreateErr error
	UpdateErr error
	Creates   int
}

func NewMockAttemptStore() *MockAttemptStore {
	return &MockAttemptStore{Attempts: make(map[string]*repository.CheckoutAttempt)}
}

func (m *MockAttemptStore) CreateAttempt(_ context.Context, attempt *repository.CheckoutAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Creates++
	m.Attempts[attempt.ExternalReference] = attempt
	return nil
}

func (m *MockAttemptStore) GetAttemptByReference(_ context.Context, ref string) (*repository.CheckoutAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Attempts[ref]
	if !ok {
		return nil, repository.ErrReferenceNotFound
	}
	return a, nil
}

func (m *MockAttemptStore) UpdateAttemptStatus(_ context.Context, ref string, status domain.AttemptStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	a, ok := m.Attempts[ref]
	if !ok {
		return repository.ErrReferenceNotFound
	}
	a.Status = status
	return nil
}

// MockGateway implements PaymentGateway for testing
type MockGateway struct {
	PixCharge *domain.PixCharge
	PixErr    error
	PixCalls  int

	CardPaymentID string
	CardErr       error
	CardCalls     int
	LastCard      domain.CardDetails

	Status    gateway.Status
	StatusErr error

	LastReference string
	LastAmount    int64
	LastCustomer  gateway.Customer
}

func (m *MockGateway) CreatePixCharge(_ context.Context, amount int64, customer gateway.Customer, ref string) (*domain.PixCharge, error) {
	m.PixCalls++
	m.LastAmount = amount
	m.LastCustomer = customer
	m.LastReference = ref
	if m.PixErr != nil {
		return nil, m.PixErr
	}
	return m.PixCharge, nil
}

func (m *MockGateway) ChargeCard(_ context.Context, amount int64, customer gateway.Customer, ref string, card domain.CardDetails, _ int) (string, error) {
	m.CardCalls++
	m.LastAmount = amount
	m.LastCustomer = customer
	m.LastReference = ref
	m.LastCard = card
	if m.CardErr != nil {
		return "", m.CardErr
	}
	return m.CardPaymentID, nil
}

func (m *MockGateway) StatusByReference(_ context.Context, _, _ string) (gateway.Status, error) {
	return m.Status, m.StatusErr
}

// MockOrderStore implements OrderStore for testing
type MockOrderStore struct {
	mu           sync.Mutex
	SubmitRecord *domain.OrderRecord
	SubmitErr    error
	Submitted    []*domain.OrderDraft

	ByRefRecord *domain.OrderRecord
	ByRefErr    error

	// ByRefHook, when set, runs at the top of ByReference. Tests use it to
	// hold a reconciliation pass mid-flight.
	ByRefHook func()
}

func (m *MockOrderStore) Submit(_ context.Context, draft *domain.OrderDraft) (*domain.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Submitted = append(m.Submitted, draft)
	if m.SubmitErr != nil {
		return nil, m.SubmitErr
	}
	return m.SubmitRecord, nil
}

func (m *MockOrderStore) ByReference(_ context.Context, _ string) (*domain.OrderRecord, error) {
	if m.ByRefHook != nil {
		m.ByRefHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ByRefErr != nil {
		return nil, m.ByRefErr
	}
	return m.ByRefRecord, nil
}

// MockChargeCache implements ChargeCache for testing
type MockChargeCache struct {
	mu      sync.Mutex
	Charges map[string]*domain.PixCharge
	SetErr  error
}

func NewMockChargeCache() *MockChargeCache {
	return &MockChargeCache{Charges: make(map[string]*domain.PixCharge)}
}

func (m *MockChargeCache) Get(_ context.Context, ref string) (*domain.PixCharge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Charges[ref]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *MockChargeCache) Set(_ context.Context, ref string, charge *domain.PixCharge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.Charges[ref] = charge
	return nil
}

func (m *MockChargeCache) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Charges, ref)
	return nil
}

// MockPublisher implements PaidPublisher for testing
type MockPublisher struct {
	mu     sync.Mutex
	Events []publisher.PaidEvent
	Err    error
}

func (m *MockPublisher) PublishPaid(_ context.Context, event publisher.PaidEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, event)
	return nil
}

type testDeps struct {
	repo  *MockAttemptStore
	gw    *MockGateway
	store *MockOrderStore
	cache *MockChargeCache
	pub   *MockPublisher
}

// newTestService wires a Service over the mocks with a fixed clock.
func newTestService() (*Service, *testDeps) {
	deps := &testDeps{
		repo: NewMockAttemptStore(),
		gw: &MockGateway{
			PixCharge: &domain.PixCharge{
				GatewayPaymentID: "pay_pix_1",
				QRCodeImage:      "data:image/png;base64,iVBORw0KGgo=",
				CopyPaste:        "00020126580014br.gov.bcb.pix0136...",
			},
			CardPaymentID: "pay_card_1",
		},
		store: &MockOrderStore{
			SubmitRecord: &domain.OrderRecord{
				ID:        "ord_1",
				Status:    domain.OrderStatusAwaitingPayment,
				CreatedAt: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
			},
			ByRefErr: orders.ErrNotFound,
		},
		cache: NewMockChargeCache(),
		pub:   &MockPublisher{},
	}
	svc := NewService(deps.repo, deps.gw, deps.store, deps.cache, deps.pub)

	// Deterministic clock that still moves, so each minted reference is
	// distinct.
	clock := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, deps
}

func customerFixture() domain.CustomerDraft {
	return domain.CustomerDraft{
		FirstName:  "Maria",
		LastName:   "Silva",
		Email:      "maria.silva@example.com",
		Phone:      "(51) 99876-5432",
		CPF:        "529.982.247-25",
		BirthDay:   "7",
		BirthMonth: "5",
		BirthYear:  "1990",
		Gender:     "feminino",
	}
}

func shippingFixture() domain.ShippingDraft {
	return domain.ShippingDraft{
		PostalCode: "90010-150",
		Street:     "Rua dos Andradas",
		Number:     "1001",
		Complement: "Apto 42",
		District:   "Centro Histórico",
		City:       "Porto Alegre",
		State:      "RS",
	}
}

func cartFixture() domain.CartSelection {
	return domain.CartSelection{
		ProductID:    "prod_1",
		ProductSlug:  "kit-capilar",
		ProductTitle: "Kit Capilar Completo",
		ProductImage: "https://cdn.example.com/kit-capilar.jpg",
		UnitPrice:    10000,
		Quantity:     2,
	}
}

func cardFixture() *domain.CardDetails {
	return &domain.CardDetails{
		HolderName:  "MARIA SILVA",
		Number:      "5162306219378829",
		ExpiryMonth: "08",
		ExpiryYear:  "2030",
		CVV:         "318",
	}
}
