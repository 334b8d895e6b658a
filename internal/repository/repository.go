package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/brenoghost0/dermosul-checkout/internal/domain"
)

var ErrReferenceNotFound = errors.New("external reference not found")

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// CheckoutAttempt is one payment attempt row. OrderDraft holds the full
// order payload as JSONB so reconciliation can re-submit the order later
// without any client state.
type CheckoutAttempt struct {
	ID                string
	ExternalReference string
	ProductSlug       string
	PaymentMethod     domain.PaymentMethod
	GatewayPaymentID  string
	AmountTotal       int64
	Quantity          int
	Status            domain.AttemptStatus
	OrderDraft        []byte
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Repository struct {
	db *sql.DB
}

type AttemptStore interface {
	CreateAttempt(ctx context.Context, attempt *CheckoutAttempt) error
	GetAttemptByReference(ctx context.Context, externalReference string) (*CheckoutAttempt, error)
	UpdateAttemptStatus(ctx context.Context, externalReference string, status domain.AttemptStatus) error
	Close() error
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// CreateAttempt inserts a new attempt. The unique index on
// external_reference makes double-inserts for the same reference fail,
// which the service layer relies on for idempotency.
func (r *Repository) CreateAttempt(ctx context.Context, attempt *CheckoutAttempt) error {
	query := `INSERT INTO checkout_attempts
	          (id, external_reference, product_slug, payment_method, gateway_payment_id,
	           amount_total, quantity, status, order_draft, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.ExternalReference,
		attempt.ProductSlug,
		attempt.PaymentMethod,
		attempt.GatewayPaymentID,
		attempt.AmountTotal,
		attempt.Quantity,
		attempt.Status,
		attempt.OrderDraft,
	)
	if err != nil {
		return fmt.Errorf("failed to create checkout attempt: %w", err)
	}
	return nil
}

func (r *Repository) GetAttemptByReference(ctx context.Context, externalReference string) (*CheckoutAttempt, error) {
	query := `SELECT id, external_reference, product_slug, payment_method, gateway_payment_id,
	                 amount_total, quantity, status, order_draft, created_at, updated_at
	          FROM checkout_attempts WHERE external_reference = $1`

	var a CheckoutAttempt
	err := r.db.QueryRowContext(ctx, query, externalReference).Scan(
		&a.ID,
		&a.ExternalReference,
		&a.ProductSlug,
		&a.PaymentMethod,
		&a.GatewayPaymentID,
		&a.AmountTotal,
		&a.Quantity,
		&a.Status,
		&a.OrderDraft,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReferenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout attempt: %w", err)
	}
	return &a, nil
}

func (r *Repository) UpdateAttemptStatus(ctx context.Context, externalReference string, status domain.AttemptStatus) error {
	query := `UPDATE checkout_attempts SET status = $1, updated_at = NOW() WHERE external_reference = $2`

	res, err := r.db.ExecContext(ctx, query, status, externalReference)
	if err != nil {
		return fmt.Errorf("failed to update attempt status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrReferenceNotFound
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
