package domain

import "time"

// Order statuses as the order store speaks them.
const (
	OrderStatusAwaitingPayment = "aguardando_pagamento"
	OrderStatusPaid            = "pago"
)

// OrderDraft is the request body for order creation. It is rebuilt fresh for
// every submission attempt; the backend deduplicates by ExternalReference.
// ProductPrice carries the already-discounted unit price so that
// backend-side total = ProductPrice * Qty reproduces the quoted total.
type OrderDraft struct {
	FirstName     string `json:"firstName" validate:"required"`
	LastName      string `json:"lastName" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone" validate:"required,min=10,max=11,numeric"`
	CPF           string `json:"cpf" validate:"required,cpf"`
	BirthDate     string `json:"birthDate" validate:"required,datetime=2006-01-02"`
	Gender        string `json:"gender"`
	PostalCode    string `json:"cep" validate:"required,cep"`
	Address       string `json:"address" validate:"required"`
	AddressNumber string `json:"addressNumber" validate:"required"`
	Complement    string `json:"complement,omitempty"`
	District      string `json:"district" validate:"required"`
	City          string `json:"city" validate:"required"`
	State         string `json:"state" validate:"required"`

	ProductID         string        `json:"productId" validate:"required"`
	ProductTitle      string        `json:"productTitle" validate:"required"`
	Qty               int           `json:"qty" validate:"min=1,max=5"`
	ProductPrice      int64         `json:"productPrice" validate:"min=1"`
	GatewayPaymentID  string        `json:"gatewayPaymentId" validate:"required"`
	Status            string        `json:"status" validate:"required,oneof=aguardando_pagamento pago"`
	PaymentMethod     PaymentMethod `json:"paymentMethod" validate:"required,oneof=pix cartao"`
	ExternalReference string        `json:"externalReference" validate:"required"`
}

// OrderRecord is what the order store returns on creation or lookup.
type OrderRecord struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrderSummary is the explicit handoff value the controller returns on a
// successful checkout, for whatever renders the confirmation view.
type OrderSummary struct {
	Slug          string        `json:"slug"`
	ProductImage  string        `json:"productImage,omitempty"`
	ProductTitle  string        `json:"productTitle"`
	TotalAmount   int64         `json:"totalAmount"`
	Installments  int           `json:"installments"`
	Quantity      int           `json:"quantity"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	OrderID       string        `json:"orderId"`
	CreatedAt     time.Time     `json:"createdAt"`
}
