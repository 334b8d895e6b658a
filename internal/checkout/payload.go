package checkout

import (
	"fmt"
	"time"

	"github.com/brenoghost0/dermosul-checkout/internal/domain"
	"github.com/brenoghost0/dermosul-checkout/internal/gateway"
	"github.com/brenoghost0/dermosul-checkout/internal/pricing"
	"github.com/brenoghost0/dermosul-checkout/internal/validate"
)

// MintReference builds the externalReference for a new payment attempt:
// product slug plus the mint instant in unix milliseconds.
func MintReference(slug string, now time.Time) string {
	return fmt.Sprintf("%s-%d", slug, now.UnixMilli())
}

// BuildOrderDraft assembles the order creation payload. Phone, CPF and CEP
// are re-stripped to digits here regardless of what the form fields carry,
// and the unit price submitted is the discounted one so the store-side
// total reproduces the quote. Card data never enters the draft.
func BuildOrderDraft(
	customer domain.CustomerDraft,
	shipping domain.ShippingDraft,
	cart domain.CartSelection,
	quote pricing.Quote,
	attempt domain.PaymentAttempt,
	orderStatus string,
) *domain.OrderDraft {
	return &domain.OrderDraft{
		FirstName:     customer.FirstName,
		LastName:      customer.LastName,
		Email:         customer.Email,
		Phone:         validate.Digits(customer.Phone),
		CPF:           validate.Digits(customer.CPF),
		BirthDate:     customer.BirthDateISO(),
		Gender:        customer.Gender,
		PostalCode:    validate.Digits(shipping.PostalCode),
		Address:       shipping.Street,
		AddressNumber: shipping.Number,
		Complement:    shipping.Complement,
		District:      shipping.District,
		City:          shipping.City,
		State:         shipping.State,

		ProductID:         cart.ProductID,
		ProductTitle:      cart.ProductTitle,
		Qty:               quote.Quantity,
		ProductPrice:      quote.DiscountedUnitPrice(),
		GatewayPaymentID:  attempt.GatewayPaymentID,
		Status:            orderStatus,
		PaymentMethod:     attempt.Method,
		ExternalReference: attempt.ExternalReference,
	}
}

// GatewayCustomer shapes the form data the way the gateway expects it,
// digits only for CPF and phone.
func GatewayCustomer(customer domain.CustomerDraft) gateway.Customer {
	return gateway.Customer{
		Name:  customer.FullName(),
		Email: customer.Email,
		CPF:   validate.Digits(customer.CPF),
		Phone: validate.Digits(customer.Phone),
	}
}
