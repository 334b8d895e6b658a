// Package pricing computes quotes in integer centavos. No floating point
// touches a money value anywhere in this package.
package pricing

// MaxQuantity matches the storefront quantity stepper.
const MaxQuantity = 5

// Tier maps a minimum quantity to a discount percentage. Percent must stay
// in [0, 100).
type Tier struct {
	MinQuantity int
	Percent     int64
}

// DefaultTiers: 2 units take 5% off, 3 or more take 10%.
var DefaultTiers = []Tier{
	{MinQuantity: 2, Percent: 5},
	{MinQuantity: 3, Percent: 10},
}

type Quote struct {
	UnitPrice       int64 `json:"unitPrice"`
	Quantity        int   `json:"quantity"`
	Subtotal        int64 `json:"subtotal"`
	DiscountPercent int64 `json:"discountPercent"`
	DiscountValue   int64 `json:"discountValue"`
	Total           int64 `json:"total"`
}

// ClampQuantity silently clamps into [1, MaxQuantity]; the stepper UI never
// reports an out-of-range quantity as an error.
func ClampQuantity(qty int) int {
	if qty < 1 {
		return 1
	}
	if qty > MaxQuantity {
		return MaxQuantity
	}
	return qty
}

// Compute builds a quote for unitPrice (centavos) and qty against tiers.
// The tier with the highest MinQuantity satisfied by qty wins; none wins at
// 0%. DiscountValue rounds half-up; Total floors at zero.
func Compute(unitPrice int64, qty int, tiers []Tier) Quote {
	qty = ClampQuantity(qty)
	subtotal := unitPrice * int64(qty)

	var percent int64
	best := -1
	for _, t := range tiers {
		if qty >= t.MinQuantity && t.MinQuantity > best {
			best = t.MinQuantity
			percent = t.Percent
		}
	}

	discount := roundHalfUp(subtotal*percent, 100)
	total := subtotal - discount
	if total < 0 {
		total = 0
	}

	return Quote{
		UnitPrice:       unitPrice,
		Quantity:        qty,
		Subtotal:        subtotal,
		DiscountPercent: percent,
		DiscountValue:   discount,
		Total:           total,
	}
}

// DiscountedUnitPrice is the per-unit price submitted to the order store,
// rounded half-up at the cent so the backend total matches the quote.
func (q Quote) DiscountedUnitPrice() int64 {
	if q.Quantity == 0 {
		return 0
	}
	return roundHalfUp(q.Total, int64(q.Quantity))
}

// Installment is a display-only division of the total; the actual charge
// always carries the true installment count and the full total.
type Installment struct {
	Count  int   `json:"count"`
	Amount int64 `json:"amount"`
}

// InstallmentOptions lists "total / n" for n in [1, max], no interest.
func InstallmentOptions(total int64, max int) []Installment {
	opts := make([]Installment, 0, max)
	for n := 1; n <= max; n++ {
		opts = append(opts, Installment{Count: n, Amount: roundHalfUp(total, int64(n))})
	}
	return opts
}

func roundHalfUp(numerator, denominator int64) int64 {
	return (numerator + denominator/2) / denominator
}
