package domain

// PaymentMethod is the rail the customer picked on the payment step.
type PaymentMethod string

const (
	PaymentMethodPix  PaymentMethod = "pix"
	PaymentMethodCard PaymentMethod = "cartao"
)

// AttemptStatus tracks one payment attempt from submission to a terminal state.
type AttemptStatus string

const (
	AttemptStatusInitiated            AttemptStatus = "initiated"
	AttemptStatusAwaitingConfirmation AttemptStatus = "awaiting_confirmation"
	AttemptStatusConfirmed            AttemptStatus = "confirmed"
	AttemptStatusFailed               AttemptStatus = "failed"
	AttemptStatusCancelled            AttemptStatus = "cancelled"
)

func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptStatusConfirmed || s == AttemptStatusFailed || s == AttemptStatusCancelled
}

// String representation (for logging)
func (s AttemptStatus) String() string {
	return string(s)
}

// CanTransitionTo enforces the attempt lifecycle. Terminal states never
// transition; awaiting_confirmation is a Pix-only intermediate state.
func CanTransitionTo(from, to AttemptStatus) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case AttemptStatusAwaitingConfirmation:
		return from == AttemptStatusInitiated
	case AttemptStatusConfirmed:
		return from == AttemptStatusInitiated || from == AttemptStatusAwaitingConfirmation
	case AttemptStatusFailed, AttemptStatusCancelled:
		return true
	default:
		return false
	}
}

// PaymentAttempt correlates a gateway charge, a submitted order and later
// reconciliation lookups through ExternalReference. The reference is minted
// exactly once per attempt; regenerating it mid-flow would orphan the charge
// already created at the gateway.
type PaymentAttempt struct {
	ExternalReference string
	Method            PaymentMethod
	GatewayPaymentID  string
	Status            AttemptStatus
}

// PixCharge is what the gateway hands back for a Pix charge: the QR image
// (base64 PNG), the copy-paste string and the gateway's own payment id.
type PixCharge struct {
	GatewayPaymentID string `json:"gatewayPaymentId"`
	QRCodeImage      string `json:"qrCode"`
	CopyPaste        string `json:"copyPaste"`
}

// CardDetails lives only for the duration of the gateway call. It is never
// persisted, never logged and never part of an OrderDraft.
type CardDetails struct {
	HolderName  string
	Number      string
	ExpiryMonth string
	ExpiryYear  string
	CVV         string
}

// Clear zeroes the card data as soon as the gateway call resolves.
func (c *CardDetails) Clear() {
	*c = CardDetails{}
}
