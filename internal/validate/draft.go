package validate

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/brenoghost0/dermosul-checkout/internal/domain"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// On the wire these fields are digits-only; a mask that survived this
	// far means the builder skipped the strip.
	validate.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == Digits(s) && ValidCPF(s)
	})
	validate.RegisterValidation("cep", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == Digits(s) && len(s) == 8
	})
}

// OrderDraft is the last gate before a draft hits the wire: every payload
// failure here is a programming error upstream, since the per-field
// validators already ran against the form.
func OrderDraft(draft *domain.OrderDraft) error {
	if draft == nil {
		return fmt.Errorf("order draft is nil")
	}
	if err := validate.Struct(draft); err != nil {
		return formatValidationError(err)
	}
	if _, err := time.Parse("2006-01-02", draft.BirthDate); err != nil {
		return fmt.Errorf("campo birthDate inválido: %s", draft.BirthDate)
	}
	return nil
}

// Customer runs the per-field validators over the whole contact group and
// returns field name -> message for everything invalid. Empty birthdate
// sub-fields the user has not reached are not eagerly flagged.
func Customer(c domain.CustomerDraft) map[string]string {
	errs := map[string]string{}
	if msg := Email(c.Email); msg != "" {
		errs["email"] = msg
	}
	if msg := Phone(c.Phone); msg != "" {
		errs["phone"] = msg
	}
	if msg := CPF(c.CPF); msg != "" {
		errs["cpf"] = msg
	}
	if msg := Birthdate(c.BirthDay, c.BirthMonth, c.BirthYear); msg != "" {
		errs["birthDate"] = msg
	}
	if c.FirstName == "" {
		errs["firstName"] = MsgRequiredField
	}
	if c.LastName == "" {
		errs["lastName"] = MsgRequiredField
	}
	return errs
}

// Shipping validates the address group. Only the postal code has format
// rules; the rest is required-ness.
func Shipping(s domain.ShippingDraft) map[string]string {
	errs := map[string]string{}
	if msg := CEP(s.PostalCode); msg != "" {
		errs["cep"] = msg
	}
	for field, value := range map[string]string{
		"address":  s.Street,
		"number":   s.Number,
		"district": s.District,
		"city":     s.City,
		"state":    s.State,
	} {
		if value == "" {
			errs[field] = MsgRequiredField
		}
	}
	return errs
}

func formatValidationError(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return err
	}
	first := errs[0]
	return fmt.Errorf("campo %s inválido (%s)", first.Field(), first.Tag())
}
