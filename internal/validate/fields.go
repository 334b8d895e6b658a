// Package validate holds the per-field form validators and display masks.
// Each validator returns "" for valid input or the storefront's
// user-facing message; none of them touches any field it was not given.
package validate

import (
	"regexp"
	"strconv"
	"time"
)

// User-facing messages, as the storefront shows them.
const (
	MsgInvalidEmail   = "E-mail inválido."
	MsgInvalidPhone   = "Telefone inválido."
	MsgInvalidCPF     = "CPF inválido."
	MsgInvalidCEP     = "CEP inválido."
	MsgInvalidDay     = "Dia inválido."
	MsgInvalidMonth   = "Mês inválido."
	MsgInvalidYear    = "Ano inválido."
	MsgInvalidDate    = "Data inválida."
	MsgInvalidExpiry  = "Validade inválida."
	MsgExpiredCard    = "Cartão vencido."
	MsgRequiredField  = "Campo obrigatório."
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// Email returns "" or a message for the raw email field.
func Email(s string) string {
	if !emailPattern.MatchString(s) {
		return MsgInvalidEmail
	}
	return ""
}

// Phone accepts 10 or 11 digits after stripping the mask.
func Phone(s string) string {
	d := Digits(s)
	if len(d) < 10 || len(d) > 11 {
		return MsgInvalidPhone
	}
	return ""
}

// CPF validates length, repetition and both check digits.
func CPF(s string) string {
	if !ValidCPF(s) {
		return MsgInvalidCPF
	}
	return ""
}

// CEP requires exactly 8 digits. The address lookup that a complete CEP
// triggers lives in the cep package; this only gates it.
func CEP(s string) string {
	if len(Digits(s)) != 8 {
		return MsgInvalidCEP
	}
	return ""
}

// Birthdate checks the day/month/year triple. Sub-fields the user has not
// reached yet (empty strings) are not flagged; once all three are present
// the composed date must round-trip through the calendar, which rejects
// day 31 in a 30-day month and Feb 29 outside leap years.
func Birthdate(day, month, year string) string {
	if day != "" {
		if n, err := strconv.Atoi(day); err != nil || n < 1 || n > 31 {
			return MsgInvalidDay
		}
	}
	if month != "" {
		if n, err := strconv.Atoi(month); err != nil || n < 1 || n > 12 {
			return MsgInvalidMonth
		}
	}
	if year != "" {
		if n, err := strconv.Atoi(year); err != nil || len(year) != 4 || n < 1900 {
			return MsgInvalidYear
		}
	}
	if day == "" || month == "" || year == "" || len(year) != 4 {
		return ""
	}

	d, _ := strconv.Atoi(day)
	m, _ := strconv.Atoi(month)
	y, _ := strconv.Atoi(year)
	composed := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if composed.Year() != y || composed.Month() != time.Month(m) || composed.Day() != d {
		return MsgInvalidDate
	}
	return ""
}

// CardExpiry validates MM/YY (or MM/YYYY) against now: month in [1,12] and
// the (year, month) pair not strictly before the current one.
func CardExpiry(s string, now time.Time) string {
	d := Digits(s)
	if len(d) != 4 && len(d) != 6 {
		return MsgInvalidExpiry
	}
	month, err := strconv.Atoi(d[:2])
	if err != nil || month < 1 || month > 12 {
		return MsgInvalidExpiry
	}
	year, err := strconv.Atoi(d[2:])
	if err != nil {
		return MsgInvalidExpiry
	}
	if len(d) == 4 {
		year += 2000
	}
	if year < now.Year() || (year == now.Year() && month < int(now.Month())) {
		return MsgExpiredCard
	}
	return ""
}

// BirthField identifies one of the three birthdate sub-inputs.
type BirthField string

const (
	BirthFieldDay   BirthField = "birthDay"
	BirthFieldMonth BirthField = "birthMonth"
	BirthFieldYear  BirthField = "birthYear"
)

// BirthAdvance tells the rendering layer where focus should move after a
// keystroke: two digits in day or month advance forward, backspace on an
// empty sub-field moves back. This is a UX hint, not a validation rule.
func BirthAdvance(field BirthField, value string) (BirthField, bool) {
	if len(Digits(value)) != 2 {
		return field, false
	}
	switch field {
	case BirthFieldDay:
		return BirthFieldMonth, true
	case BirthFieldMonth:
		return BirthFieldYear, true
	}
	return field, false
}

// BirthRetreat is the backspace-on-empty counterpart of BirthAdvance.
func BirthRetreat(field BirthField, value string) (BirthField, bool) {
	if value != "" {
		return field, false
	}
	switch field {
	case BirthFieldYear:
		return BirthFieldMonth, true
	case BirthFieldMonth:
		return BirthFieldDay, true
	}
	return field, false
}
