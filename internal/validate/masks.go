package validate

import "strings"

// Digits strips everything that is not 0-9. Every payload-bound value goes
// through this; display masks never leak past the form.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskCPF formats up to 11 digits as 000.000.000-00.
func MaskCPF(s string) string {
	d := truncate(Digits(s), 11)
	switch {
	case len(d) <= 3:
		return d
	case len(d) <= 6:
		return d[:3] + "." + d[3:]
	case len(d) <= 9:
		return d[:3] + "." + d[3:6] + "." + d[6:]
	default:
		return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
	}
}

// MaskCEP formats up to 8 digits as 00000-000.
func MaskCEP(s string) string {
	d := truncate(Digits(s), 8)
	if len(d) <= 5 {
		return d
	}
	return d[:5] + "-" + d[5:]
}

// MaskPhone formats 10 digits as (DD) DDDD-DDDD and 11 as (DD) DDDDD-DDDD.
func MaskPhone(s string) string {
	d := truncate(Digits(s), 11)
	switch {
	case len(d) <= 2:
		return d
	case len(d) <= 6:
		return "(" + d[:2] + ") " + d[2:]
	case len(d) <= 10:
		return "(" + d[:2] + ") " + d[2:6] + "-" + d[6:]
	default:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:]
	}
}

// MaskCardExpiry formats up to 4 digits as MM/YY.
func MaskCardExpiry(s string) string {
	d := truncate(Digits(s), 4)
	if len(d) <= 2 {
		return d
	}
	return d[:2] + "/" + d[2:]
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
