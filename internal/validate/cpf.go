package validate

// ValidCPF reports whether s reduces to a structurally valid CPF: exactly
// 11 digits, not all identical, and both check digits matching the
// weighted-sum-mod-11 computation.
func ValidCPF(s string) bool {
	d := Digits(s)
	if len(d) != 11 || allSame(d) {
		return false
	}
	if cpfCheckDigit(d, 9) != int(d[9]-'0') {
		return false
	}
	return cpfCheckDigit(d, 10) == int(d[10]-'0')
}

// cpfCheckDigit computes the check digit over the first n digits, with
// weights (n+1)..2. Remainders 10 and 11 collapse to 0.
func cpfCheckDigit(d string, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += int(d[i]-'0') * (n + 1 - i)
	}
	r := (sum * 10) % 11
	if r == 10 || r == 11 {
		r = 0
	}
	return r
}

func allSame(d string) bool {
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			return false
		}
	}
	return true
}
