package patterns

import "strings"

// namedValidators maps the validator names usable in pattern definitions
// to their implementations.
var namedValidators = map[string]Validator{
	"ssn":         ValidateSSN,
	"luhn":        ValidateLuhn,
	"alnum_mixed": ValidateAlnumMixed,
	"vin":         ValidateVIN,
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateSSN rejects structurally invalid SSNs: area 000, 666 or 900-999,
// group 00, serial 0000.
func ValidateSSN(match string) bool {
	digits := digitsOnly(match)
	if len(digits) != 9 {
		return false
	}

	area := digits[0:3]
	group := digits[3:5]
	serial := digits[5:9]

	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	if group == "00" {
		return false
	}
	if serial == "0000" {
		return false
	}
	return true
}

// ValidateLuhn checks the Luhn checksum used by payment card and some
// account numbers.
func ValidateLuhn(match string) bool {
	digits := digitsOnly(match)
	if len(digits) < 13 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// ValidateAlnumMixed requires at least one letter and one digit, which
// filters plain words and plain numbers out of serial-number patterns.
func ValidateAlnumMixed(match string) bool {
	hasLetter, hasDigit := false, false
	for _, r := range match {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			hasLetter = true
		}
	}
	return hasLetter && hasDigit
}

// ValidateVIN checks the ISO 3779 check digit in position 9.
func ValidateVIN(match string) bool {
	vin := strings.ToUpper(match)
	if len(vin) != 17 {
		return false
	}

	values := map[byte]int{
		'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7, 'H': 8,
		'J': 1, 'K': 2, 'L': 3, 'M': 4, 'N': 5, 'P': 7, 'R': 9,
		'S': 2, 'T': 3, 'U': 4, 'V': 5, 'W': 6, 'X': 7, 'Y': 8, 'Z': 9,
	}
	weights := []int{8, 7, 6, 5, 4, 3, 2, 10, 0, 9, 8, 7, 6, 5, 4, 3, 2}

	sum := 0
	for i := 0; i < 17; i++ {
		c := vin[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		default:
			var ok bool
			v, ok = values[c]
			if !ok {
				return false
			}
		}
		sum += v * weights[i]
	}

	check := sum % 11
	expected := byte('0' + check)
	if check == 10 {
		expected = 'X'
	}
	return vin[8] == expected
}
