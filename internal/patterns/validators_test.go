package patterns

import "testing"

func TestValidateSSN(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"valid with dashes", "123-45-6789", true},
		{"valid bare digits", "123456789", true},
		{"area 000", "000-45-6789", false},
		{"area 666", "666-45-6789", false},
		{"area 900 range", "923-45-6789", false},
		{"group 00", "123-00-6789", false},
		{"serial 0000", "123-45-0000", false},
		{"too short", "123-45-678", false},
		{"too long", "1234-45-6789", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateSSN(tt.input); got != tt.valid {
				t.Errorf("ValidateSSN(%q) = %v, want %v", tt.input, got, tt.valid)
			}
		})
	}
}

func TestValidateLuhn(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"valid visa test number", "4111111111111111", true},
		{"valid with spaces", "4111 1111 1111 1111", true},
		{"valid mastercard test number", "5500005555555559", true},
		{"checksum off by one", "4111111111111112", false},
		{"too short", "411111111111", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateLuhn(tt.input); got != tt.valid {
				t.Errorf("ValidateLuhn(%q) = %v, want %v", tt.input, got, tt.valid)
			}
		})
	}
}

func TestValidateAlnumMixed(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"AB12-CD34", true},
		{"12345678", false},
		{"ABCDEFGH", false},
		{"A1", true},
	}

	for _, tt := range tests {
		if got := ValidateAlnumMixed(tt.input); got != tt.valid {
			t.Errorf("ValidateAlnumMixed(%q) = %v, want %v", tt.input, got, tt.valid)
		}
	}
}

func TestValidateVIN(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"valid check digit", "1M8GDM9AXKP042788", true},
		{"bad check digit", "1M8GDM9A1KP042788", false},
		{"wrong length", "1M8GDM9AXKP04278", false},
		{"illegal letter", "1M8GDM9AXKP04278I", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateVIN(tt.input); got != tt.valid {
				t.Errorf("ValidateVIN(%q) = %v, want %v", tt.input, got, tt.valid)
			}
		})
	}
}
