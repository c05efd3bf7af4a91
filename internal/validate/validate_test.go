package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		minLen  int
		maxLen  int
		want    string
		wantErr bool
	}{
		{"valid", "Dune", 1, 255, "Dune", false},
		{"trims whitespace", "  Dune  ", 1, 255, "Dune", false},
		{"empty", "", 1, 255, "", true},
		{"whitespace only", "   ", 1, 255, "", true},
		{"too short", "ab", 3, 255, "", true},
		{"too long", strings.Repeat("x", 256), 1, 255, "", true},
		{"exact max", strings.Repeat("x", 255), 1, 255, strings.Repeat("x", 255), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String(tt.value, "title", tt.minLen, tt.maxLen)
			if (err != nil) != tt.wantErr {
				t.Fatalf("String() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInt(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		min     int64
		max     int64
		want    int64
		wantErr bool
	}{
		{"valid", "5", 1, 100, 5, false},
		{"trims whitespace", " 42 ", 1, 100, 42, false},
		{"not a number", "five", 1, 100, 0, true},
		{"decimal rejected", "5.5", 1, 100, 0, true},
		{"below minimum", "0", 1, 100, 0, true},
		{"above maximum", "101", 1, 100, 0, true},
		{"open upper bound", "9999", 1, NoBound, 9999, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Int(tt.value, "quantity", tt.min, tt.max)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Int() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("Int() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"alice@example.com", true},
		{"a.b-c@mail.example.org", true},
		{"underscore_ok@example.io", true},
		{"no-at-sign.example.com", false},
		{"missing@tld", false},
		{"@example.com", false},
		{"alice@", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := Email(tt.value); got != tt.want {
				t.Errorf("Email(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"5551234567", true},
		{"+15551234567", true},
		{"15551234567", true},
		{"123456789", true},
		{"123456789012345", true},
		{"12345678", false},
		{"+441234567890123456", false},
		{"555-123-4567", false},
		{"abcdefghij", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := Phone(tt.value); got != tt.want {
				t.Errorf("Phone(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestISBN(t *testing.T) {
	tests := []struct {
		name    string
		isbn    string
		want    string
		wantErr bool
	}{
		{"valid isbn-13", "9780441013593", "9780441013593", false},
		{"valid isbn-13 hyphenated", "978-0-441-01359-3", "9780441013593", false},
		{"valid isbn-10", "0306406152", "0306406152", false},
		{"valid isbn-10 check X", "080442957X", "080442957X", false},
		{"lowercase x normalised", "080442957x", "080442957X", false},
		{"spaces stripped", "0 306 40615 2", "0306406152", false},
		{"isbn-13 bad check digit", "9780441013594", "", true},
		{"isbn-10 bad check digit", "0306406153", "", true},
		{"isbn-10 X where digit expected", "030640615X", "", true},
		{"too short", "12345", "", true},
		{"too long", "97804410135931", "", true},
		{"letters in body", "97a0441013593", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ISBN(tt.isbn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ISBN(%q) error = %v, wantErr %v", tt.isbn, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ISBN(%q) = %q, want %q", tt.isbn, got, tt.want)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := Errorf("isbn", "must be %d or %d digits", 10, 13)
	if err.Error() != "isbn: must be 10 or 13 digits" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !IsValidation(err) {
		t.Error("IsValidation() = false for validation error")
	}

	wrapped := errors.Join(errors.New("outer"), err)
	if !IsValidation(wrapped) {
		t.Error("IsValidation() = false for wrapped validation error")
	}
	if IsValidation(errors.New("plain")) {
		t.Error("IsValidation() = true for plain error")
	}
}
