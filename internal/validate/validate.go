// Package validate provides pure input validation for Shelfwise Core.
//
// Every book and member field passes through this package before it
// reaches persistence, so a validation failure can never leave partial
// state behind. All functions are side-effect free.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Field length defaults for free-text fields.
const (
	DefaultMinLen = 1
	DefaultMaxLen = 255
)

var (
	emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)
	phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)
)

// Error is a caller-correctable input problem: bad format, missing field,
// out-of-range value, or a business-rule violation such as a duplicate key.
// It carries the offending field so the front end can show a precise message.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Errorf builds a validation Error for field with a formatted reason.
func Errorf(field, format string, args ...any) *Error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a validation Error.
func IsValidation(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

// String trims value and checks its length against [minLen, maxLen].
// It returns the trimmed value on success.
func String(value, field string, minLen, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) < minLen {
		if trimmed == "" {
			return "", Errorf(field, "must not be empty")
		}
		return "", Errorf(field, "must be at least %d characters", minLen)
	}
	if len(trimmed) > maxLen {
		return "", Errorf(field, "must be at most %d characters", maxLen)
	}
	return trimmed, nil
}

// Int parses value as a base-10 integer and range-checks it.
// min and max are inclusive; pass NoBound to skip a bound.
func Int(value, field string, min, max int64) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, Errorf(field, "must be a whole number")
	}
	return n, IntRange(n, field, min, max)
}

// NoBound disables one side of a range check.
const NoBound = int64(-1) << 62

// IntRange checks that value lies within [min, max].
// Pass NoBound for an open bound.
func IntRange(value int64, field string, min, max int64) error {
	if min != NoBound && value < min {
		return Errorf(field, "must be at least %d", min)
	}
	if max != NoBound && value > max {
		return Errorf(field, "must be at most %d", max)
	}
	return nil
}

// Email reports whether value looks like a valid email address.
func Email(value string) bool {
	return emailPattern.MatchString(value)
}

// Phone reports whether value looks like a valid phone number:
// optional leading +, 9-15 digits.
func Phone(value string) bool {
	return phonePattern.MatchString(value)
}

// ISBN canonicalises and checksums an ISBN.
//
// Hyphens and spaces are stripped; the result must be 10 characters
// (digits, last may be 'X') or 13 digits. The ISBN-10 check digit is the
// weighted sum mod 11; ISBN-13 uses alternating 1/3 weights mod 10.
// The canonical form is returned on success.
func ISBN(isbn string) (string, error) {
	cleaned := strings.NewReplacer("-", "", " ", "").Replace(isbn)
	cleaned = strings.ToUpper(cleaned)

	switch len(cleaned) {
	case 10:
		if !isbn10Valid(cleaned) {
			return "", Errorf("isbn", "invalid ISBN-10 check digit")
		}
	case 13:
		if !isbn13Valid(cleaned) {
			return "", Errorf("isbn", "invalid ISBN-13 check digit")
		}
	default:
		return "", Errorf("isbn", "must be 10 or 13 digits")
	}

	return cleaned, nil
}

// isbn10Valid verifies a 10-character ISBN. The first nine characters
// must be digits; the check character may be 'X' (value 10).
func isbn10Valid(isbn string) bool {
	total := 0
	for i := 0; i < 9; i++ {
		d := int(isbn[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		total += (10 - i) * d
	}

	check := 11 - total%11
	var checkChar byte
	switch {
	case check == 10:
		checkChar = 'X'
	case check == 11:
		checkChar = '0'
	default:
		checkChar = byte('0' + check)
	}

	return isbn[9] == checkChar
}

// isbn13Valid verifies a 13-digit ISBN using alternating 1/3 weights.
func isbn13Valid(isbn string) bool {
	total := 0
	for i := 0; i < 12; i++ {
		d := int(isbn[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		weight := 1
		if i%2 == 1 {
			weight = 3
		}
		total += weight * d
	}

	check := (10 - total%10) % 10
	return isbn[12] == byte('0'+check)
}
