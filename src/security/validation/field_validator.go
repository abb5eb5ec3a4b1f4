// src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	DefaultMaxStringLength = 255
	MaxPortfolioNameLength = 100
	MaxPersonNameLength    = 100
	MaxSymbolLength        = 12
	MaxEmailLength         = 254
	MaxFutureTimestampSkew = 5 * time.Minute
)

const MaxTradeQuantity int64 = 1_000_000_000

// MinTradeTimestamp is the earliest accepted trade time.
var MinTradeTimestamp = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

var symbolRegex = regexp.MustCompile(`^\^?[A-Z0-9][A-Z0-9.\-=]*$`)

// --- String Validators ---

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateSymbol expects an already upper-cased ticker such as AAPL, BRK.B or ^GSPC.
func ValidateSymbol(s string) error {
	if err := ValidateStringNotEmpty(s, "symbol"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(s, MaxSymbolLength, "symbol"); err != nil {
		return err
	}
	if !symbolRegex.MatchString(s) {
		return fmt.Errorf("%w: symbol ('%s') is not a valid ticker", ErrValidationFailed, s)
	}
	return nil
}

// ValidateEmail checks for a single bare address.
func ValidateEmail(s string) error {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, "email"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(trimmed, MaxEmailLength, "email"); err != nil {
		return err
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return fmt.Errorf("%w: email ('%s') is not a valid address", ErrValidationFailed, s)
	}
	return nil
}

// --- Numeric Validators ---

// ValidatePrice requires a strictly positive price.
func ValidatePrice(d decimal.Decimal) error {
	if !d.IsPositive() {
		return fmt.Errorf("%w: price must be positive, got %s", ErrValidationFailed, d.String())
	}
	return nil
}

// ValidateQuantity requires a whole number of shares within bounds.
func ValidateQuantity(q int64) error {
	if q <= 0 {
		return fmt.Errorf("%w: quantity must be a positive integer", ErrValidationFailed)
	}
	if q > MaxTradeQuantity {
		return fmt.Errorf("%w: quantity must not exceed %d", ErrValidationFailed, MaxTradeQuantity)
	}
	return nil
}

// --- Date Validator ---

// ValidateTradeTimestamp rejects trades stamped in the future or before
// MinTradeTimestamp. A zero value is allowed and means now.
func ValidateTradeTimestamp(ts time.Time, now time.Time) error {
	if ts.IsZero() {
		return nil
	}
	if ts.Before(MinTradeTimestamp) {
		return fmt.Errorf("%w: timestamp %s is before %s", ErrValidationFailed, ts.Format(time.RFC3339), MinTradeTimestamp.Format(time.DateOnly))
	}
	if ts.After(now.Add(MaxFutureTimestampSkew)) {
		return fmt.Errorf("%w: timestamp %s is in the future", ErrValidationFailed, ts.Format(time.RFC3339))
	}
	return nil
}
