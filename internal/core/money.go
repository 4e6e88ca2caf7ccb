// Package core provides amount parsing and formatting utilities.
//
// Amounts are whole numbers in the smallest currency unit. There are no
// fractional amounts, so the grouping separators users type ("1.500.000",
// "1,500,000", "1 500 000") are ignored rather than read as decimals.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// MaxAmountDigits bounds how many digits an amount may have.
const MaxAmountDigits = 12

// ParseAmount converts user input to a positive whole amount.
//
// Examples:
//
//	ParseAmount("5000")      -> 5000, nil
//	ParseAmount("1.500.000") -> 1500000, nil
//	ParseAmount("0")         -> 0, ErrInvalidAmount
//	ParseAmount("-10")       -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == ',' || r == ' ' || r == '_':
			// grouping separator
		default:
			return 0, ErrInvalidAmount
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	if digits == "" || len(digits) > MaxAmountDigits {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// FormatAmount renders an amount the way the app displays it, e.g. "Rp 1.500.000".
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	raw := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range raw {
		if i > 0 && (len(raw)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "Rp " + b.String()
}

// decodeAmount reads an amount sent either as a JSON number or as typed
// text such as "1.500.000".
func decodeAmount(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
		return ParseAmount(s)
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, raw)
	}
	return v, nil
}

func decodeStrict(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
