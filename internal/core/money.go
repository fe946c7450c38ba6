// Package core holds the domain types shared by the classifier, the
// aggregator, and the storage layer.
//
// This file contains money parsing and formatting. Amounts are kept as
// integer paise to avoid floating-point drift in sums; conversion to rupees
// happens only at display and JSON boundaries.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in paise (1/100 rupee).
type Money struct {
	Paise int64
}

// Rupees returns the rupee value as a float64 for display purposes.
// Use paise for arithmetic.
func (m Money) Rupees() float64 {
	return float64(m.Paise) / 100.0
}

// MarshalJSON emits the amount as a two-decimal rupee number, which is what
// the API envelopes and chart payloads expect.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Rupees(), 'f', 2, 64)), nil
}

// UnmarshalJSON accepts a rupee number and converts it back to paise.
func (m *Money) UnmarshalJSON(data []byte) error {
	paise, err := ParseAmountToPaise(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	m.Paise = paise
	return nil
}

// ParseAmountToPaise converts a currency amount string to paise.
//
// Commas are thousands separators and are stripped before parsing, which
// covers both western ("2,450.00") and Indian ("1,00,000") grouping. The dot
// is the decimal separator. Half-up rounding is applied on the third decimal
// digit. Negative amounts are rejected; zero is allowed (amount-less expense
// messages classify with amount 0).
func ParseAmountToPaise(s string) (int64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, ErrNegativeAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrNegativeAmount
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrNegativeAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrNegativeAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrNegativeAmount
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrNegativeAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
		return 0, ErrNegativeAmount
	}

	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	return iv*100 + frac, nil
}
