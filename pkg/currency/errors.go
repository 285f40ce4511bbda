package currency

import "errors"

// Common errors returned by the currency package.
var (
	// ErrMalformedAmount is returned when the numeric tail of an amount
	// string cannot be parsed. Callers degrade to a zero amount.
	ErrMalformedAmount = errors.New("malformed currency amount")

	// ErrEmptyAmount is returned when the amount string contains no digits.
	ErrEmptyAmount = errors.New("empty currency amount")
)
