// Package currency normalizes paid-message amount strings into integer
// minor units plus an ISO 4217 currency code.
//
// The platform presents amounts as display text ("¥1,000", "$5.00",
// "CA$2.79", "2.000 ₫"), never as pre-parsed numbers, so the rules here
// are deliberately forgiving: thousands separators are stripped, a dot
// followed by exactly three digits is treated as a grouping separator
// (many locales group with '.'), and unrecognized currency markers fall
// back to a caller-supplied default rather than failing.
package currency

import (
	"strconv"
	"strings"
	"unicode"
)

// Amount is a normalized currency amount.
type Amount struct {
	// Minor is the amount in minor currency units (e.g. cents for USD,
	// yen for JPY).
	Minor int64

	// Code is the ISO 4217 currency code.
	Code string
}

// symbolTable maps currency markers seen in paid-message text to ISO
// codes. Markers are matched against the whole non-digit prefix (or
// suffix), so "CA$2.79" resolves via "CA$", not "$".
var symbolTable = map[string]string{
	"¥":    "JPY",
	"￥":    "JPY",
	"JPY":  "JPY",
	"$":    "USD",
	"US$":  "USD",
	"USD":  "USD",
	"€":    "EUR",
	"EUR":  "EUR",
	"£":    "GBP",
	"GBP":  "GBP",
	"₩":    "KRW",
	"KRW":  "KRW",
	"₹":    "INR",
	"INR":  "INR",
	"NT$":  "TWD",
	"TWD":  "TWD",
	"HK$":  "HKD",
	"HKD":  "HKD",
	"CA$":  "CAD",
	"C$":   "CAD",
	"CAD":  "CAD",
	"A$":   "AUD",
	"AUD":  "AUD",
	"NZ$":  "NZD",
	"NZD":  "NZD",
	"R$":   "BRL",
	"BRL":  "BRL",
	"MX$":  "MXN",
	"MXN":  "MXN",
	"₱":    "PHP",
	"PHP":  "PHP",
	"฿":    "THB",
	"THB":  "THB",
	"₫":    "VND",
	"VND":  "VND",
	"₪":    "ILS",
	"ILS":  "ILS",
	"zł":   "PLN",
	"PLN":  "PLN",
	"S$":   "SGD",
	"SGD":  "SGD",
	"CHF":  "CHF",
	"SEK":  "SEK",
	"NOK":  "NOK",
	"DKK":  "DKK",
	"RUB":  "RUB",
	"₽":    "RUB",
	"HUF":  "HUF",
	"CZK":  "CZK",
	"ARS":  "ARS",
	"CLP":  "CLP",
	"COP":  "COP",
	"PEN":  "PEN",
	"IDR":  "IDR",
	"Rp":   "IDR",
	"MYR":  "MYR",
	"RM":   "MYR",
	"ZAR":  "ZAR",
	"R":    "ZAR",
	"TRY":  "TRY",
	"₺":    "TRY",
}

// zeroDecimalCodes lists ISO codes whose minor unit equals the major unit.
var zeroDecimalCodes = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
	"CLP": true,
	"IDR": true,
	"HUF": true,
}

// Parse splits a leading (or trailing) currency marker from the numeric
// tail of text and normalizes the result into minor units.
//
// Parameters:
//   - text: raw amount text, e.g. "¥1,000" or "$5.00"
//   - fallback: ISO code assumed when no marker is recognized
//
// Returns:
//   - Normalized Amount
//   - ErrEmptyAmount if text carries no digits
//   - ErrMalformedAmount if the numeric tail is not a valid amount
//
// Errors are routine here: callers log them and account the event as
// zero rather than propagating a failure.
func Parse(text, fallback string) (Amount, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Amount{Code: fallback}, ErrEmptyAmount
	}

	prefix, number, suffix := splitMarker(text)
	if number == "" {
		return Amount{Code: fallback}, ErrEmptyAmount
	}

	// Paid-message amounts are never negative; a sign in front of the
	// digits is malformed, not a currency marker.
	if strings.ContainsAny(prefix, "-−") {
		return Amount{Code: fallback}, ErrMalformedAmount
	}

	code := lookupCode(prefix)
	if code == "" {
		code = lookupCode(suffix)
	}
	if code == "" {
		code = fallback
	}

	major, frac, err := splitNumber(number)
	if err != nil {
		return Amount{Code: code}, err
	}

	minor, err := toMinorUnits(major, frac, code)
	if err != nil {
		return Amount{Code: code}, err
	}

	return Amount{Minor: minor, Code: code}, nil
}

// Known reports whether marker maps to a currency in the lookup table.
func Known(marker string) bool {
	return lookupCode(marker) != ""
}

// splitMarker separates text into a leading non-digit marker, the numeric
// run (digits plus separators), and any trailing non-digit marker.
func splitMarker(text string) (prefix, number, suffix string) {
	runes := []rune(text)

	start := 0
	for start < len(runes) && !unicode.IsDigit(runes[start]) {
		start++
	}

	end := len(runes)
	for end > start && !unicode.IsDigit(runes[end-1]) {
		end--
	}

	prefix = strings.TrimSpace(string(runes[:start]))
	suffix = strings.TrimSpace(string(runes[end:]))

	// Separators inside the numeric run stay; trailing separators that
	// were cut along with the suffix do not matter.
	number = string(runes[start:end])
	return prefix, number, suffix
}

// lookupCode resolves a currency marker to an ISO code, or "" when
// unrecognized.
func lookupCode(marker string) string {
	if marker == "" {
		return ""
	}
	if code, ok := symbolTable[marker]; ok {
		return code
	}
	// Alphabetic markers match case-insensitively ("php" == "PHP").
	if code, ok := symbolTable[strings.ToUpper(marker)]; ok {
		return code
	}
	return ""
}

// splitNumber strips grouping separators and splits the number into
// major digits and fractional digits.
//
// Rules:
//   - ',' and spaces are always grouping separators
//   - '.' followed by exactly three digits is a grouping separator
//   - '.' followed by one or two digits is a decimal point
func splitNumber(number string) (major, frac string, err error) {
	number = strings.ReplaceAll(number, ",", "")
	number = strings.ReplaceAll(number, " ", "")
	number = strings.ReplaceAll(number, " ", "")

	parts := strings.Split(number, ".")
	if len(parts) == 1 {
		major = parts[0]
	} else {
		last := parts[len(parts)-1]
		switch len(last) {
		case 3:
			// Grouping: 1.234 or 1.234.567
			major = strings.Join(parts, "")
		case 1, 2:
			// Decimal point; everything before it may still be grouped.
			if len(parts) > 2 {
				return "", "", ErrMalformedAmount
			}
			major = parts[0]
			frac = last
		default:
			return "", "", ErrMalformedAmount
		}
	}

	if major == "" || !isDigits(major) || (frac != "" && !isDigits(frac)) {
		return "", "", ErrMalformedAmount
	}

	return major, frac, nil
}

// toMinorUnits scales major/fractional digits into minor units for code.
func toMinorUnits(major, frac, code string) (int64, error) {
	exponent := 2
	if zeroDecimalCodes[code] {
		exponent = 0
	}

	value, err := strconv.ParseInt(major, 10, 64)
	if err != nil {
		return 0, ErrMalformedAmount
	}

	for i := 0; i < exponent; i++ {
		value *= 10
		if i < len(frac) {
			value += int64(frac[i] - '0')
		}
	}

	return value, nil
}

// isDigits reports whether s is a non-empty run of ASCII digits.
func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
