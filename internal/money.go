package internal

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is a money amount expressed in integer minor units. All amounts
// persisted or sent to providers use this representation; no float ever
// carries a price.
type Cents int64

// Money couples an amount in minor units with its currency code.
type Money struct {
	Amount   Cents  `json:"amount" bson:"amount"`
	Currency string `json:"currency" bson:"currency"`
}

// DefaultCurrency is used wherever the storefront does not specify one.
const DefaultCurrency = "usd"

var hundred = decimal.NewFromInt(100)

// DollarsToCents converts a decimal dollar amount to cents, rounding
// half-away-from-zero to the nearest cent.
func DollarsToCents(dollars decimal.Decimal) Cents {
	return Cents(dollars.Mul(hundred).Round(0).IntPart())
}

// CentsToDollars converts cents to an exact decimal dollar amount.
func CentsToDollars(cents Cents) decimal.Decimal {
	return decimal.New(int64(cents), -2)
}

// FormatDisplay renders cents as a symbol-prefixed, thousands-grouped,
// two-decimal string, e.g. FormatDisplay(123456789, "$") == "$1,234,567.89".
func FormatDisplay(cents Cents, currencySymbol string) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}
	units := int64(cents) / 100
	frac := int64(cents) % 100
	grouped := groupThousands(fmt.Sprintf("%d", units))
	if negative {
		return fmt.Sprintf("-%s%s.%02d", currencySymbol, grouped, frac)
	}
	return fmt.Sprintf("%s%s.%02d", currencySymbol, grouped, frac)
}

// FormatExternalDecimal renders cents as a bare two-decimal string, the
// format the fulfillment provider expects in line item retail prices.
func FormatExternalDecimal(cents Cents) string {
	return CentsToDollars(cents).StringFixed(2)
}

// ParseUntyped converts a loosely typed price value to cents. The contract,
// kept from the storefront this service replaces and relied upon by callers:
//   - int, int64, Cents: the value already is cents and passes through.
//   - float64: the value is dollars and is converted.
//   - string: every character except digits and '.' is stripped, the rest is
//     parsed as dollars ("$24.99", "24.99 USD" and "24.99" all yield 2499).
func ParseUntyped(value any) (Cents, error) {
	switch v := value.(type) {
	case Cents:
		return v, nil
	case int:
		return Cents(v), nil
	case int64:
		return Cents(v), nil
	case float64:
		return DollarsToCents(decimal.NewFromFloat(v)), nil
	case string:
		stripped := stripNonNumeric(v)
		if stripped == "" {
			return 0, fmt.Errorf("no numeric content in price %q", v)
		}
		dollars, err := decimal.NewFromString(stripped)
		if err != nil {
			return 0, fmt.Errorf("cannot parse price %q: %w", v, err)
		}
		return DollarsToCents(dollars), nil
	default:
		return 0, fmt.Errorf("unsupported price type %T", value)
	}
}

// IsValidPrice reports whether value parses to a non-negative amount.
func IsValidPrice(value any) bool {
	cents, err := ParseUntyped(value)
	return err == nil && cents >= 0
}

// CentsFromStored normalizes a numeric price loaded from a legacy record
// where the unit was never recorded: values below 100 are read as whole
// dollars, values at or above 100 as cents. Documented quirk: a product
// priced at exactly $100 stored as "100" comes back as 100 cents. Callers
// that know the unit should not use this.
func CentsFromStored(value float64) Cents {
	if value < 100 {
		return DollarsToCents(decimal.NewFromFloat(value))
	}
	return Cents(value)
}

// groupThousands inserts commas into a plain digit string.
func groupThousands(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// stripNonNumeric removes everything except digits and dots.
func stripNonNumeric(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
