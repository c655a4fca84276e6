package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount in minor currency units. JSON encodes it as a fixed
// two-decimal string ("20.00") so clients never see float rounding.
type Cents int64

// Decimal returns the amount in major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(c)).Shift(-2)
}

func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Times multiplies the amount by a quantity.
func (c Cents) Times(qty int) Cents {
	return c * Cents(qty)
}

// Net applies a per-unit discount. A nil discount is zero; the result never
// goes below zero.
func Net(price Cents, discount *Cents) Cents {
	if discount == nil {
		return price
	}
	if *discount >= price {
		return 0
	}
	return price - *discount
}

// FromDecimal converts a major-unit amount, rounding half away from zero.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Shift(2).Round(0).IntPart())
}

// Parse reads a major-unit string such as "19.99".
func Parse(value string) (Cents, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return FromDecimal(d), nil
}

func (c Cents) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts either "19.99" or 19.99.
func (c *Cents) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Ptr converts a nullable column value.
func Ptr(v *int64) *Cents {
	if v == nil {
		return nil
	}
	c := Cents(*v)
	return &c
}
