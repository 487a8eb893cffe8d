package wallet

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount reads a user-entered amount in minor units. Only plain positive integers are accepted.
func ParseAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, ErrInvalidAmount
		}
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !d.IsPositive() || !d.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}

	return d.IntPart(), nil
}

// Currency describes how minor units are rendered.
type Currency struct {
	Code     string `env:"CODE, default=IDR"`
	Exponent int32  `env:"EXPONENT, default=0"` // digits after the decimal separator
}

// Format renders an amount as "IDR 10.000.000".
func (c Currency) Format(amount int64) string {
	return c.Code + " " + FormatNumber(amount, c.Exponent)
}

// FormatSigned renders an amount with an explicit sign, as shown in the history list.
func (c Currency) FormatSigned(amount int64) string {
	if amount < 0 {
		return "-" + FormatNumber(-amount, c.Exponent)
	}
	return "+" + FormatNumber(amount, c.Exponent)
}

// FormatNumber groups thousands with "." and separates decimals with ",".
func FormatNumber(amount int64, exponent int32) string {
	d := decimal.New(amount, -exponent)

	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	whole, frac, _ := strings.Cut(d.StringFixed(exponent), ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte(',')
		b.WriteString(frac)
	}

	return b.String()
}
