package gateway

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ISO 4217 exponents that differ from 2.
var currencyExponent = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

func Exponent(currency string) int32 {
	if e, ok := currencyExponent[currency]; ok {
		return e
	}
	return 2
}

// MajorUnits renders an amount held in minor units, e.g. 1050 USD -> "10.50".
func MajorUnits(amount int64, currency string) string {
	exp := Exponent(currency)
	return decimal.New(amount, -exp).StringFixed(exp)
}

// MinorUnits parses a provider's major-unit string back into minor units.
func MinorUnits(value, currency string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("decimal.NewFromString: %w", err)
	}
	scaled := d.Shift(Exponent(currency))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more precision than %s allows", value, currency)
	}
	return scaled.IntPart(), nil
}
