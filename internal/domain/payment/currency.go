package payment

import "strings"

// DefaultMinorUnits is used for currencies missing from minorUnits.
const DefaultMinorUnits int32 = 2

// minorUnits lists the ISO 4217 exponents that differ from two.
var minorUnits = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"CLP": 0,
	"VND": 0,
	"KWD": 3,
	"BHD": 3,
}

// MinorUnits returns how many decimal places an amount in currency may carry.
func MinorUnits(currency string) int32 {
	if places, ok := minorUnits[strings.ToUpper(currency)]; ok {
		return places
	}
	return DefaultMinorUnits
}
