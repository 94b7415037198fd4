package convert

import (
	"math"
)

func TwoDecimals(number float64) float64 {
	return RoundFloat64(number, 2)
}

func FourDecimals(number float64) float64 {
	return RoundFloat64(number, 4)
}

func RoundFloat64(number float64, decimals int) float64 {
	return math.Round(number*math.Pow10(int(decimals))) / math.Pow10(int(decimals))
}

// CentsToEuros converts vendor ct/kWh values to EUR/kWh.
func CentsToEuros(cents float64) float64 {
	return cents / 100.0
}
