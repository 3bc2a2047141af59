package utils

import (
	"github.com/shopspring/decimal"
)

// satsPerBTC is the number of satoshis in one bitcoin.
var satsPerBTC = decimal.NewFromInt(100_000_000)

// MsatToSats converts millisatoshis to whole satoshis, truncating the
// sub-satoshi remainder.
func MsatToSats(msat uint64) uint64 {
	return msat / 1000
}

// SatsToBTC converts a satoshi amount to its BTC decimal value.
//
// Example:
//
//	utils.SatsToBTC(150_000) // 0.0015
func SatsToBTC(sats uint64) decimal.Decimal {
	return decimal.NewFromUint64(sats).Div(satsPerBTC)
}

// FormatBTC renders a satoshi amount as a fixed 8-decimal BTC string with
// unit suffix, e.g. "0.00150000 BTC".
func FormatBTC(sats uint64) string {
	return SatsToBTC(sats).StringFixed(8) + " BTC"
}
