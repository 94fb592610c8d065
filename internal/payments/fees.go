package payments

import "github.com/shopspring/decimal"

// FeeSplit is the platform fee / seller payout split of one gross amount.
type FeeSplit struct {
	Gross decimal.Decimal
	Fee   decimal.Decimal
	Net   decimal.Decimal
}

// SplitFee takes the platform's percentage cut of a gross amount. The fee is
// rounded to cents with banker's rounding so repeated splits do not drift in
// either party's favor; the net is the exact remainder.
func SplitFee(gross decimal.Decimal, feePct int) FeeSplit {
	fee := gross.
		Mul(decimal.NewFromInt(int64(feePct))).
		Div(decimal.NewFromInt(100)).
		RoundBank(2)
	return FeeSplit{
		Gross: gross,
		Fee:   fee,
		Net:   gross.Sub(fee),
	}
}
