package payments

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSplitFeeTenPercent(t *testing.T) {
	cases := []struct {
		gross string
		fee   string
		net   string
	}{
		{"39.99", "4.00", "35.99"},
		{"79.97", "8.00", "71.97"},
		{"119.96", "12.00", "107.96"},
		{"10.00", "1.00", "9.00"},
		{"0.10", "0.01", "0.09"},
	}
	for _, tc := range cases {
		split := SplitFee(decimal.RequireFromString(tc.gross), 10)
		if !split.Fee.Equal(decimal.RequireFromString(tc.fee)) {
			t.Errorf("gross %s: fee = %s, want %s", tc.gross, split.Fee, tc.fee)
		}
		if !split.Net.Equal(decimal.RequireFromString(tc.net)) {
			t.Errorf("gross %s: net = %s, want %s", tc.gross, split.Net, tc.net)
		}
	}
}

func TestSplitFeeBankersRounding(t *testing.T) {
	// Ties go to the even cent: 0.225 -> 0.22, 0.235 -> 0.24.
	split := SplitFee(decimal.RequireFromString("2.25"), 10)
	if !split.Fee.Equal(decimal.RequireFromString("0.22")) {
		t.Errorf("fee = %s, want 0.22", split.Fee)
	}
	split = SplitFee(decimal.RequireFromString("2.35"), 10)
	if !split.Fee.Equal(decimal.RequireFromString("0.24")) {
		t.Errorf("fee = %s, want 0.24", split.Fee)
	}
}

func TestSplitFeeNetPlusFeeEqualsGross(t *testing.T) {
	for _, gross := range []string{"0.01", "19.99", "1234.56", "0.05"} {
		split := SplitFee(decimal.RequireFromString(gross), 10)
		if !split.Fee.Add(split.Net).Equal(split.Gross) {
			t.Errorf("gross %s: fee %s + net %s != gross", gross, split.Fee, split.Net)
		}
	}
}
