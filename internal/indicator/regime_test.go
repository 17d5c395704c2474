package indicator

import (
	"math"
	"testing"
)

func TestDetectRegime(t *testing.T) {
	cases := []struct {
		name string
		snap Snapshot
		want Regime
	}{
		{
			name: "strong uptrend",
			snap: Snapshot{EMA9: 51000, EMA21: 50000, Close: 51500, Momentum10: 2.0, ATRPct: 1.0},
			want: RegimeStrongUptrend,
		},
		{
			name: "plain uptrend",
			snap: Snapshot{EMA9: 51000, EMA21: 50000, Close: 51500, Momentum10: 0.5, ATRPct: 1.0},
			want: RegimeUptrend,
		},
		{
			name: "strong downtrend",
			snap: Snapshot{EMA9: 49000, EMA21: 50000, Close: 48500, Momentum10: -2.0, ATRPct: 1.0},
			want: RegimeStrongDowntrend,
		},
		{
			name: "high volatility overrides trend",
			snap: Snapshot{EMA9: 51000, EMA21: 50000, Close: 51500, Momentum10: 2.0, ATRPct: 3.5},
			want: RegimeHighVolatility,
		},
		{
			name: "ranging",
			snap: Snapshot{EMA9: 50100, EMA21: 50000, Close: 50050, Momentum10: 0.1, ATRPct: 1.0},
			want: RegimeRanging,
		},
		{
			name: "unknown on missing data",
			snap: Snapshot{EMA9: math.NaN(), EMA21: 50000, Close: 50050},
			want: RegimeUnknown,
		},
	}

	for _, tc := range cases {
		if got := DetectRegime(tc.snap); got != tc.want {
			t.Errorf("%s: regime = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestRegimeFavorsSide(t *testing.T) {
	if RegimeFavorsSide(RegimeUptrend, false) {
		t.Errorf("uptrend must not favor shorts")
	}
	if !RegimeFavorsSide(RegimeStrongDowntrend, false) {
		t.Errorf("strong downtrend should favor shorts")
	}
	if RegimeFavorsSide(RegimeHighVolatility, true) || RegimeFavorsSide(RegimeUnknown, true) {
		t.Errorf("high volatility and unknown must block both sides")
	}
	if !RegimeFavorsSide(RegimeRanging, true) || !RegimeFavorsSide(RegimeRanging, false) {
		t.Errorf("ranging should allow both sides")
	}
}

func TestSeriesHelpers(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	if Last(values) != 5 {
		t.Errorf("Last = %f, want 5", Last(values))
	}
	if Prev(values) != 4 {
		t.Errorf("Prev = %f, want 4", Prev(values))
	}
	if Lookback(values, 3) != 2 {
		t.Errorf("Lookback(3) = %f, want 2", Lookback(values, 3))
	}
	if !math.IsNaN(Lookback(values, 5)) {
		t.Errorf("Lookback beyond the series should be NaN")
	}
	if !math.IsNaN(Last(nil)) {
		t.Errorf("Last of empty series should be NaN")
	}

	tail := SliceTail(values, 2)
	if len(tail) != 2 || tail[0] != 4 || tail[1] != 5 {
		t.Errorf("SliceTail mismatch: %v", tail)
	}

	if SafeDivide(1, 0) != 0 {
		t.Errorf("SafeDivide by zero should return 0")
	}
}

func TestMomentumHelper(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 102}

	if got := momentum(closes, 1); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("momentum(1) = %f, want 2.0", got)
	}
	if got := momentum(closes, 4); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("momentum(4) = %f, want 2.0", got)
	}
	if got := momentum(closes, 10); got != 0 {
		t.Errorf("momentum beyond history should be 0, got %f", got)
	}
}
