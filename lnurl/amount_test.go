package lnurl

import "testing"

func TestClampAmount(t *testing.T) {
	params := &PayParams{MinSendable: 1000, MaxSendable: 200000} // 1..200 sats

	cases := []struct {
		requested int64
		want      int64
	}{
		{0, 1},
		{1, 1},
		{50, 50},
		{200, 200},
		{201, 200},
		{1_000_000, 200},
		{-5, 1},
	}
	for _, c := range cases {
		if got := ClampAmount(c.requested, params); got != c.want {
			t.Errorf("ClampAmount(%d) = %d, want %d", c.requested, got, c.want)
		}
	}
}

func TestClampAmountRoundsBoundsToWholeSats(t *testing.T) {
	// 1500 msats rounds up to 2 sats, 2500 msats rounds down to 2 sats.
	params := &PayParams{MinSendable: 1500, MaxSendable: 2500}
	if got := ClampAmount(1, params); got != 2 {
		t.Errorf("min bound: got %d, want 2", got)
	}
	if got := ClampAmount(100, params); got != 2 {
		t.Errorf("max bound: got %d, want 2", got)
	}
}

func TestClampAmountMalformedBounds(t *testing.T) {
	cases := []*PayParams{
		nil,
		{MinSendable: 0, MaxSendable: 0},
		{MinSendable: -1000, MaxSendable: 5000},
		{MinSendable: 5000, MaxSendable: 1000},
		{MinSendable: 1500, MaxSendable: 1600}, // rounds to 2..1, inverted
	}
	for _, params := range cases {
		if got := ClampAmount(42, params); got != 42 {
			t.Errorf("ClampAmount(42, %+v) = %d, want the request unchanged", params, got)
		}
	}
}

func TestClampAmountInRangeIsIdentity(t *testing.T) {
	params := &PayParams{MinSendable: 1000, MaxSendable: 1_000_000_000}
	for _, r := range []int64{1, 21, 5000, 1_000_000} {
		if got := ClampAmount(r, params); got != r {
			t.Errorf("ClampAmount(%d) = %d, want identity", r, got)
		}
	}
}
