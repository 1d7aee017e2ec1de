package domain

import "testing"

func TestParseAction(t *testing.T) {
	cases := []struct {
		in   string
		want Action
		ok   bool
	}{
		{"buy", ActionBuy, true},
		{"BUY", ActionBuy, true},
		{"Sell", ActionSell, true},
		{"  close ", ActionClose, true},
		{"CLOSE", ActionClose, true},
		{"hold", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := ParseAction(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ParseAction(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestSideOpposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Error("SideBuy.Opposite() != SideSell")
	}
	if SideSell.Opposite() != SideBuy {
		t.Error("SideSell.Opposite() != SideBuy")
	}
	if SideBuy.String() != "BUY" || SideSell.String() != "SELL" {
		t.Errorf("Side strings = %q/%q, want BUY/SELL", SideBuy, SideSell)
	}
}

func TestZeroValues(t *testing.T) {
	sig := TradeSignal{}
	if sig.Symbol != "" || sig.Volume != 0 || sig.Ticket != 0 {
		t.Error("expected zero values for zero-value TradeSignal")
	}

	res := OrderResult{}
	if res.Success || res.Ticket != 0 || res.Retcode != 0 {
		t.Error("expected zero values for zero-value OrderResult")
	}

	pos := Position{}
	if pos.Side != SideBuy {
		t.Error("zero-value Position side should be the terminal's buy encoding")
	}
	if !pos.OpenTime.IsZero() {
		t.Error("expected zero OpenTime for zero-value Position")
	}
}
