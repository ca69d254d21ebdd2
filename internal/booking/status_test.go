package booking

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		kind     Kind
		from, to Status
		want     bool
	}{
		{KindRental, StatusQuote, StatusConfirmed, true},
		{KindRental, StatusPendingSelection, StatusConfirmed, true},
		{KindRental, StatusConfirmed, StatusDelivered, true},
		{KindRental, StatusDelivered, StatusReturned, true},
		{KindPackage, StatusDelivered, StatusReturned, true},
		{KindSale, StatusDelivered, StatusOrderComplete, true},

		// kind guards on the way out of delivered
		{KindSale, StatusDelivered, StatusReturned, false},
		{KindRental, StatusDelivered, StatusOrderComplete, false},
		{KindPackage, StatusDelivered, StatusOrderComplete, false},

		// no skipping states
		{KindRental, StatusQuote, StatusDelivered, false},
		{KindRental, StatusPendingSelection, StatusDelivered, false},
		{KindRental, StatusConfirmed, StatusReturned, false},

		// cancel from any non-terminal state
		{KindRental, StatusQuote, StatusCancelled, true},
		{KindRental, StatusPendingSelection, StatusCancelled, true},
		{KindRental, StatusConfirmed, StatusCancelled, true},
		{KindRental, StatusDelivered, StatusCancelled, true},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.kind, tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s -> %s) = %v, want %v", tc.kind, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatesAreSticky(t *testing.T) {
	all := []Status{
		StatusQuote, StatusPendingSelection, StatusConfirmed,
		StatusDelivered, StatusReturned, StatusOrderComplete, StatusCancelled,
	}
	terminals := []Status{StatusReturned, StatusOrderComplete, StatusCancelled}
	for _, kind := range []Kind{KindRental, KindSale, KindPackage} {
		for _, from := range terminals {
			if !IsTerminal(from) {
				t.Errorf("IsTerminal(%s) = false", from)
			}
			for _, to := range all {
				if CanTransition(kind, from, to) {
					t.Errorf("transition out of terminal %s -> %s allowed for %s", from, to, kind)
				}
			}
		}
	}
}

func TestLineValidate(t *testing.T) {
	cases := []struct {
		name   string
		line   Line
		wantOK bool
	}{
		{"product line", ProductLine("p1", 2, 1000, 0), true},
		{"package line", PackageLine("pkg1", 1, 5000, 0), true},
		{"both refs set", Line{Source: SourceProduct, ProductID: "p1", PackageID: "pkg1", Qty: 1, UnitPricePaise: 1, TotalPaise: 1}, false},
		{"no ref", Line{Source: SourceProduct, Qty: 1}, false},
		{"zero qty", ProductLine("p1", 0, 1000, 0), false},
		{"negative price", ProductLine("p1", 1, -5, 0), false},
		{"total mismatch", Line{Source: SourceProduct, ProductID: "p1", Qty: 2, UnitPricePaise: 100, TotalPaise: 100}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.line.Validate()
			if (err == nil) != tc.wantOK {
				t.Fatalf("Validate() = %v, wantOK %v", err, tc.wantOK)
			}
		})
	}
}
