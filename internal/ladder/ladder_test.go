package ladder

import "testing"

func TestIncrement_ProductionTable(t *testing.T) {
	tbl := Default
	cases := []struct {
		price int64
		want  int64
	}{
		{0, 5},
		{99, 5},
		{100, 25},
		{499, 25},
		{500, 50},
		{999, 50},
		{1_000, 100},
		{2_499, 100},
		{2_500, 250},
		{4_999, 250},
		{5_000, 500},
		{9_999, 500},
		{10_000, 1_000},
		{24_999, 1_000},
		{25_000, 2_500},
		{49_999, 2_500},
		{50_000, 5_000},
		{99_999, 5_000},
		{100_000, 10_000},
		{249_999, 10_000},
		{250_000, 25_000},
		{499_999, 25_000},
		{500_000, 50_000},
		{10_000_000, 50_000},
	}
	for _, c := range cases {
		if got := tbl.Increment(c.price); got != c.want {
			t.Errorf("Increment(%d) = %d, want %d", c.price, got, c.want)
		}
	}
}

func TestMinNextBid_ProductionTable(t *testing.T) {
	tbl := Default
	if got := tbl.MinNextBid(10_000); got != 11_000 {
		t.Errorf("MinNextBid(10000) = %d, want 11000", got)
	}
}

// customTable exercises a non-production ladder so tests never assume
// one hardcoded increment applies everywhere.
func customTable() *Table {
	return New([]Band{
		{Floor: 0, Step: 1},
		{Floor: 1_000, Step: 10},
	})
}

func TestIncrement_CustomTable(t *testing.T) {
	tbl := customTable()
	if got := tbl.Increment(0); got != 1 {
		t.Errorf("Increment(0) = %d, want 1", got)
	}
	if got := tbl.Increment(999); got != 1 {
		t.Errorf("Increment(999) = %d, want 1", got)
	}
	if got := tbl.Increment(1_000); got != 10 {
		t.Errorf("Increment(1000) = %d, want 10", got)
	}
}
