// Package ladder implements the dynamic bid-increment table.
package ladder

import "sort"

// Band is one step of the increment table: prices at or above Floor
// (and below the next band's Floor) increment by Step cents.
type Band struct {
	Floor int64
	Step  int64
}

// Table is a sorted, non-overlapping, contiguous partition of
// [0, +inf) mapping price to minimum increment. The last band
// extends to infinity.
type Table struct {
	bands []Band
}

// Default is the production band table.
var Default = New([]Band{
	{Floor: 0, Step: 5},
	{Floor: 100, Step: 25},
	{Floor: 500, Step: 50},
	{Floor: 1_000, Step: 100},
	{Floor: 2_500, Step: 250},
	{Floor: 5_000, Step: 500},
	{Floor: 10_000, Step: 1_000},
	{Floor: 25_000, Step: 2_500},
	{Floor: 50_000, Step: 5_000},
	{Floor: 100_000, Step: 10_000},
	{Floor: 250_000, Step: 25_000},
	{Floor: 500_000, Step: 50_000},
})

// New builds a Table from an arbitrary band list, sorting by Floor.
// Callers (tests especially) must supply a band starting at 0.
func New(bands []Band) *Table {
	cp := make([]Band, len(bands))
	copy(cp, bands)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Floor < cp[j].Floor })
	return &Table{bands: cp}
}

// Increment returns the minimum bid increment for the given current
// price in cents.
func (t *Table) Increment(priceCents int64) int64 {
	step := t.bands[0].Step
	for _, b := range t.bands {
		if priceCents >= b.Floor {
			step = b.Step
		} else {
			break
		}
	}
	return step
}

// MinNextBid returns price + Increment(price).
func (t *Table) MinNextBid(priceCents int64) int64 {
	return priceCents + t.Increment(priceCents)
}
