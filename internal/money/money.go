package money

// Cents is a fixed-point monetary amount in hundredths of a currency unit.
// Totals are computed on integers so repeated addition never drifts the way
// float64 sums do.
type Cents int64

// Line is one priced position: a unit price and how many units of it.
type Line struct {
	UnitPrice Cents
	Quantity  int64
}

// Total sums unit price times quantity over the given lines.
// An empty sequence totals zero. Both cart and order totals go through
// this single code path.
func Total(lines []Line) Cents {
	var sum Cents
	for _, l := range lines {
		sum += l.UnitPrice * Cents(l.Quantity)
	}
	return sum
}
