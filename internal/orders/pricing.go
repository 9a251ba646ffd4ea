package orders

// LineSubtotal prices one line: (unit price + sum of snapshot adjustments) * quantity.
// Money is int64 minor units throughout, so there is no mid-calculation rounding.
// Pure function over supplied snapshots; unknown customization ids must already
// have been rejected by the caller.
func LineSubtotal(unitPriceCents int64, quantity int, snapshots []CustomizationSnapshot) (int64, error) {
	if quantity < 1 {
		return 0, validationf("quantity must be at least 1, got %d", quantity)
	}
	perUnit := unitPriceCents
	for _, s := range snapshots {
		perUnit += s.PriceAdjustmentCents
	}
	return perUnit * int64(quantity), nil
}

// OrderTotal sums line subtotals.
func OrderTotal(lines []OrderLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.SubtotalCents
	}
	return total
}
