package pricing

import (
	"github.com/shopspring/decimal"
)

// MaxQuantity bounds a single line so totals fit the order_items columns.
const MaxQuantity = 100

// CartLine is a caller supplied item selection.
type CartLine struct {
	ItemID   int64
	Quantity int
}

// PriceMap is a catalog snapshot of unit prices keyed by item id.
type PriceMap map[int64]decimal.Decimal

// PricedLine is a cart line resolved against a catalog snapshot.
type PricedLine struct {
	ItemID    int64
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Summary aggregates the priced lines and the delivery outcome.
// DeliveryFee and GrandTotal are nil when delivery is unavailable.
type Summary struct {
	Lines        []PricedLine
	ItemSubtotal decimal.Decimal
	Delivery     DeliveryQuote
	DeliveryFee  *decimal.Decimal
	GrandTotal   *decimal.Decimal
}

// ParseQuantity converts a submitted quantity into a line count.
// Anything but a whole number in [1, MaxQuantity] yields an *InvalidQuantityError.
func ParseQuantity(itemID int64, qty decimal.Decimal) (int, error) {
	if !qty.IsInteger() || qty.Sign() <= 0 || qty.GreaterThan(decimal.NewFromInt(MaxQuantity)) {
		return 0, &InvalidQuantityError{ItemID: itemID, Quantity: qty}
	}
	return int(qty.IntPart()), nil
}

// ValidateLines checks the cart shape before any lookup is performed.
func ValidateLines(lines []CartLine) error {
	if len(lines) == 0 {
		return ErrEmptyOrder
	}
	for _, line := range lines {
		if line.Quantity <= 0 || line.Quantity > MaxQuantity {
			return &InvalidQuantityError{ItemID: line.ItemID, Quantity: decimal.NewFromInt(int64(line.Quantity))}
		}
	}
	return nil
}

// PriceLines resolves every line against prices and returns the exact decimal subtotal.
// Either every line is priced or an error is returned.
func PriceLines(lines []CartLine, prices PriceMap) ([]PricedLine, decimal.Decimal, error) {
	if err := ValidateLines(lines); err != nil {
		return nil, decimal.Zero, err
	}
	var missing []int64
	for _, line := range lines {
		if _, ok := prices[line.ItemID]; !ok {
			missing = append(missing, line.ItemID)
		}
	}
	if len(missing) > 0 {
		return nil, decimal.Zero, NewUnknownItemError(missing)
	}

	priced := make([]PricedLine, 0, len(lines))
	subtotal := decimal.Zero
	for _, line := range lines {
		unit := prices[line.ItemID]
		total := unit.Mul(decimal.NewFromInt(int64(line.Quantity)))
		priced = append(priced, PricedLine{
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			LineTotal: total,
		})
		subtotal = subtotal.Add(total)
	}
	return priced, subtotal, nil
}

// Assemble joins line pricing and the delivery quote into a Summary.
func Assemble(lines []PricedLine, subtotal decimal.Decimal, delivery DeliveryQuote) Summary {
	summary := Summary{
		Lines:        lines,
		ItemSubtotal: subtotal,
		Delivery:     delivery,
	}
	if !delivery.Available {
		return summary
	}
	fee := delivery.Fee
	total := subtotal.Add(fee)
	summary.DeliveryFee = &fee
	summary.GrandTotal = &total
	return summary
}

// ItemIDs returns the distinct item ids referenced by lines in first-seen order.
func ItemIDs(lines []CartLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ItemID]; ok {
			continue
		}
		seen[line.ItemID] = struct{}{}
		ids = append(ids, line.ItemID)
	}
	return ids
}
