package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyOrder is returned when a cart contains no lines.
	ErrEmptyOrder = errors.New("pricing: order has no lines")
	// ErrInvalidQuantity is returned when a cart line quantity is not a whole number in [1, MaxQuantity].
	ErrInvalidQuantity = errors.New("pricing: quantity must be a positive integer")
	// ErrUnknownItem is returned when a cart references an item absent from the catalog snapshot.
	ErrUnknownItem = errors.New("pricing: unknown item")
)

// UnknownItemError lists the item ids that could not be resolved. It matches ErrUnknownItem.
type UnknownItemError struct {
	IDs []int64
}

// NewUnknownItemError builds an UnknownItemError with sorted, de-duplicated ids.
func NewUnknownItemError(ids []int64) *UnknownItemError {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return &UnknownItemError{IDs: out}
}

func (e *UnknownItemError) Error() string {
	if e == nil || len(e.IDs) == 0 {
		return ErrUnknownItem.Error()
	}
	parts := make([]string, 0, len(e.IDs))
	for _, id := range e.IDs {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return fmt.Sprintf("%s: %s", ErrUnknownItem.Error(), strings.Join(parts, ","))
}

// Is reports whether target is ErrUnknownItem.
func (e *UnknownItemError) Is(target error) bool {
	return target == ErrUnknownItem
}

// InvalidQuantityError identifies the offending line. It matches ErrInvalidQuantity.
// Quantity keeps the value as submitted so fractional input can be reported back.
type InvalidQuantityError struct {
	ItemID   int64
	Quantity decimal.Decimal
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("%s: item %d has quantity %s", ErrInvalidQuantity.Error(), e.ItemID, e.Quantity.String())
}

// Is reports whether target is ErrInvalidQuantity.
func (e *InvalidQuantityError) Is(target error) bool {
	return target == ErrInvalidQuantity
}
