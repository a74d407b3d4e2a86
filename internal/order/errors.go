package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/noah-isme/cafe-api/internal/common"
	"github.com/noah-isme/cafe-api/internal/pricing"
)

// pricingAppError maps pricing failures onto API errors. Unknown errors pass through.
func pricingAppError(err error, delivery *pricing.DeliveryQuote) error {
	var (
		unknown  *pricing.UnknownItemError
		quantity *pricing.InvalidQuantityError
	)
	switch {
	case errors.Is(err, pricing.ErrEmptyOrder):
		return &common.AppError{Code: "EMPTY_ORDER", Message: "order has no lines", HTTPStatus: http.StatusUnprocessableEntity, Err: err}
	case errors.As(err, &quantity):
		return &common.AppError{
			Code:       "INVALID_QUANTITY",
			Message:    "quantity must be a whole number between 1 and " + strconv.Itoa(pricing.MaxQuantity),
			HTTPStatus: http.StatusUnprocessableEntity,
			Err:        err,
			Details: map[string]any{
				"itemId":      quantity.ItemID,
				"quantity":    json.Number(quantity.Quantity.String()),
				"maxQuantity": pricing.MaxQuantity,
			},
		}
	case errors.Is(err, pricing.ErrInvalidQuantity):
		return &common.AppError{Code: "INVALID_QUANTITY", Message: "quantity must be a whole number between 1 and " + strconv.Itoa(pricing.MaxQuantity), HTTPStatus: http.StatusUnprocessableEntity, Err: err}
	case errors.As(err, &unknown):
		details := map[string]any{"itemIds": unknown.IDs}
		if delivery != nil {
			details["delivery"] = deliveryResponse(*delivery)
		}
		return &common.AppError{
			Code:       "UNKNOWN_ITEM",
			Message:    "one or more items do not exist",
			HTTPStatus: http.StatusUnprocessableEntity,
			Err:        err,
			Details:    details,
		}
	}
	return err
}

// deliveryAppError explains why an order cannot be delivered.
func deliveryAppError(quote pricing.DeliveryQuote) error {
	if quote.Reason == pricing.ReasonOutOfRange {
		return &common.AppError{
			Code:       "DELIVERY_OUT_OF_RANGE",
			Message:    "address is outside the delivery area",
			HTTPStatus: http.StatusUnprocessableEntity,
			Details:    map[string]any{"distanceKm": quote.DistanceKm, "maxKm": pricing.ServiceRadiusKm},
		}
	}
	return &common.AppError{
		Code:       "DELIVERY_PROVIDER_ERROR",
		Message:    "delivery distance could not be determined; try again later",
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

func quoteResult(summary pricing.Summary, err error) string {
	var appErr *common.AppError
	switch {
	case err == nil && summary.Delivery.Available:
		return "ok"
	case err == nil:
		return string(summary.Delivery.Reason)
	case errors.As(err, &appErr):
		return appErr.Code
	default:
		return "error"
	}
}
