package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// UnavailableReason explains why delivery cannot be quoted.
type UnavailableReason string

const (
	// ReasonOutOfRange means the distance resolved but lies beyond the serviceable radius.
	ReasonOutOfRange UnavailableReason = "OUT_OF_RANGE"
	// ReasonProviderError means geocoding or the distance lookup failed.
	ReasonProviderError UnavailableReason = "PROVIDER_ERROR"
)

// ServiceRadiusKm is the distance from which delivery is no longer offered.
const ServiceRadiusKm = 20.0

// Tier maps the half-open interval [MinKm, MaxKm) to a fee.
type Tier struct {
	MinKm float64
	MaxKm float64
	Fee   decimal.Decimal
}

// Tiers is the delivery fee table. Distances at or beyond the last MaxKm are out of range.
var Tiers = []Tier{
	{MinKm: 0, MaxKm: 5, Fee: decimal.New(10, -1)},
	{MinKm: 5, MaxKm: 13, Fee: decimal.New(15, -1)},
	{MinKm: 13, MaxKm: ServiceRadiusKm, Fee: decimal.New(20, -1)},
}

// DeliveryQuote is either a concrete fee for a distance or an unavailable outcome.
type DeliveryQuote struct {
	Available  bool
	DistanceKm float64
	Fee        decimal.Decimal
	Reason     UnavailableReason
}

// MetersToKm converts a distance reported by the provider in meters.
func MetersToKm(meters float64) float64 {
	return meters / 1000
}

// QuoteDelivery looks up the fee tier for distanceKm.
func QuoteDelivery(distanceKm float64) DeliveryQuote {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, -1) || distanceKm < 0 {
		return ProviderUnavailable()
	}
	for _, tier := range Tiers {
		if distanceKm >= tier.MinKm && distanceKm < tier.MaxKm {
			return DeliveryQuote{Available: true, DistanceKm: distanceKm, Fee: tier.Fee}
		}
	}
	return DeliveryQuote{DistanceKm: distanceKm, Reason: ReasonOutOfRange}
}

// ProviderUnavailable is the outcome when the distance could not be resolved.
func ProviderUnavailable() DeliveryQuote {
	return DeliveryQuote{Reason: ReasonProviderError}
}
