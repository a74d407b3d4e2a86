package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/cafe-api/internal/geo"
)

var engineNopLogger = zerolog.Nop()

var quoteDuration, _ = otel.Meter("github.com/noah-isme/cafe-api/internal/pricing").Float64Histogram(
	"pricing.quote.duration",
	metric.WithUnit("ms"),
	metric.WithDescription("Latency of order price quotes."),
)

// CatalogLookup resolves unit prices for a set of items in one snapshot.
// Missing ids are reported with *UnknownItemError.
type CatalogLookup interface {
	LookupUnitPrices(ctx context.Context, ids []int64) (PriceMap, error)
}

// DistanceResolver resolves the driving distance in meters from origin to a postal code.
type DistanceResolver interface {
	ResolveDistance(ctx context.Context, origin geo.Point, postalCode string) (float64, error)
}

// Request is a pricing request for one cart.
type Request struct {
	Lines      []CartLine
	PostalCode string
}

// Engine prices carts against the catalog and the delivery fee table.
type Engine struct {
	Catalog  CatalogLookup
	Distance DistanceResolver
	Origin   geo.Point
	Logger   *zerolog.Logger
}

// Quote prices the cart and the delivery concurrently and joins both results.
// When line pricing fails the returned Summary still carries the delivery outcome.
func (e *Engine) Quote(ctx context.Context, req Request) (Summary, error) {
	if e == nil || e.Catalog == nil {
		return Summary{}, errors.New("pricing: catalog lookup not configured")
	}
	if err := ValidateLines(req.Lines); err != nil {
		return Summary{}, err
	}
	start := time.Now()

	var (
		lines    []PricedLine
		subtotal decimal.Decimal
		delivery DeliveryQuote
	)
	var g errgroup.Group
	g.Go(func() error {
		prices, err := e.Catalog.LookupUnitPrices(ctx, ItemIDs(req.Lines))
		if err != nil {
			return err
		}
		lines, subtotal, err = PriceLines(req.Lines, prices)
		return err
	})
	g.Go(func() error {
		delivery = e.quoteDelivery(ctx, req.PostalCode)
		return nil
	})
	err := g.Wait()

	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case !delivery.Available:
		result = string(delivery.Reason)
	}
	quoteDuration.Record(ctx, float64(time.Since(start))/float64(time.Millisecond),
		metric.WithAttributes(attribute.String("result", result)))

	if err != nil {
		return Summary{Delivery: delivery}, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Summary{}, ctxErr
	}
	return Assemble(lines, subtotal, delivery), nil
}

func (e *Engine) quoteDelivery(ctx context.Context, postalCode string) DeliveryQuote {
	if e.Distance == nil {
		return ProviderUnavailable()
	}
	meters, err := e.Distance.ResolveDistance(ctx, e.Origin, postalCode)
	if err != nil {
		e.loggerFor(ctx).Warn().Err(err).Str("postal_code", postalCode).Msg("delivery_distance_unavailable")
		return ProviderUnavailable()
	}
	return QuoteDelivery(MetersToKm(meters))
}

func (e *Engine) loggerFor(ctx context.Context) *zerolog.Logger {
	if ctxLogger := zerolog.Ctx(ctx); ctxLogger != nil && ctxLogger.GetLevel() != zerolog.Disabled {
		return ctxLogger
	}
	if e.Logger == nil {
		return &engineNopLogger
	}
	return e.Logger
}
