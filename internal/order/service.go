package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/cafe-api/internal/common"
	"github.com/noah-isme/cafe-api/internal/db"
	"github.com/noah-isme/cafe-api/internal/notify"
	"github.com/noah-isme/cafe-api/internal/obs"
	"github.com/noah-isme/cafe-api/internal/pricing"
	"github.com/noah-isme/cafe-api/internal/user"
)

var serviceNopLogger = zerolog.Nop()

// TxQueries is the query surface used inside an order transaction.
type TxQueries interface {
	CreateOrder(ctx context.Context, arg db.CreateOrderParams) (db.Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (db.Order, error)
	UpdateOrderTotals(ctx context.Context, arg db.UpdateOrderTotalsParams) (db.Order, error)
	CreateOrderItem(ctx context.Context, arg db.CreateOrderItemParams) (db.OrderItem, error)
	UpdateOrderItem(ctx context.Context, arg db.UpdateOrderItemParams) (db.OrderItem, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]db.OrderItem, error)
}

// Store reads orders and runs writes in a transaction.
type Store interface {
	GetOrder(ctx context.Context, id int64) (db.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]db.Order, error)
	LatestOrderByUser(ctx context.Context, userID int64) (db.Order, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]db.OrderItem, error)
	ListOrderItemsByOrders(ctx context.Context, orderIDs []int64) ([]db.OrderItem, error)
	GetItemsByIDs(ctx context.Context, ids []int64) ([]db.Item, error)
	InTx(ctx context.Context, fn func(TxQueries) error) error
}

// PGStore adapts *db.Store to Store.
type PGStore struct {
	*db.Store
}

// InTx runs fn in a pgx transaction.
func (s PGStore) InTx(ctx context.Context, fn func(TxQueries) error) error {
	return s.Store.InTx(ctx, func(q *db.Queries) error { return fn(q) })
}

// Pricer quotes carts.
type Pricer interface {
	Quote(ctx context.Context, req pricing.Request) (pricing.Summary, error)
}

type userResolver interface {
	Verify(ctx context.Context, id common.Identity) (user.User, bool, error)
}

// Notifier publishes order notifications.
type Notifier interface {
	OrderPlaced(ctx context.Context, p notify.OrderPlaced) error
}

// LineInput is one requested item.
// Quantity is decoded as a decimal so fractional input reaches pricing validation.
type LineInput struct {
	ItemID   int64           `json:"itemId" validate:"required,gt=0"`
	Quantity decimal.Decimal `json:"quantity"`
}

// QuoteInput is the body of a quote request.
// PostalCode is not validated here: an unusable code yields an unavailable delivery.
type QuoteInput struct {
	Lines      []LineInput `json:"lines" validate:"dive"`
	PostalCode string      `json:"postalCode"`
}

// PlaceInput is the body of an order placement.
type PlaceInput struct {
	Address    string      `json:"address" validate:"required,max=200"`
	PostalCode string      `json:"postalCode" validate:"required,max=16"`
	Lines      []LineInput `json:"lines" validate:"dive"`
}

// AddItemInput is the body for adding a line to an existing order.
type AddItemInput struct {
	ItemID   int64           `json:"itemId" validate:"required,gt=0"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Line is a stored order line.
type Line struct {
	ID        int64           `json:"id"`
	ItemID    int64           `json:"itemId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Order is a placed order with its lines.
type Order struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"userId"`
	Address      string          `json:"address"`
	PostalCode   string          `json:"postalCode"`
	DistanceKm   float64         `json:"distanceKm"`
	ItemSubtotal decimal.Decimal `json:"itemSubtotal"`
	DeliveryFee  decimal.Decimal `json:"deliveryFee"`
	Total        decimal.Decimal `json:"total"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	Lines        []Line          `json:"lines"`
}

// Service implements quoting and the order lifecycle.
type Service struct {
	store     Store
	pricer    Pricer
	catalog   pricing.CatalogLookup
	users     userResolver
	notifier  Notifier
	validator *validatorv10.Validate
	logger    *zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store     Store
	Pricer    Pricer
	Catalog   pricing.CatalogLookup
	Users     userResolver
	Notifier  Notifier
	Validator *validatorv10.Validate
	Logger    *zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Pricer == nil {
		return nil, errors.New("order: pricer is required")
	}
	if cfg.Store == nil || cfg.Catalog == nil || cfg.Users == nil {
		return nil, errors.New("order: store, catalog and users are required")
	}
	v := cfg.Validator
	if v == nil {
		v = common.NewValidator()
	}
	return &Service{
		store:     cfg.Store,
		pricer:    cfg.Pricer,
		catalog:   cfg.Catalog,
		users:     cfg.Users,
		notifier:  cfg.Notifier,
		validator: v,
		logger:    cfg.Logger,
	}, nil
}

// Quote prices a cart without persisting anything. An unavailable delivery is not an error.
func (s *Service) Quote(ctx context.Context, in QuoteInput) (summary pricing.Summary, err error) {
	defer func() { obs.RecordQuote(quoteResult(summary, err)) }()
	if err := common.ValidateStruct(s.validator, in); err != nil {
		return pricing.Summary{}, err
	}
	cart, err := toCartLines(in.Lines)
	if err != nil {
		return pricing.Summary{}, pricingAppError(err, nil)
	}
	summary, err = s.pricer.Quote(ctx, pricing.Request{Lines: cart, PostalCode: in.PostalCode})
	if err != nil {
		return summary, pricingAppError(err, deliveryOf(summary, err))
	}
	return summary, nil
}

// Place quotes the cart, refuses undeliverable orders and persists the order atomically.
func (s *Service) Place(ctx context.Context, id common.Identity, in PlaceInput) (Order, error) {
	in.Address = strings.TrimSpace(in.Address)
	if err := common.ValidateStruct(s.validator, in); err != nil {
		return Order{}, err
	}
	cart, err := toCartLines(in.Lines)
	if err != nil {
		return Order{}, pricingAppError(err, nil)
	}
	u, _, err := s.users.Verify(ctx, id)
	if err != nil {
		return Order{}, err
	}
	summary, err := s.pricer.Quote(ctx, pricing.Request{Lines: cart, PostalCode: in.PostalCode})
	if err != nil {
		return Order{}, pricingAppError(err, nil)
	}
	if !summary.Delivery.Available {
		return Order{}, deliveryAppError(summary.Delivery)
	}
	names, err := s.itemNames(ctx, summary.Lines)
	if err != nil {
		return Order{}, err
	}

	var (
		row   db.Order
		lines []db.OrderItem
	)
	err = s.store.InTx(ctx, func(q TxQueries) error {
		var err error
		row, err = q.CreateOrder(ctx, db.CreateOrderParams{
			UserID:       u.ID,
			Address:      in.Address,
			PostalCode:   in.PostalCode,
			DistanceKm:   summary.Delivery.DistanceKm,
			ItemSubtotal: summary.ItemSubtotal,
			DeliveryFee:  *summary.DeliveryFee,
			Total:        *summary.GrandTotal,
		})
		if err != nil {
			return fmt.Errorf("order: create: %w", err)
		}
		lines = make([]db.OrderItem, 0, len(summary.Lines))
		for _, line := range summary.Lines {
			item, err := q.CreateOrderItem(ctx, db.CreateOrderItemParams{
				OrderID:   row.ID,
				ItemID:    line.ItemID,
				ItemName:  names[line.ItemID],
				Quantity:  int32(line.Quantity),
				UnitPrice: line.UnitPrice,
				LineTotal: line.LineTotal,
			})
			if err != nil {
				return fmt.Errorf("order: create line: %w", err)
			}
			lines = append(lines, item)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	obs.RecordOrderCreated()

	order := fromRows(row, lines)
	s.enqueuePlaced(ctx, u, order)
	return order, nil
}

// Get returns an order owned by the caller. Orders of other users are reported as missing.
func (s *Service) Get(ctx context.Context, id common.Identity, orderID int64) (Order, error) {
	u, _, err := s.users.Verify(ctx, id)
	if err != nil {
		return Order{}, err
	}
	row, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, orderNotFound(err)
		}
		return Order{}, fmt.Errorf("order: get: %w", err)
	}
	if row.UserID != u.ID {
		return Order{}, orderNotFound(nil)
	}
	items, err := s.store.ListOrderItems(ctx, row.ID)
	if err != nil {
		return Order{}, fmt.Errorf("order: list lines: %w", err)
	}
	return fromRows(row, items), nil
}

// ListMine returns the caller's orders newest first.
func (s *Service) ListMine(ctx context.Context, id common.Identity) ([]Order, error) {
	u, _, err := s.users.Verify(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListOrdersByUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("order: list: %w", err)
	}
	if len(rows) == 0 {
		return []Order{}, nil
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	items, err := s.store.ListOrderItemsByOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("order: list lines: %w", err)
	}
	byOrder := make(map[int64][]db.OrderItem, len(rows))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	out := make([]Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRows(row, byOrder[row.ID]))
	}
	return out, nil
}

// Latest returns the caller's most recent order or a NO_ORDERS AppError.
func (s *Service) Latest(ctx context.Context, id common.Identity) (Order, error) {
	u, _, err := s.users.Verify(ctx, id)
	if err != nil {
		return Order{}, err
	}
	row, err := s.store.LatestOrderByUser(ctx, u.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, common.NotFound("NO_ORDERS", "no orders yet", err)
		}
		return Order{}, fmt.Errorf("order: latest: %w", err)
	}
	items, err := s.store.ListOrderItems(ctx, row.ID)
	if err != nil {
		return Order{}, fmt.Errorf("order: list lines: %w", err)
	}
	return fromRows(row, items), nil
}

// AddItem adds quantity of an item to an order and re-prices every line against the
// current menu. The delivery fee quoted at placement is kept.
func (s *Service) AddItem(ctx context.Context, id common.Identity, orderID int64, in AddItemInput) (Order, error) {
	if err := common.ValidateStruct(s.validator, in); err != nil {
		return Order{}, err
	}
	addQty, err := pricing.ParseQuantity(in.ItemID, in.Quantity)
	if err != nil {
		return Order{}, pricingAppError(err, nil)
	}
	u, _, err := s.users.Verify(ctx, id)
	if err != nil {
		return Order{}, err
	}
	names, err := s.itemNames(ctx, []pricing.PricedLine{{ItemID: in.ItemID}})
	if err != nil {
		return Order{}, err
	}

	var (
		row   db.Order
		lines []db.OrderItem
	)
	err = s.store.InTx(ctx, func(q TxQueries) error {
		var err error
		row, err = q.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return orderNotFound(err)
			}
			return fmt.Errorf("order: lock: %w", err)
		}
		if row.UserID != u.ID {
			return orderNotFound(nil)
		}
		existing, err := q.ListOrderItems(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order: list lines: %w", err)
		}
		cart := make([]pricing.CartLine, 0, len(existing)+1)
		merged := false
		for _, item := range existing {
			qty := int(item.Quantity)
			if item.ItemID == in.ItemID && !merged {
				qty += addQty
				merged = true
			}
			cart = append(cart, pricing.CartLine{ItemID: item.ItemID, Quantity: qty})
		}
		if !merged {
			cart = append(cart, pricing.CartLine{ItemID: in.ItemID, Quantity: addQty})
		}
		prices, err := s.catalog.LookupUnitPrices(ctx, pricing.ItemIDs(cart))
		if err != nil {
			return pricingAppError(err, nil)
		}
		priced, subtotal, err := pricing.PriceLines(cart, prices)
		if err != nil {
			return pricingAppError(err, nil)
		}
		lines = make([]db.OrderItem, 0, len(priced))
		for i, line := range priced {
			var item db.OrderItem
			if i < len(existing) {
				item, err = q.UpdateOrderItem(ctx, db.UpdateOrderItemParams{
					ID:        existing[i].ID,
					Quantity:  int32(line.Quantity),
					UnitPrice: line.UnitPrice,
					LineTotal: line.LineTotal,
				})
			} else {
				item, err = q.CreateOrderItem(ctx, db.CreateOrderItemParams{
					OrderID:   orderID,
					ItemID:    line.ItemID,
					ItemName:  names[line.ItemID],
					Quantity:  int32(line.Quantity),
					UnitPrice: line.UnitPrice,
					LineTotal: line.LineTotal,
				})
			}
			if err != nil {
				return fmt.Errorf("order: write line: %w", err)
			}
			lines = append(lines, item)
		}
		row, err = q.UpdateOrderTotals(ctx, db.UpdateOrderTotalsParams{
			ID:           orderID,
			ItemSubtotal: subtotal,
			Total:        subtotal.Add(row.DeliveryFee),
		})
		if err != nil {
			return fmt.Errorf("order: update totals: %w", err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return fromRows(row, lines), nil
}

// ParseID parses a positive order id path parameter.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.BadRequest("id", "id must be a positive integer", err)
	}
	return id, nil
}

func (s *Service) itemNames(ctx context.Context, lines []pricing.PricedLine) (map[int64]string, error) {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	rows, err := s.store.GetItemsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("order: item names: %w", err)
	}
	names := make(map[int64]string, len(rows))
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, pricingAppError(pricing.NewUnknownItemError(missing), nil)
	}
	return names, nil
}

func (s *Service) enqueuePlaced(ctx context.Context, u user.User, o Order) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.OrderPlaced(ctx, notify.OrderPlaced{
		OrderID: o.ID,
		Email:   u.Email,
		Name:    u.Name,
		Total:   o.Total.StringFixed(2),
	})
	if err != nil {
		s.loggerFor(ctx).Warn().Err(err).Int64("order_id", o.ID).Msg("order_notification_enqueue_failed")
	}
}

func (s *Service) loggerFor(ctx context.Context) *zerolog.Logger {
	if ctxLogger := zerolog.Ctx(ctx); ctxLogger != nil && ctxLogger.GetLevel() != zerolog.Disabled {
		return ctxLogger
	}
	if s.logger == nil {
		return &serviceNopLogger
	}
	return s.logger
}

func orderNotFound(err error) error {
	return common.NotFound("NOT_FOUND", "order not found", err)
}

// deliveryOf returns the delivery outcome carried by a failed quote, if the lookup ran.
func deliveryOf(summary pricing.Summary, err error) *pricing.DeliveryQuote {
	var unknown *pricing.UnknownItemError
	if !errors.As(err, &unknown) {
		return nil
	}
	d := summary.Delivery
	return &d
}

func toCartLines(in []LineInput) ([]pricing.CartLine, error) {
	lines := make([]pricing.CartLine, 0, len(in))
	for _, l := range in {
		qty, err := pricing.ParseQuantity(l.ItemID, l.Quantity)
		if err != nil {
			return nil, err
		}
		lines = append(lines, pricing.CartLine{ItemID: l.ItemID, Quantity: qty})
	}
	return lines, nil
}

func fromRows(row db.Order, items []db.OrderItem) Order {
	o := Order{
		ID:           row.ID,
		UserID:       row.UserID,
		Address:      row.Address,
		PostalCode:   row.PostalCode,
		DistanceKm:   row.DistanceKm,
		ItemSubtotal: row.ItemSubtotal,
		DeliveryFee:  row.DeliveryFee,
		Total:        row.Total,
		Status:       row.Status,
		CreatedAt:    row.CreatedAt,
		Lines:        make([]Line, 0, len(items)),
	}
	for _, item := range items {
		o.Lines = append(o.Lines, Line{
			ID:        item.ID,
			ItemID:    item.ItemID,
			Name:      item.ItemName,
			Quantity:  int(item.Quantity),
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}
	return o
}
