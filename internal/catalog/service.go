package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/cafe-api/internal/cache"
	"github.com/noah-isme/cafe-api/internal/common"
	"github.com/noah-isme/cafe-api/internal/db"
	"github.com/noah-isme/cafe-api/internal/pricing"
)

const listCacheKey = "items:list"

var serviceNopLogger = zerolog.Nop()

type queryProvider interface {
	ListItems(ctx context.Context) ([]db.Item, error)
	GetItem(ctx context.Context, id int64) (db.Item, error)
	GetItemPrices(ctx context.Context, ids []int64) ([]db.ItemPrice, error)
	CreateItem(ctx context.Context, arg db.CreateItemParams) (db.Item, error)
	BestSellingItem(ctx context.Context) (db.BestSellerRow, error)
}

// Item is a purchasable menu entry.
type Item struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
}

// BestSeller is the most ordered item with its sold quantity.
type BestSeller struct {
	Item
	QuantitySold int64 `json:"quantitySold"`
}

// CreateInput is the payload for adding a menu item.
type CreateInput struct {
	Name        string `json:"name" validate:"required,max=80"`
	Description string `json:"description" validate:"max=500"`
	Image       string `json:"image" validate:"omitempty,url"`
	Price       string `json:"price" validate:"required,money"`
}

// Service serves the menu and implements pricing.CatalogLookup.
type Service struct {
	queries   queryProvider
	cache     *cache.JSON
	validator *validatorv10.Validate
	logger    *zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries   queryProvider
	Cache     *cache.JSON
	Validator *validatorv10.Validate
	Logger    *zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	v := cfg.Validator
	if v == nil {
		v = common.NewValidator()
	}
	return &Service{queries: cfg.Queries, cache: cfg.Cache, validator: v, logger: cfg.Logger}, nil
}

// LookupUnitPrices reads the unit prices of ids with one query so every line of
// a quote sees the same snapshot. Missing ids yield *pricing.UnknownItemError.
func (s *Service) LookupUnitPrices(ctx context.Context, ids []int64) (pricing.PriceMap, error) {
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	rows, err := s.queries.GetItemPrices(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("catalog: lookup prices: %w", err)
	}
	prices := make(pricing.PriceMap, len(rows))
	for _, row := range rows {
		prices[row.ID] = row.Price
	}
	var missing []int64
	for _, id := range unique {
		if _, ok := prices[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, pricing.NewUnknownItemError(missing)
	}
	return prices, nil
}

// List returns the whole menu ordered by id.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	var cached []Item
	if ok, err := s.cache.Get(ctx, listCacheKey, &cached); err == nil && ok {
		return cached, nil
	} else if err != nil {
		s.loggerFor(ctx).Warn().Err(err).Msg("catalog_cache_read_failed")
	}

	rows, err := s.queries.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list items: %w", err)
	}
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, fromRow(row))
	}
	if err := s.cache.Set(ctx, listCacheKey, items); err != nil {
		s.loggerFor(ctx).Warn().Err(err).Msg("catalog_cache_write_failed")
	}
	return items, nil
}

// Get returns a single item or a NOT_FOUND AppError.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	row, err := s.queries.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, common.NotFound("NOT_FOUND", "item not found", err)
		}
		return Item{}, fmt.Errorf("catalog: get item: %w", err)
	}
	return fromRow(row), nil
}

// Create validates and stores a new menu item, then drops the cached menu.
func (s *Service) Create(ctx context.Context, in CreateInput) (Item, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Image = strings.TrimSpace(in.Image)
	in.Price = strings.TrimSpace(in.Price)
	if err := common.ValidateStruct(s.validator, in); err != nil {
		return Item{}, err
	}
	price, err := decimal.NewFromString(in.Price)
	if err != nil {
		return Item{}, common.BadRequest("price", "price must be a decimal", err)
	}
	row, err := s.queries.CreateItem(ctx, db.CreateItemParams{
		Name:        in.Name,
		Description: in.Description,
		Image:       in.Image,
		Price:       price,
	})
	if err != nil {
		return Item{}, fmt.Errorf("catalog: create item: %w", err)
	}
	if err := s.cache.Delete(ctx, listCacheKey); err != nil {
		s.loggerFor(ctx).Warn().Err(err).Msg("catalog_cache_invalidate_failed")
	}
	return fromRow(row), nil
}

// BestSeller returns the item with the largest ordered quantity or a NO_SALES AppError.
func (s *Service) BestSeller(ctx context.Context) (BestSeller, error) {
	row, err := s.queries.BestSellingItem(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BestSeller{}, common.NotFound("NO_SALES", "no items have been ordered yet", err)
		}
		return BestSeller{}, fmt.Errorf("catalog: best seller: %w", err)
	}
	return BestSeller{Item: fromRow(row.Item), QuantitySold: row.QuantitySold}, nil
}

// ParseID parses a positive item id path parameter.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.BadRequest("id", "id must be a positive integer", err)
	}
	return id, nil
}

func fromRow(row db.Item) Item {
	return Item{ID: row.ID, Name: row.Name, Description: row.Description, Image: row.Image, Price: row.Price}
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
