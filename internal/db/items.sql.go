package db

import (
	"context"

	"github.com/shopspring/decimal"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const itemColumns = `id, name, description, image, price::text, created_at`

func scanItem(row rowScanner) (Item, error) {
	var (
		i     Item
		price string
	)
	if err := row.Scan(&i.ID, &i.Name, &i.Description, &i.Image, &price, &i.CreatedAt); err != nil {
		return Item{}, err
	}
	p, err := parseDecimal(price)
	if err != nil {
		return Item{}, err
	}
	i.Price = p
	return i, nil
}

const listItems = `SELECT ` + itemColumns + ` FROM items ORDER BY id`

func (q *Queries) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := q.db.Query(ctx, listItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getItem = `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

// GetItem returns pgx.ErrNoRows when the item does not exist.
func (q *Queries) GetItem(ctx context.Context, id int64) (Item, error) {
	return scanItem(q.db.QueryRow(ctx, getItem, id))
}

const getItemPrices = `SELECT id, price::text FROM items WHERE id = ANY($1)`

// GetItemPrices reads the prices of all requested items in a single statement.
func (q *Queries) GetItemPrices(ctx context.Context, ids []int64) ([]ItemPrice, error) {
	rows, err := q.db.Query(ctx, getItemPrices, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ItemPrice
	for rows.Next() {
		var (
			p   ItemPrice
			raw string
		)
		if err := rows.Scan(&p.ID, &raw); err != nil {
			return nil, err
		}
		if p.Price, err = parseDecimal(raw); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const getItemsByIDs = `SELECT ` + itemColumns + ` FROM items WHERE id = ANY($1)`

func (q *Queries) GetItemsByIDs(ctx context.Context, ids []int64) ([]Item, error) {
	rows, err := q.db.Query(ctx, getItemsByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type CreateItemParams struct {
	Name        string
	Description string
	Image       string
	Price       decimal.Decimal
}

const createItem = `INSERT INTO items (name, description, image, price)
VALUES ($1, $2, $3, $4::numeric)
RETURNING ` + itemColumns

func (q *Queries) CreateItem(ctx context.Context, arg CreateItemParams) (Item, error) {
	return scanItem(q.db.QueryRow(ctx, createItem, arg.Name, arg.Description, arg.Image, arg.Price.String()))
}

const upsertItemByName = `INSERT INTO items (name, description, image, price)
VALUES ($1, $2, $3, $4::numeric)
ON CONFLICT (lower(name)) DO UPDATE
SET description = EXCLUDED.description, image = EXCLUDED.image, price = EXCLUDED.price
RETURNING ` + itemColumns

// UpsertItemByName inserts or refreshes a menu item keyed by case-insensitive name.
func (q *Queries) UpsertItemByName(ctx context.Context, arg CreateItemParams) (Item, error) {
	return scanItem(q.db.QueryRow(ctx, upsertItemByName, arg.Name, arg.Description, arg.Image, arg.Price.String()))
}

const bestSellingItem = `SELECT i.id, i.name, i.description, i.image, i.price::text, i.created_at, SUM(oi.quantity)::bigint AS sold
FROM order_items oi
JOIN items i ON i.id = oi.item_id
GROUP BY i.id
ORDER BY sold DESC, i.id ASC
LIMIT 1`

// BestSellingItem returns pgx.ErrNoRows when nothing has been ordered yet.
func (q *Queries) BestSellingItem(ctx context.Context) (BestSellerRow, error) {
	var (
		r     BestSellerRow
		price string
	)
	err := q.db.QueryRow(ctx, bestSellingItem).Scan(&r.ID, &r.Name, &r.Description, &r.Image, &price, &r.CreatedAt, &r.QuantitySold)
	if err != nil {
		return BestSellerRow{}, err
	}
	if r.Price, err = parseDecimal(price); err != nil {
		return BestSellerRow{}, err
	}
	return r, nil
}
