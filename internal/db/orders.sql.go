package db

import (
	"context"

	"github.com/shopspring/decimal"
)

const orderColumns = `id, user_id, address, postal_code, distance_km, item_subtotal::text, delivery_fee::text, total::text, status, created_at, updated_at`

func scanOrder(row rowScanner) (Order, error) {
	var (
		o                    Order
		subtotal, fee, total string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.Address, &o.PostalCode, &o.DistanceKm,
		&subtotal, &fee, &total, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if o.ItemSubtotal, err = parseDecimal(subtotal); err != nil {
		return Order{}, err
	}
	if o.DeliveryFee, err = parseDecimal(fee); err != nil {
		return Order{}, err
	}
	if o.Total, err = parseDecimal(total); err != nil {
		return Order{}, err
	}
	return o, nil
}

type CreateOrderParams struct {
	UserID       int64
	Address      string
	PostalCode   string
	DistanceKm   float64
	ItemSubtotal decimal.Decimal
	DeliveryFee  decimal.Decimal
	Total        decimal.Decimal
}

const createOrder = `INSERT INTO orders (user_id, address, postal_code, distance_km, item_subtotal, delivery_fee, total)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric)
RETURNING ` + orderColumns

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder, arg.UserID, arg.Address, arg.PostalCode, arg.DistanceKm,
		arg.ItemSubtotal.String(), arg.DeliveryFee.String(), arg.Total.String()))
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

// GetOrderForUpdate locks the order row for the rest of the transaction.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrdersByUser = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

func (q *Queries) ListOrdersByUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const latestOrderByUser = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`

func (q *Queries) LatestOrderByUser(ctx context.Context, userID int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, latestOrderByUser, userID))
}

type UpdateOrderTotalsParams struct {
	ID           int64
	ItemSubtotal decimal.Decimal
	Total        decimal.Decimal
}

const updateOrderTotals = `UPDATE orders
SET item_subtotal = $2::numeric, total = $3::numeric, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderTotals, arg.ID, arg.ItemSubtotal.String(), arg.Total.String()))
}

const orderItemColumns = `id, order_id, item_id, item_name, quantity, unit_price::text, line_total::text`

func scanOrderItem(row rowScanner) (OrderItem, error) {
	var (
		oi          OrderItem
		unit, total string
	)
	if err := row.Scan(&oi.ID, &oi.OrderID, &oi.ItemID, &oi.ItemName, &oi.Quantity, &unit, &total); err != nil {
		return OrderItem{}, err
	}
	var err error
	if oi.UnitPrice, err = parseDecimal(unit); err != nil {
		return OrderItem{}, err
	}
	if oi.LineTotal, err = parseDecimal(total); err != nil {
		return OrderItem{}, err
	}
	return oi, nil
}

type CreateOrderItemParams struct {
	OrderID   int64
	ItemID    int64
	ItemName  string
	Quantity  int32
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

const createOrderItem = `INSERT INTO order_items (order_id, item_id, item_name, quantity, unit_price, line_total)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)
RETURNING ` + orderItemColumns

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, createOrderItem, arg.OrderID, arg.ItemID, arg.ItemName, arg.Quantity,
		arg.UnitPrice.String(), arg.LineTotal.String()))
}

type UpdateOrderItemParams struct {
	ID        int64
	Quantity  int32
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

const updateOrderItem = `UPDATE order_items
SET quantity = $2, unit_price = $3::numeric, line_total = $4::numeric
WHERE id = $1
RETURNING ` + orderItemColumns

func (q *Queries) UpdateOrderItem(ctx context.Context, arg UpdateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, updateOrderItem, arg.ID, arg.Quantity, arg.UnitPrice.String(), arg.LineTotal.String()))
}

const listOrderItems = `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY id`

func (q *Queries) ListOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		oi, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, oi)
	}
	return items, rows.Err()
}

const listOrderItemsByOrders = `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`

func (q *Queries) ListOrderItemsByOrders(ctx context.Context, orderIDs []int64) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrders, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		oi, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, oi)
	}
	return items, rows.Err()
}
