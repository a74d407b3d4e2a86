package db

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID          int64
	Name        string
	Description string
	Image       string
	Price       decimal.Decimal
	CreatedAt   time.Time
}

type ItemPrice struct {
	ID    int64
	Price decimal.Decimal
}

type BestSellerRow struct {
	Item
	QuantitySold int64
}

type User struct {
	ID          int64
	AuthSubject string
	Email       string
	Name        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Order struct {
	ID           int64
	UserID       int64
	Address      string
	PostalCode   string
	DistanceKm   float64
	ItemSubtotal decimal.Decimal
	DeliveryFee  decimal.Decimal
	Total        decimal.Decimal
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type OrderItem struct {
	ID        int64
	OrderID   int64
	ItemID    int64
	ItemName  string
	Quantity  int32
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}
