package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/cafe-api/internal/db"
	"github.com/noah-isme/cafe-api/internal/obs"
)

type menuItem struct {
	Name        string
	Description string
	Image       string
	Price       string
}

var defaultMenu = []menuItem{
	{"Espresso", "A concentrated shot of our house blend.", "espresso.jpg", "2.50"},
	{"Latte", "Espresso with steamed milk and a thin layer of foam.", "latte.jpg", "3.50"},
	{"Cappuccino", "Espresso with equal parts steamed milk and foam.", "cappuccino.jpg", "4.00"},
}

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	if err := db.Migrate(dbURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, dbURL, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	queries := db.New(pool)
	for _, m := range defaultMenu {
		item, err := queries.UpsertItemByName(ctx, db.CreateItemParams{
			Name:        m.Name,
			Description: m.Description,
			Image:       m.Image,
			Price:       decimal.RequireFromString(m.Price),
		})
		if err != nil {
			logger.Fatal().Err(err).Str("item", m.Name).Msg("seed item")
		}
		logger.Info().Int64("id", item.ID).Str("item", item.Name).Str("price", item.Price.StringFixed(2)).Msg("item seeded")
	}
	logger.Info().Int("items", len(defaultMenu)).Msg("seeding completed")
}
