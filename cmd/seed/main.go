package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xtrntr/auction/internal/config"
	"github.com/xtrntr/auction/internal/db"
	"github.com/xtrntr/auction/internal/logging"
	"github.com/xtrntr/auction/internal/models"
)

// bcrypt hash shared by all seeded users
const seedPasswordHash = "$2a$10$XLhV7TU4dIvHO1d9UKgoT.Kt1XCYIbLV4LkQqmXGtN6VBnsmgS.G."

// Seed the database with users, a few live auctions and a bulk of expired ACTIVE auctions
func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	logging.SetLevel(cfg.LogLevel)

	expired := 200_000
	if v, ok := os.LookupEnv("SEED_EXPIRED_AUCTIONS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logging.Fatal("Invalid SEED_EXPIRED_AUCTIONS", map[string]any{"value": v})
		}
		expired = n
	}

	database, err := db.NewDB(ctx, db.Options{PrimaryURL: cfg.DatabaseURL, MaxConns: cfg.MaxConns})
	if err != nil {
		logging.Fatal("Failed to connect to database", map[string]any{"error": err.Error()})
	}
	defer database.Close(ctx)

	if err := database.Migrate(ctx); err != nil {
		logging.Fatal("Failed to migrate database", map[string]any{"error": err.Error()})
	}

	pool := database.Router.Primary()
	userIDs := make(map[string]int64)
	for _, name := range []string{"seller1", "bidder1", "bidder2"} {
		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO users (username, password_hash) VALUES ($1, $2)
			ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
			RETURNING id`, name, seedPasswordHash).Scan(&id)
		if err != nil {
			logging.Fatal("Failed to create user", map[string]any{"username": name, "error": err.Error()})
		}
		userIDs[name] = id
	}
	seller := userIDs["seller1"]

	now := time.Now()
	// COPY encodes in binary, so prices go in as integers
	var price, increment int64 = 100, 1

	// a handful of auctions to bid on
	live := [][]any{
		{"Vintage watch", "Swiss, 1960s", int64(1000), int64(1000), int64(10), seller, string(models.StatusActive), now.Add(-time.Hour), now.Add(24 * time.Hour)},
		{"Road bike", "Carbon frame", int64(500), int64(500), int64(5), seller, string(models.StatusPending), now.Add(time.Hour), now.Add(48 * time.Hour)},
	}

	columns := []string{"title", "description", "starting_price", "current_price", "min_bid_increment", "seller_id", "status", "start_time", "end_time"}
	n, err := pool.CopyFrom(ctx, pgx.Identifier{"auctions"}, columns, pgx.CopyFromRows(live))
	if err != nil {
		logging.Fatal("Failed to seed live auctions", map[string]any{"error": err.Error()})
	}
	logging.Info("Seeded live auctions", map[string]any{"count": n})

	i := 0
	rows := pgx.CopyFromFunc(func() ([]any, error) {
		if i >= expired {
			return nil, nil
		}
		i++
		end := now.Add(-time.Duration(i) * time.Second)
		return []any{fmt.Sprintf("Expired lot %d", i), "", price, price, increment, seller,
			string(models.StatusActive), end.Add(-time.Hour), end}, nil
	})

	start := time.Now()
	n, err = pool.CopyFrom(ctx, pgx.Identifier{"auctions"}, columns, rows)
	if err != nil {
		logging.Fatal("Failed to seed expired auctions", map[string]any{"error": err.Error()})
	}

	logging.Info("Successfully seeded the database", map[string]any{
		"users":          len(userIDs),
		"expired_active": n,
		"elapsed":        time.Since(start).String(),
	})
}
