package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"proviant/internal/database"
	"proviant/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// StockConfig формат файла первоначальной загрузки запасов.
type StockConfig struct {
	Items []StockItem `yaml:"items"`
}

type StockItem struct {
	Name      string  `yaml:"name"`
	Category  string  `yaml:"category"`
	Quantity  float64 `yaml:"quantity"`
	Unit      string  `yaml:"unit"`
	ExpiresAt string  `yaml:"expires_at"` // ДД.ММ.ГГГГ, пусто = без срока
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		stockPath  = flag.String("stock", "configs/stock.yaml", "path to stock.yaml")
		dbPath     = flag.String("db", "./data/proviant.db", "path to sqlite db")
		telegramID = flag.Int64("telegram-id", 0, "telegram id of the inventory owner")
	)
	flag.Parse()

	if *telegramID == 0 {
		return fmt.Errorf("telegram-id is required")
	}

	data, err := os.ReadFile(*stockPath)
	if err != nil {
		return fmt.Errorf("read stock: %w", err)
	}
	var cfg StockConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse stock: %w", err)
	}
	if len(cfg.Items) == 0 {
		return fmt.Errorf("no items in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Владелец должен существовать: бот создаёт его на /start
	user, err := db.GetUserByTelegramID(ctx, *telegramID)
	if err != nil {
		return fmt.Errorf("lookup user %d: %w", *telegramID, err)
	}

	inventory, err := db.EnsureDefaultInventory(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("ensure inventory: %w", err)
	}

	existing, err := db.ListItems(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	byName := make(map[string]models.Item, len(existing))
	for _, it := range existing {
		byName[strings.ToLower(it.Name)] = it
	}

	created := 0
	updated := 0
	for _, in := range cfg.Items {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			continue
		}

		var expiresAt *time.Time
		if in.ExpiresAt != "" {
			date, err := time.Parse("02.01.2006", in.ExpiresAt)
			if err != nil {
				return fmt.Errorf("parse expiry for %s: %w", name, err)
			}
			expiresAt = &date
		}

		if prev, ok := byName[strings.ToLower(name)]; ok {
			prev.Category = in.Category
			prev.Quantity = in.Quantity
			prev.Unit = in.Unit
			prev.ExpiresAt = expiresAt
			if err = db.UpdateItem(ctx, &prev); err != nil {
				return fmt.Errorf("update %s: %w", name, err)
			}
			updated++
			continue
		}

		item := models.Item{
			InventoryID: inventory.ID,
			UserID:      user.ID,
			Name:        name,
			Category:    in.Category,
			Quantity:    in.Quantity,
			Unit:        in.Unit,
			ExpiresAt:   expiresAt,
		}
		if err = db.CreateItem(ctx, &item); err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		created++
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
