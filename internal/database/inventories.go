package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"proviant/internal/models"
)

func (db *DB) CreateInventory(ctx context.Context, inv *models.Inventory) error {
	tags, err := encodeTags(inv.Tags)
	if err != nil {
		return err
	}

	query := `INSERT INTO inventories (user_id, name, max_items, color, tags, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	maxItems := inv.MaxItems
	if maxItems <= 0 {
		maxItems = models.DefaultInventoryMaxItems
	}
	result, err := db.ExecContext(ctx, query, inv.UserID, inv.Name, maxItems, inv.Color, tags, now, now)
	if err != nil {
		return fmt.Errorf("failed to create inventory: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	inv.ID = id
	inv.MaxItems = maxItems
	inv.CreatedAt = now
	inv.UpdatedAt = now
	return nil
}

func (db *DB) GetInventory(ctx context.Context, id int64) (*models.Inventory, error) {
	query := `SELECT id, user_id, name, max_items, color, tags, created_at, updated_at
              FROM inventories WHERE id = ?`
	inv, err := db.scanInventory(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInventoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	return inv, nil
}

func (db *DB) ListInventories(ctx context.Context, userID int64) ([]models.Inventory, error) {
	query := `SELECT id, user_id, name, max_items, color, tags, created_at, updated_at
              FROM inventories WHERE user_id = ? ORDER BY id`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventories: %w", err)
	}
	defer rows.Close()

	var inventories []models.Inventory
	for rows.Next() {
		var inv models.Inventory
		var color, tags sql.NullString
		if err := rows.Scan(&inv.ID, &inv.UserID, &inv.Name, &inv.MaxItems, &color, &tags, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inventory: %w", err)
		}
		inv.Color = color.String
		inv.Tags, err = decodeTags(tags)
		if err != nil {
			return nil, err
		}
		inventories = append(inventories, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inventories: %w", err)
	}
	return inventories, nil
}

// EnsureDefaultInventory returns the user's first inventory, creating
// the default one on first data load.
func (db *DB) EnsureDefaultInventory(ctx context.Context, userID int64) (*models.Inventory, error) {
	inventories, err := db.ListInventories(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(inventories) > 0 {
		return &inventories[0], nil
	}

	inv := &models.Inventory{
		UserID:   userID,
		Name:     models.DefaultInventoryName,
		MaxItems: models.DefaultInventoryMaxItems,
	}
	if err := db.CreateInventory(ctx, inv); err != nil {
		return nil, err
	}
	db.logger.Info().Int64("user_id", userID).Int64("inventory_id", inv.ID).Msg("Создан инвентарь по умолчанию")
	return inv, nil
}

// CountItems reports how many items an inventory currently holds,
// used for the capacity check on create.
func (db *DB) CountItems(ctx context.Context, inventoryID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE inventory_id = ?`, inventoryID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

func (db *DB) scanInventory(row *sql.Row) (*models.Inventory, error) {
	var inv models.Inventory
	var color, tags sql.NullString
	err := row.Scan(&inv.ID, &inv.UserID, &inv.Name, &inv.MaxItems, &color, &tags, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	inv.Color = color.String
	inv.Tags, err = decodeTags(tags)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func encodeTags(tags []string) (interface{}, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(raw), nil
}

func decodeTags(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw.String), &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return tags, nil
}
