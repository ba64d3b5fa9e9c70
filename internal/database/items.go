package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"proviant/internal/models"
)

const itemColumns = `items.id, items.inventory_id, items.user_id, items.name,
                 items.category, items.quantity, items.unit, items.expires_at,
                 items.description, items.image_ref, items.version,
                 items.created_at, items.updated_at`

func (db *DB) CreateItem(ctx context.Context, item *models.Item) error {
	query := `INSERT INTO items (
				inventory_id, user_id, name, category, quantity, unit,
				expires_at, description, image_ref, version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		item.InventoryID,
		item.UserID,
		item.Name,
		item.Category,
		item.Quantity,
		item.Unit,
		dateArg(item.ExpiresAt),
		item.Description,
		item.ImageRef,
		1,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = id
	item.Version = 1
	item.CreatedAt = now
	item.UpdatedAt = now

	return nil
}

func (db *DB) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ?`
	item, err := db.scanItemRow(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListItems returns every item of the user, soonest expiration first,
// items without a date at the end.
func (db *DB) ListItems(ctx context.Context, userID int64) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE user_id = ?
              ORDER BY (expires_at IS NULL), expires_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	return db.collectItems(rows)
}

func (db *DB) ListInventoryItems(ctx context.Context, inventoryID int64) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE inventory_id = ?
              ORDER BY (expires_at IS NULL), expires_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, inventoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory items: %w", err)
	}
	defer rows.Close()

	return db.collectItems(rows)
}

// ListAllItems returns the whole table for full sheet rebuilds.
func (db *DB) ListAllItems(ctx context.Context) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
              ORDER BY inventory_id ASC, (expires_at IS NULL), expires_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list all items: %w", err)
	}
	defer rows.Close()

	return db.collectItems(rows)
}

func (db *DB) UpdateItem(ctx context.Context, item *models.Item) error {
	query := `UPDATE items SET name = ?, category = ?, quantity = ?, unit = ?,
	                 expires_at = ?, description = ?, image_ref = ?,
	                 version = version + 1, updated_at = ?
              WHERE id = ?`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		item.Name, item.Category, item.Quantity, item.Unit,
		dateArg(item.ExpiresAt), item.Description, item.ImageRef,
		now, item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrItemNotFound
	}
	item.Version++
	item.UpdatedAt = now
	return nil
}

// UpdateItemWithVersion applies an update only when the stored version
// matches, so a replayed merge decision cannot be applied twice.
func (db *DB) UpdateItemWithVersion(ctx context.Context, item *models.Item, fromVersion int64) error {
	query := `UPDATE items SET quantity = ?, description = ?, expires_at = ?,
	                 version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		item.Quantity, item.Description, dateArg(item.ExpiresAt),
		now, item.ID, fromVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update item with version: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	item.Version = fromVersion + 1
	item.UpdatedAt = now
	return nil
}

// DeleteItem removes the item together with its group memberships.
func (db *DB) DeleteItem(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_groups WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete item group links: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrItemNotFound
	}

	return tx.Commit()
}

func (db *DB) scanItemRow(row *sql.Row) (*models.Item, error) {
	var item models.Item
	var expires sql.NullString
	var description, imageRef sql.NullString
	err := row.Scan(
		&item.ID, &item.InventoryID, &item.UserID, &item.Name, &item.Category,
		&item.Quantity, &item.Unit, &expires, &description, &imageRef,
		&item.Version, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Description = description.String
	item.ImageRef = imageRef.String
	item.ExpiresAt, err = parseDate(expires)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (db *DB) collectItems(rows *sql.Rows) ([]models.Item, error) {
	var items []models.Item
	for rows.Next() {
		var item models.Item
		var expires sql.NullString
		var description, imageRef sql.NullString
		err := rows.Scan(
			&item.ID, &item.InventoryID, &item.UserID, &item.Name, &item.Category,
			&item.Quantity, &item.Unit, &expires, &description, &imageRef,
			&item.Version, &item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Description = description.String
		item.ImageRef = imageRef.String
		item.ExpiresAt, err = parseDate(expires)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}
