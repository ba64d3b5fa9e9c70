package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"proviant/internal/models"
)

func (db *DB) CreateGroup(ctx context.Context, group *models.Group) error {
	query := `INSERT INTO groups (user_id, name, category, color, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, group.UserID, group.Name, group.Category, group.Color, now, now)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	group.ID = id
	group.CreatedAt = now
	group.UpdatedAt = now
	return nil
}

func (db *DB) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	query := `SELECT id, user_id, name, category, color, created_at, updated_at
              FROM groups WHERE id = ?`
	var group models.Group
	var color sql.NullString
	err := db.QueryRowContext(ctx, query, id).Scan(
		&group.ID, &group.UserID, &group.Name, &group.Category, &color,
		&group.CreatedAt, &group.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	group.Color = color.String
	return &group, nil
}

func (db *DB) ListGroups(ctx context.Context, userID int64) ([]models.Group, error) {
	query := `SELECT id, user_id, name, category, color, created_at, updated_at
              FROM groups WHERE user_id = ? ORDER BY name`
	return db.collectGroups(ctx, query, userID)
}

// ListGroupsByCategory returns the user's groups whose category tag
// matches exactly; used by the post-creation suggestion.
func (db *DB) ListGroupsByCategory(ctx context.Context, userID int64, category string) ([]models.Group, error) {
	query := `SELECT id, user_id, name, category, color, created_at, updated_at
              FROM groups WHERE user_id = ? AND category = ? ORDER BY name`
	return db.collectGroups(ctx, query, userID, category)
}

func (db *DB) DeleteGroup(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_groups WHERE group_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete group memberships: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrGroupNotFound
	}

	return tx.Commit()
}

// AddItemToGroup links an item to a group. Re-adding an existing member
// fails with ErrAlreadyInGroup so callers can tell the outcome apart.
func (db *DB) AddItemToGroup(ctx context.Context, itemID, groupID int64) error {
	query := `INSERT OR IGNORE INTO item_groups (item_id, group_id, created_at) VALUES (?, ?, ?)`
	result, err := db.ExecContext(ctx, query, itemID, groupID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to add item to group: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyInGroup
	}
	return nil
}

func (db *DB) RemoveItemFromGroup(ctx context.Context, itemID, groupID int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM item_groups WHERE item_id = ? AND group_id = ?`, itemID, groupID)
	if err != nil {
		return fmt.Errorf("failed to remove item from group: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (db *DB) ListGroupItems(ctx context.Context, groupID int64) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
              JOIN item_groups ON item_groups.item_id = items.id
              WHERE item_groups.group_id = ?
              ORDER BY (expires_at IS NULL), expires_at ASC, items.id ASC`
	rows, err := db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group items: %w", err)
	}
	defer rows.Close()

	return db.collectItems(rows)
}

func (db *DB) CountGroupItems(ctx context.Context, groupID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM item_groups WHERE group_id = ?`, groupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count group items: %w", err)
	}
	return count, nil
}

func (db *DB) collectGroups(ctx context.Context, query string, args ...interface{}) ([]models.Group, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var group models.Group
		var color sql.NullString
		err := rows.Scan(&group.ID, &group.UserID, &group.Name, &group.Category, &color, &group.CreatedAt, &group.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		group.Color = color.String
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}
