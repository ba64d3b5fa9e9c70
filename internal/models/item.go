package models

import "time"

type Item struct {
	ID          int64      `json:"id"`
	InventoryID int64      `json:"inventory_id"`
	UserID      int64      `json:"user_id"`
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Quantity    float64    `json:"quantity"`
	Unit        string     `json:"unit"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Description string     `json:"description,omitempty"`
	ImageRef    string     `json:"image_ref,omitempty"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ItemInput is the payload for creating a new item. InventoryID may be
// zero, in which case the user's default inventory is used.
type ItemInput struct {
	InventoryID int64      `json:"inventory_id,omitempty"`
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Quantity    float64    `json:"quantity"`
	Unit        string     `json:"unit"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Description string     `json:"description,omitempty"`
	ImageRef    string     `json:"image_ref,omitempty"`
}

// ItemPatch carries a partial update: nil pointers mean "keep the
// stored value".
type ItemPatch struct {
	Quantity    *float64   `json:"quantity,omitempty"`
	Description *string    `json:"description,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}
