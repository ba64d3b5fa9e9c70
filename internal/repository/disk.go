package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"proviant/internal/models"

	"github.com/peterbourgon/diskv/v3"
)

// DiskSessionRepository файловое хранилище сессий. Служит резервом при
// недоступном Redis и долговременной копией слота активного пользователя.
type DiskSessionRepository struct {
	d          *diskv.Diskv
	rateLimits sync.Map
}

func NewDiskSessionRepository(basePath string) *DiskSessionRepository {
	return &DiskSessionRepository{
		d: diskv.New(diskv.Options{
			BasePath:     basePath,
			CacheSizeMax: 1024 * 1024, // 1MB
		}),
	}
}

func stateKey(userID int64) string {
	return fmt.Sprintf("state_%d", userID)
}

func (r *DiskSessionRepository) GetState(ctx context.Context, userID int64) (*models.UserState, error) {
	key := stateKey(userID)
	if !r.d.Has(key) {
		return nil, nil
	}
	data, err := r.d.Read(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read state from disk: %w", err)
	}
	var state models.UserState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

func (r *DiskSessionRepository) SetState(ctx context.Context, state *models.UserState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := r.d.Write(stateKey(state.UserID), data); err != nil {
		return fmt.Errorf("failed to write state to disk: %w", err)
	}
	return nil
}

func (r *DiskSessionRepository) ClearState(ctx context.Context, userID int64) error {
	key := stateKey(userID)
	if !r.d.Has(key) {
		return nil
	}
	if err := r.d.Erase(key); err != nil {
		return fmt.Errorf("failed to erase state from disk: %w", err)
	}
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// CheckRateLimit держит счетчики в памяти: лимит сообщений не обязан
// переживать рестарт.
func (r *DiskSessionRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(userID)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(userID, entry)
	return entry.count <= limit, nil
}

const activeUserFile = "active_user"

func (r *DiskSessionRepository) SetActiveUser(ctx context.Context, active *models.ActiveUser) error {
	data, err := json.Marshal(active)
	if err != nil {
		return fmt.Errorf("failed to marshal active user: %w", err)
	}
	if err := r.d.Write(activeUserFile, data); err != nil {
		return fmt.Errorf("failed to write active user to disk: %w", err)
	}
	return nil
}

func (r *DiskSessionRepository) GetActiveUser(ctx context.Context) (*models.ActiveUser, error) {
	if !r.d.Has(activeUserFile) {
		return nil, nil
	}
	data, err := r.d.Read(activeUserFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read active user from disk: %w", err)
	}
	var active models.ActiveUser
	if err := json.Unmarshal(data, &active); err != nil {
		return nil, fmt.Errorf("failed to unmarshal active user: %w", err)
	}
	return &active, nil
}

func (r *DiskSessionRepository) ClearActiveUser(ctx context.Context) error {
	if !r.d.Has(activeUserFile) {
		return nil
	}
	if err := r.d.Erase(activeUserFile); err != nil {
		return fmt.Errorf("failed to erase active user from disk: %w", err)
	}
	return nil
}
