package repository

import (
	"context"
	"sync/atomic"
	"time"

	"proviant/internal/domain"
	"proviant/internal/models"

	"github.com/rs/zerolog"
)

type FailoverSessionRepository struct {
	primary   domain.SessionRepository
	fallback  domain.SessionRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSessionRepository(primary, fallback domain.SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSessionRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary session repository failed, falling back to disk")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverSessionRepository) sinceLastCheck() time.Duration {
	return time.Since(time.Unix(0, r.lastCheck.Load()))
}

func (r *FailoverSessionRepository) GetState(ctx context.Context, userID int64) (*models.UserState, error) {
	if !r.isDown.Load() {
		state, err := r.primary.GetState(ctx, userID)
		if err == nil {
			return state, nil
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && r.sinceLastCheck() > time.Minute {
		state, err := r.primary.GetState(ctx, userID)
		if err == nil {
			r.isDown.Store(false)
			return state, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.GetState(ctx, userID)
}

func (r *FailoverSessionRepository) SetState(ctx context.Context, state *models.UserState) error {
	if !r.isDown.Load() {
		err := r.primary.SetState(ctx, state)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetState(ctx, state)
}

func (r *FailoverSessionRepository) ClearState(ctx context.Context, userID int64) error {
	if !r.isDown.Load() {
		err := r.primary.ClearState(ctx, userID)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.ClearState(ctx, userID)
}

func (r *FailoverSessionRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}

// SetActiveUser пишет слот в оба хранилища: значение обязано пережить и
// рестарт процесса, и недоступность Redis.
func (r *FailoverSessionRepository) SetActiveUser(ctx context.Context, active *models.ActiveUser) error {
	primaryErr := r.primary.SetActiveUser(ctx, active)
	if primaryErr != nil {
		r.logger.Error().Err(primaryErr).Msg("Primary session repository failed to store active user")
	}
	fallbackErr := r.fallback.SetActiveUser(ctx, active)
	if fallbackErr != nil {
		r.logger.Error().Err(fallbackErr).Msg("Fallback session repository failed to store active user")
	}
	if primaryErr != nil && fallbackErr != nil {
		return primaryErr
	}
	return nil
}

// GetActiveUser предпочитает Redis, но пустой ответ не авторитетен:
// после рестарта Redis слот остается только на диске.
func (r *FailoverSessionRepository) GetActiveUser(ctx context.Context) (*models.ActiveUser, error) {
	if !r.isDown.Load() {
		active, err := r.primary.GetActiveUser(ctx)
		if err == nil && active != nil {
			return active, nil
		}
		if err != nil {
			r.markDown(err)
		}
	}

	return r.fallback.GetActiveUser(ctx)
}

func (r *FailoverSessionRepository) ClearActiveUser(ctx context.Context) error {
	primaryErr := r.primary.ClearActiveUser(ctx)
	if primaryErr != nil {
		r.logger.Error().Err(primaryErr).Msg("Primary session repository failed to clear active user")
	}
	fallbackErr := r.fallback.ClearActiveUser(ctx)
	if fallbackErr != nil {
		r.logger.Error().Err(fallbackErr).Msg("Fallback session repository failed to clear active user")
	}
	if primaryErr != nil && fallbackErr != nil {
		return primaryErr
	}
	return nil
}
