package service

import (
	"context"
	"time"

	"proviant/internal/domain"
	"proviant/internal/models"

	"github.com/rs/zerolog"
)

// SessionService держит состояние диалога бота и слот активного
// пользователя поверх сессионного хранилища (Redis с дисковым
// фолбэком).
type SessionService struct {
	sessions domain.SessionRepository
	logger   *zerolog.Logger
}

func NewSessionService(sessions domain.SessionRepository, logger *zerolog.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		logger:   logger,
	}
}

func (s *SessionService) GetUserState(ctx context.Context, userID int64) (*models.UserState, error) {
	state, err := s.sessions.GetState(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to get user state")
		return nil, err
	}
	return state, nil
}

func (s *SessionService) SetUserState(ctx context.Context, userID int64, step string, data map[string]interface{}) error {
	state := &models.UserState{
		UserID:      userID,
		CurrentStep: step,
		TempData:    data,
	}
	return s.sessions.SetState(ctx, state)
}

// UpdateUserStateData дописывает одно значение в черновик диалога, не
// трогая текущий шаг.
func (s *SessionService) UpdateUserStateData(ctx context.Context, userID int64, key string, value interface{}) error {
	state, err := s.sessions.GetState(ctx, userID)
	if err != nil {
		return err
	}
	if state == nil {
		state = &models.UserState{
			UserID:   userID,
			TempData: make(map[string]interface{}),
		}
	}
	if state.TempData == nil {
		state.TempData = make(map[string]interface{})
	}
	state.TempData[key] = value

	return s.sessions.SetState(ctx, state)
}

func (s *SessionService) ClearUserState(ctx context.Context, userID int64) error {
	return s.sessions.ClearState(ctx, userID)
}

func (s *SessionService) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	return s.sessions.CheckRateLimit(ctx, userID, limit, window)
}

// SetActiveUser записывает, для кого фоновая пересборка готовит
// уведомления. Слот один: трекер персональный.
func (s *SessionService) SetActiveUser(ctx context.Context, active *models.ActiveUser) error {
	if err := s.sessions.SetActiveUser(ctx, active); err != nil {
		return err
	}

	s.logger.Info().
		Int64("user_id", active.UserID).
		Int64("chat_id", active.ChatID).
		Msg("Active user slot set")

	return nil
}

func (s *SessionService) ActiveUser(ctx context.Context) (*models.ActiveUser, error) {
	return s.sessions.GetActiveUser(ctx)
}

func (s *SessionService) ClearActiveUser(ctx context.Context) error {
	return s.sessions.ClearActiveUser(ctx)
}
