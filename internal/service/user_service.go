package service

import (
	"context"

	"proviant/internal/domain"
	"proviant/internal/models"

	"github.com/rs/zerolog"
)

// UserService ведёт учёт пользователей бота и их активности.
type UserService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewUserService(repo domain.Repository, logger *zerolog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

// SaveUser создаёт пользователя или обновляет его профиль при каждом
// /start.
func (s *UserService) SaveUser(ctx context.Context, user *models.User) error {
	if err := s.repo.CreateOrUpdateUser(ctx, user); err != nil {
		return err
	}

	s.logger.Debug().
		Int64("telegram_id", user.TelegramID).
		Str("username", user.Username).
		Msg("User saved")

	return nil
}

func (s *UserService) UpdateUserActivity(ctx context.Context, telegramID int64) error {
	return s.repo.UpdateUserActivity(ctx, telegramID)
}

func (s *UserService) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.repo.GetUserByTelegramID(ctx, telegramID)
}

func (s *UserService) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *UserService) GetAllUsers(ctx context.Context) ([]models.User, error) {
	return s.repo.GetAllUsers(ctx)
}
