package service

import (
	"context"
	"strings"

	"proviant/internal/database"
	"proviant/internal/domain"
	"proviant/internal/models"

	"github.com/rs/zerolog"
)

// GroupService управляет пользовательскими группами позиций. Группа
// несёт одну категорию каталога, по ней работает подсказка после
// создания позиции.
type GroupService struct {
	repo    domain.Repository
	catalog models.Catalog
	logger  *zerolog.Logger
}

func NewGroupService(repo domain.Repository, catalog models.Catalog, logger *zerolog.Logger) *GroupService {
	if len(catalog.Categories) == 0 {
		catalog = models.DefaultCatalog()
	}
	return &GroupService{
		repo:    repo,
		catalog: catalog,
		logger:  logger,
	}
}

func (s *GroupService) Create(ctx context.Context, group *models.Group) error {
	group.Name = strings.TrimSpace(group.Name)
	if group.Name == "" {
		return database.ErrEmptyGroupName
	}
	canonical, ok := s.catalog.CanonicalCategory(group.Category)
	if !ok {
		return database.ErrInvalidCategory
	}
	group.Category = canonical

	if err := s.repo.CreateGroup(ctx, group); err != nil {
		return err
	}

	s.logger.Info().
		Int64("group_id", group.ID).
		Int64("user_id", group.UserID).
		Str("name", group.Name).
		Str("category", group.Category).
		Msg("Group created")

	return nil
}

func (s *GroupService) Get(ctx context.Context, id int64) (*models.Group, error) {
	return s.repo.GetGroup(ctx, id)
}

func (s *GroupService) List(ctx context.Context, userID int64) ([]models.Group, error) {
	return s.repo.ListGroups(ctx, userID)
}

// Delete удаляет группу вместе с членствами. Сами позиции остаются.
func (s *GroupService) Delete(ctx context.Context, userID, id int64) error {
	group, err := s.repo.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if group.UserID != userID {
		return database.ErrGroupNotFound
	}

	if err := s.repo.DeleteGroup(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Int64("group_id", id).Int64("user_id", userID).Msg("Group deleted")
	return nil
}

func (s *GroupService) Items(ctx context.Context, groupID int64) ([]models.Item, error) {
	return s.repo.ListGroupItems(ctx, groupID)
}

// AddItem добавляет позицию в группу. Повторное добавление отдаёт
// ErrAlreadyInGroup; принятая подсказка идёт через этот же вызов.
func (s *GroupService) AddItem(ctx context.Context, itemID, groupID int64) error {
	return s.repo.AddItemToGroup(ctx, itemID, groupID)
}

func (s *GroupService) RemoveItem(ctx context.Context, itemID, groupID int64) error {
	return s.repo.RemoveItemFromGroup(ctx, itemID, groupID)
}

// Suggest возвращает группы с категорией новой позиции. Совпадение
// точное: каталог закрытый, позиции и группы хранят каноническое
// написание.
func (s *GroupService) Suggest(ctx context.Context, userID int64, category string) ([]models.Group, error) {
	return s.repo.ListGroupsByCategory(ctx, userID, category)
}
