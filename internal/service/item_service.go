package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"proviant/internal/database"
	"proviant/internal/domain"
	"proviant/internal/events"
	"proviant/internal/expiry"
	"proviant/internal/metrics"
	"proviant/internal/models"
	"proviant/internal/worker"

	"github.com/rs/zerolog"
)

// ItemService владеет жизненным циклом позиций: двухфазное создание с
// проверкой дубликата, слияние, правки, удаление и массовые операции.
type ItemService struct {
	repo       domain.Repository
	catalog    models.Catalog
	alerts     domain.AlertService
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewItemService(repo domain.Repository, catalog models.Catalog, alerts domain.AlertService, eventBus domain.EventPublisher, syncWorker domain.SyncWorker, logger *zerolog.Logger) *ItemService {
	if len(catalog.Categories) == 0 {
		catalog = models.DefaultCatalog()
	}
	return &ItemService{
		repo:       repo,
		catalog:    catalog,
		alerts:     alerts,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		logger:     logger,
		now:        time.Now,
	}
}

// validateInput отсекает некорректный ввод до обращения к базе и
// приводит категорию к каноническому написанию каталога.
func (s *ItemService) validateInput(input *models.ItemInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return database.ErrEmptyName
	}
	if input.Quantity <= 0 {
		return database.ErrInvalidQuantity
	}
	canonical, ok := s.catalog.CanonicalCategory(input.Category)
	if !ok {
		return database.ErrInvalidCategory
	}
	input.Category = canonical
	input.Unit = strings.TrimSpace(input.Unit)
	if !s.catalog.ValidUnit(canonical, input.Unit) {
		return database.ErrUnitNotAllowed
	}
	return nil
}

// FindDuplicate проверяет коллизию имени, не создавая ничего. Нулевой
// InventoryID означает инвентарь по умолчанию.
func (s *ItemService) FindDuplicate(ctx context.Context, userID int64, input models.ItemInput) (*models.DuplicateReport, error) {
	if err := s.validateInput(&input); err != nil {
		return nil, err
	}
	if err := s.resolveInventory(ctx, userID, &input); err != nil {
		return nil, err
	}
	return s.findDuplicate(ctx, input)
}

// Create выполняет двухфазное создание. Без решения найденный дубликат
// приостанавливает поток: возвращается OutcomeDuplicate с отчётом, и
// создание продолжится только через ResolveDuplicate. Решение, заданное
// сразу, разруливает коллизию этим же вызовом, что позволяет
// использовать движок без диалога, например при импорте.
func (s *ItemService) Create(ctx context.Context, user *models.User, input models.ItemInput, decision models.CreateDecision) (*models.CreateResult, error) {
	if err := s.validateInput(&input); err != nil {
		return nil, err
	}
	if err := s.resolveInventory(ctx, user.ID, &input); err != nil {
		return nil, err
	}

	report, err := s.findDuplicate(ctx, input)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return s.createNew(ctx, user, input)
	}

	switch decision {
	case models.DecisionNone:
		metrics.IncItemCreated(string(models.OutcomeDuplicate))
		return &models.CreateResult{Outcome: models.OutcomeDuplicate, Duplicate: report}, nil
	case models.DecisionMerge:
		return s.mergeInto(ctx, user, &report.Existing, report.Existing.Version, input)
	case models.DecisionCreateAnyway:
		return s.createNew(ctx, user, input)
	case models.DecisionCancel:
		metrics.IncItemCreated(string(models.OutcomeCancelled))
		return &models.CreateResult{Outcome: models.OutcomeCancelled, Duplicate: report}, nil
	default:
		return nil, fmt.Errorf("unknown create decision: %q", decision)
	}
}

// ResolveDuplicate завершает приостановленное создание решением
// пользователя. Слияние привязано к версии позиции из отчёта, поэтому
// повторная доставка того же решения упрётся в ErrConcurrentModification
// и не применится дважды.
func (s *ItemService) ResolveDuplicate(ctx context.Context, user *models.User, report *models.DuplicateReport, decision models.CreateDecision) (*models.CreateResult, error) {
	if report == nil {
		return nil, errors.New("duplicate report is nil")
	}

	switch decision {
	case models.DecisionMerge:
		if !report.CanMerge {
			return nil, fmt.Errorf("%w: %s", database.ErrMergeNotAllowed, report.Reason)
		}
		return s.mergeInto(ctx, user, &report.Existing, report.Existing.Version, report.Incoming)
	case models.DecisionCreateAnyway:
		input := report.Incoming
		if err := s.validateInput(&input); err != nil {
			return nil, err
		}
		if err := s.resolveInventory(ctx, user.ID, &input); err != nil {
			return nil, err
		}
		return s.createNew(ctx, user, input)
	case models.DecisionCancel:
		metrics.IncItemCreated(string(models.OutcomeCancelled))
		return &models.CreateResult{Outcome: models.OutcomeCancelled, Duplicate: report}, nil
	default:
		return nil, fmt.Errorf("unknown create decision: %q", decision)
	}
}

func (s *ItemService) Get(ctx context.Context, id int64) (*models.Item, error) {
	return s.repo.GetItem(ctx, id)
}

func (s *ItemService) List(ctx context.Context, userID int64) ([]models.Item, error) {
	return s.repo.ListItems(ctx, userID)
}

// ListExpiring возвращает позиции со сроком годности не дальше horizon
// дней от сегодня, включая уже просроченные.
func (s *ItemService) ListExpiring(ctx context.Context, userID int64, horizon int) ([]models.Item, error) {
	items, err := s.repo.ListItems(ctx, userID)
	if err != nil {
		return nil, err
	}

	ref := s.now()
	expiring := make([]models.Item, 0, len(items))
	for i := range items {
		days, ok := expiry.ItemDaysUntil(&items[i], ref)
		if !ok {
			continue
		}
		if days <= horizon {
			expiring = append(expiring, items[i])
		}
	}
	return expiring, nil
}

// Update применяет правку и пересобирает уведомления целиком: правка
// может увести срок годности из окна, точечное планирование такого не
// чинит.
func (s *ItemService) Update(ctx context.Context, user *models.User, item *models.Item) error {
	input := models.ItemInput{
		InventoryID: item.InventoryID,
		Name:        item.Name,
		Category:    item.Category,
		Quantity:    item.Quantity,
		Unit:        item.Unit,
		ExpiresAt:   item.ExpiresAt,
		Description: item.Description,
		ImageRef:    item.ImageRef,
	}
	if err := s.validateInput(&input); err != nil {
		return err
	}
	item.Name = input.Name
	item.Category = input.Category
	item.Unit = input.Unit

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return err
	}

	s.publishEvent(events.EventItemUpdated, item)
	s.enqueueSync(ctx, worker.TaskUpsert, item.ID, item)
	s.refreshAlerts(ctx, user)

	return nil
}

func (s *ItemService) Delete(ctx context.Context, userID, id int64) error {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if item.UserID != userID {
		return database.ErrItemNotFound
	}

	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}

	s.cancelAlert(ctx, userID, id)
	s.publishEvent(events.EventItemDeleted, item)
	s.enqueueSync(ctx, worker.TaskDelete, id, nil)

	return nil
}

// BulkAddToGroup добавляет выбранные позиции в группу. "Уже в группе"
// не прерывает пакет и попадает в итог отдельным числом; любая другая
// ошибка прерывает пакет, уже добавленное не откатывается.
func (s *ItemService) BulkAddToGroup(ctx context.Context, userID int64, itemIDs []int64, groupID int64) (*models.BulkGroupResult, error) {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.UserID != userID {
		return nil, database.ErrGroupNotFound
	}

	result := &models.BulkGroupResult{}
	for _, itemID := range itemIDs {
		item, err := s.repo.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if item.UserID != userID {
			return nil, database.ErrItemNotFound
		}

		err = s.repo.AddItemToGroup(ctx, itemID, groupID)
		switch {
		case errors.Is(err, database.ErrAlreadyInGroup):
			result.AlreadyPresent++
		case err != nil:
			return nil, fmt.Errorf("failed to add item %d to group: %w", itemID, err)
		default:
			result.Added++
		}
	}

	switch {
	case result.Added == 0:
		result.Outcome = models.BulkAllPresent
	case result.AlreadyPresent == 0:
		result.Outcome = models.BulkAllAdded
	default:
		result.Outcome = models.BulkPartiallyAdded
	}

	s.logger.Info().
		Int64("group_id", groupID).
		Int("added", result.Added).
		Int("already_present", result.AlreadyPresent).
		Msg("Bulk add to group finished")

	return result, nil
}

// BulkDelete удаляет позиции по одной, без отката уже удалённого.
// Возвращает число удалённых; ошибки сводятся в одну агрегированную.
func (s *ItemService) BulkDelete(ctx context.Context, userID int64, itemIDs []int64) (int, error) {
	deleted := 0
	failed := 0
	var firstErr error

	for _, itemID := range itemIDs {
		if err := s.Delete(ctx, userID, itemID); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Error().Err(err).Int64("item_id", itemID).Msg("Bulk delete: item failed")
			continue
		}
		deleted++
	}

	if failed > 0 {
		return deleted, fmt.Errorf("failed to delete %d of %d items: %w", failed, len(itemIDs), firstErr)
	}
	return deleted, nil
}

func (s *ItemService) resolveInventory(ctx context.Context, userID int64, input *models.ItemInput) error {
	if input.InventoryID != 0 {
		return nil
	}
	inv, err := s.repo.EnsureDefaultInventory(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve default inventory: %w", err)
	}
	input.InventoryID = inv.ID
	return nil
}

func (s *ItemService) findDuplicate(ctx context.Context, input models.ItemInput) (*models.DuplicateReport, error) {
	items, err := s.repo.ListInventoryItems(ctx, input.InventoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory items: %w", err)
	}

	existing := findDuplicateIn(input.Name, input.InventoryID, items)
	if existing == nil {
		return nil, nil
	}

	ok, reason := canMerge(existing, input)
	return &models.DuplicateReport{
		Existing: *existing,
		Incoming: input,
		CanMerge: ok,
		Reason:   reason,
	}, nil
}

func (s *ItemService) createNew(ctx context.Context, user *models.User, input models.ItemInput) (*models.CreateResult, error) {
	if err := s.checkCapacity(ctx, input.InventoryID); err != nil {
		return nil, err
	}

	item := &models.Item{
		InventoryID: input.InventoryID,
		UserID:      user.ID,
		Name:        input.Name,
		Category:    input.Category,
		Quantity:    input.Quantity,
		Unit:        input.Unit,
		ExpiresAt:   input.ExpiresAt,
		Description: input.Description,
		ImageRef:    input.ImageRef,
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventItemCreated, item)
	s.enqueueSync(ctx, worker.TaskUpsert, item.ID, item)
	s.scheduleAlert(ctx, user, item)
	metrics.IncItemCreated(string(models.OutcomeCreated))

	s.logger.Info().
		Int64("item_id", item.ID).
		Int64("user_id", user.ID).
		Str("name", item.Name).
		Msg("Item created")

	return &models.CreateResult{
		Outcome:     models.OutcomeCreated,
		Item:        item,
		Suggestions: s.suggestGroups(ctx, user.ID, item.Category),
	}, nil
}

// mergeInto сливает входящую позицию в существующую одним обновлением,
// привязанным к fromVersion. Слияние двигает срок годности только на
// более ранний, поэтому точечного перепланирования уведомления
// достаточно.
func (s *ItemService) mergeInto(ctx context.Context, user *models.User, existing *models.Item, fromVersion int64, input models.ItemInput) (*models.CreateResult, error) {
	if ok, reason := canMerge(existing, input); !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrMergeNotAllowed, reason)
	}

	merged := applyPatch(existing, mergePatch(existing, input))
	if err := s.repo.UpdateItemWithVersion(ctx, &merged, fromVersion); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventItemMerged, &merged)
	s.enqueueSync(ctx, worker.TaskUpsert, merged.ID, &merged)
	s.scheduleAlert(ctx, user, &merged)
	metrics.IncItemCreated(string(models.OutcomeMerged))

	s.logger.Info().
		Int64("item_id", merged.ID).
		Int64("user_id", user.ID).
		Float64("quantity", merged.Quantity).
		Msg("Duplicate merged")

	return &models.CreateResult{Outcome: models.OutcomeMerged, Item: &merged}, nil
}

func (s *ItemService) checkCapacity(ctx context.Context, inventoryID int64) error {
	inv, err := s.repo.GetInventory(ctx, inventoryID)
	if err != nil {
		return err
	}
	if inv.MaxItems <= 0 {
		return nil
	}

	count, err := s.repo.CountItems(ctx, inventoryID)
	if err != nil {
		return fmt.Errorf("failed to count inventory items: %w", err)
	}
	if int64(count) >= inv.MaxItems {
		return database.ErrInventoryFull
	}
	return nil
}

// suggestGroups подбирает группы с категорией новой позиции. Отказ не
// мешает созданию: подсказка вспомогательная и создание уже завершено.
func (s *ItemService) suggestGroups(ctx context.Context, userID int64, category string) []models.Group {
	groups, err := s.repo.ListGroupsByCategory(ctx, userID, category)
	if err != nil {
		s.logger.Error().Err(err).Str("category", category).Msg("Failed to load group suggestions")
		return nil
	}
	return groups
}

func (s *ItemService) publishEvent(eventType string, item *models.Item) {
	if s.eventBus == nil {
		return
	}

	payload := events.ItemEventPayload{
		ItemID:      item.ID,
		InventoryID: item.InventoryID,
		UserID:      item.UserID,
		Name:        item.Name,
		Category:    item.Category,
		Quantity:    item.Quantity,
		Unit:        item.Unit,
		ExpiresAt:   item.ExpiresAt,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("item_id", item.ID).Msg("publish event error")
	}
}

func (s *ItemService) enqueueSync(ctx context.Context, taskType string, itemID int64, item *models.Item) {
	if s.syncWorker == nil {
		return
	}
	if err := s.syncWorker.EnqueueTask(ctx, taskType, itemID, item); err != nil {
		s.logger.Error().Err(err).Int64("item_id", itemID).Str("task", taskType).Msg("sheets enqueue error")
	}
}

func (s *ItemService) scheduleAlert(ctx context.Context, user *models.User, item *models.Item) {
	if s.alerts == nil {
		return
	}
	if _, err := s.alerts.ScheduleForItem(ctx, user, item, s.now()); err != nil {
		s.logger.Error().Err(err).Int64("item_id", item.ID).Msg("Failed to schedule expiry alert")
	}
}

func (s *ItemService) cancelAlert(ctx context.Context, userID, itemID int64) {
	if s.alerts == nil {
		return
	}
	if err := s.alerts.CancelForItem(ctx, userID, itemID); err != nil {
		s.logger.Error().Err(err).Int64("item_id", itemID).Msg("Failed to cancel expiry alert")
	}
}

// refreshAlerts пересобирает уведомления после правки. Отказ не валит
// операцию: ближайшая фоновая пересборка исправит расхождение.
func (s *ItemService) refreshAlerts(ctx context.Context, user *models.User) {
	if s.alerts == nil {
		return
	}
	if _, err := s.alerts.RefreshAllForUser(ctx, user); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to refresh alerts after item change")
	}
}
