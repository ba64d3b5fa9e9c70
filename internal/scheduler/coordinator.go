package scheduler

import (
	"context"
	"fmt"
	"time"

	"proviant/internal/domain"
	"proviant/internal/events"
	"proviant/internal/metrics"
	"proviant/internal/models"

	"github.com/rs/zerolog"
)

// TaskExpiryRefresh идентификатор фоновой пересборки уведомлений.
const TaskExpiryRefresh = "expiry_refresh"

// RefreshCoordinator пересобирает уведомления без открытого клиента:
// берёт пользователя из долговечного слота и прогоняет полную
// пересборку. Слот не трогается ни на одном из путей отказа, поэтому
// неудачный запуск не теряет, для кого работать дальше.
type RefreshCoordinator struct {
	sessions domain.SessionManager
	users    domain.UserService
	alerts   domain.AlertService
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewRefreshCoordinator(sessions domain.SessionManager, users domain.UserService, alerts domain.AlertService, eventBus domain.EventPublisher, logger *zerolog.Logger) *RefreshCoordinator {
	return &RefreshCoordinator{
		sessions: sessions,
		users:    users,
		alerts:   alerts,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Run одна итерация пересборки для активного пользователя.
func (c *RefreshCoordinator) Run(ctx context.Context) (models.TaskResult, error) {
	started := time.Now()

	active, err := c.sessions.ActiveUser(ctx)
	if err != nil {
		return c.finish(models.TaskResultFailed, started, fmt.Errorf("failed to read active user slot: %w", err))
	}
	if active == nil {
		// Бот ещё не видел /start, пересобирать некому.
		return c.finish(models.TaskResultNoData, started, nil)
	}

	user, err := c.users.GetUserByID(ctx, active.UserID)
	if err != nil {
		return c.finish(models.TaskResultFailed, started, fmt.Errorf("failed to load active user: %w", err))
	}

	summary, err := c.alerts.RefreshAllForUser(ctx, user)
	if err != nil {
		return c.finish(models.TaskResultFailed, started, err)
	}

	c.publishSummary(user.ID, summary)

	c.logger.Info().
		Int64("user_id", user.ID).
		Int("scanned", summary.Scanned).
		Int("cancelled", summary.Cancelled).
		Int("scheduled", summary.Scheduled).
		Int("failures", summary.Failures).
		Msg("Background alert refresh finished")

	if summary.Scheduled > 0 {
		return c.finish(models.TaskResultNewData, started, nil)
	}
	return c.finish(models.TaskResultNoData, started, nil)
}

func (c *RefreshCoordinator) finish(result models.TaskResult, started time.Time, err error) (models.TaskResult, error) {
	metrics.ObserveRefresh(string(result), time.Since(started))
	return result, err
}

func (c *RefreshCoordinator) publishSummary(userID int64, summary *models.RefreshSummary) {
	if c.eventBus == nil {
		return
	}

	payload := events.RefreshEventPayload{
		UserID:    userID,
		Scanned:   summary.Scanned,
		Scheduled: summary.Scheduled,
		Cancelled: summary.Cancelled,
		Failures:  summary.Failures,
	}
	if err := c.eventBus.PublishJSON(events.EventRefreshCompleted, payload); err != nil {
		c.logger.Error().Err(err).Int64("user_id", userID).Msg("publish refresh event error")
	}
}
