package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"proviant/internal/domain"
	"proviant/internal/expiry"
	"proviant/internal/metrics"
	"proviant/internal/models"

	"github.com/rs/zerolog"
)

// AlertService планирует уведомления о сроках годности поверх push-очереди.
type AlertService struct {
	scheduler    domain.AlertScheduler
	repo         domain.Repository
	horizonDays  int
	deliveryHour int
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewAlertService(scheduler domain.AlertScheduler, repo domain.Repository, horizonDays, deliveryHour int, logger *zerolog.Logger) *AlertService {
	if horizonDays < 0 {
		horizonDays = models.AlertHorizonDays
	}
	if deliveryHour < 0 || deliveryHour > 23 {
		deliveryHour = models.AlertDeliveryHour
	}
	return &AlertService{
		scheduler:    scheduler,
		repo:         repo,
		horizonDays:  horizonDays,
		deliveryHour: deliveryHour,
		logger:       logger,
		now:          time.Now,
	}
}

// ScheduleForItem ставит уведомление, если срок годности попадает в окно
// [0, horizon] дней от ref. Вне окна ничего не делает и не трогает уже
// запланированные уведомления: их судьбу решает ежедневная пересборка.
// Возвращает id уведомления, пустую строку если планировать нечего.
func (s *AlertService) ScheduleForItem(ctx context.Context, user *models.User, item *models.Item, ref time.Time) (string, error) {
	days, ok := expiry.ItemDaysUntil(item, ref)
	if !ok {
		return "", nil
	}
	if !expiry.WithinHorizon(days, s.horizonDays) {
		return "", nil
	}

	alert := &models.Alert{
		Kind:      models.AlertKindExpiry,
		UserID:    user.ID,
		ChatID:    user.TelegramID,
		ItemID:    item.ID,
		Title:     item.Name,
		Body:      alertBody(item, days),
		DaysLeft:  days,
		DeliverAt: s.deliverAt(ref),
	}

	id, err := s.scheduler.Schedule(ctx, alert)
	if err != nil {
		return "", fmt.Errorf("failed to schedule alert: %w", err)
	}

	metrics.IncAlertScheduled()
	return id, nil
}

// CancelForItem снимает уведомления движка сроков для одной позиции.
// Уведомления других видов не трогает.
func (s *AlertService) CancelForItem(ctx context.Context, userID, itemID int64) error {
	alerts, err := s.scheduler.ListScheduled(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list scheduled alerts: %w", err)
	}

	for _, alert := range alerts {
		if alert.ItemID != itemID || alert.Kind != models.AlertKindExpiry {
			continue
		}
		if err := s.scheduler.Cancel(ctx, alert.ID); err != nil {
			return fmt.Errorf("failed to cancel alert %s: %w", alert.ID, err)
		}
	}

	return nil
}

// RefreshAllForUser пересобирает уведомления пользователя с нуля: снимает
// все уведомления о сроках и планирует заново по текущему состоянию
// инвентаря. Отказ отмены валит пересборку целиком, отказ планирования
// одной позиции только считается и логируется.
func (s *AlertService) RefreshAllForUser(ctx context.Context, user *models.User) (*models.RefreshSummary, error) {
	ref := s.now()
	summary := &models.RefreshSummary{}

	existing, err := s.scheduler.ListScheduled(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled alerts: %w", err)
	}
	for _, alert := range existing {
		if alert.Kind != models.AlertKindExpiry {
			continue
		}
		if err := s.scheduler.Cancel(ctx, alert.ID); err != nil {
			return nil, fmt.Errorf("failed to cancel alert %s: %w", alert.ID, err)
		}
		summary.Cancelled++
	}

	items, err := s.repo.ListItems(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	summary.Scanned = len(items)

	for i := range items {
		item := &items[i]
		days, ok := expiry.ItemDaysUntil(item, ref)
		if !ok {
			continue
		}

		switch expiry.Classify(days, s.horizonDays) {
		case expiry.UrgencyExpired:
			// Просроченное не пушим, оно попадает в сводку и в /expiring.
			summary.Expired++
			continue
		case expiry.UrgencyToday:
			summary.Today++
		case expiry.UrgencyTomorrow:
			summary.Tomorrow++
		case expiry.UrgencySoon:
			summary.Soon++
		default:
			continue
		}

		if _, err := s.ScheduleForItem(ctx, user, item, ref); err != nil {
			summary.Failures++
			s.logger.Error().Err(err).Int64("item_id", item.ID).Msg("Failed to schedule alert during refresh")
			continue
		}
		summary.Scheduled++
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Int("scanned", summary.Scanned).
		Int("cancelled", summary.Cancelled).
		Int("scheduled", summary.Scheduled).
		Int("expired", summary.Expired).
		Int("failures", summary.Failures).
		Msg("Alert refresh completed")

	return summary, nil
}

// CancelAllForUser снимает все уведомления пользователя, любых видов.
// Используется на /stop.
func (s *AlertService) CancelAllForUser(ctx context.Context, userID int64) (int, error) {
	cancelled, err := s.scheduler.CancelAllForUser(ctx, userID)
	if err != nil {
		return cancelled, fmt.Errorf("failed to cancel user alerts: %w", err)
	}
	return cancelled, nil
}

// deliverAt возвращает сегодняшний локальный час доставки, либо ref,
// если этот час уже прошёл.
func (s *AlertService) deliverAt(ref time.Time) time.Time {
	at := time.Date(ref.Year(), ref.Month(), ref.Day(), s.deliveryHour, 0, 0, 0, ref.Location())
	if at.Before(ref) {
		return ref
	}
	return at
}

func alertBody(item *models.Item, days int) string {
	label := item.Name
	if item.Quantity > 0 && item.Unit != "" {
		label = item.Name + " (" + formatAmount(item.Quantity) + " " + item.Unit + ")"
	}

	switch {
	case days <= 0:
		return label + ": срок годности истекает сегодня"
	case days == 1:
		return label + ": срок годности истекает завтра"
	default:
		return fmt.Sprintf("%s: срок годности истекает через %d %s", label, days, pluralDays(days))
	}
}

// formatAmount печатает количество без хвостовых нулей: 1, 1.5, 0.25.
func formatAmount(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func pluralDays(n int) string {
	if n < 0 {
		n = -n
	}
	n = n % 100
	if n >= 11 && n <= 14 {
		return "дней"
	}
	switch n % 10 {
	case 1:
		return "день"
	case 2, 3, 4:
		return "дня"
	default:
		return "дней"
	}
}
