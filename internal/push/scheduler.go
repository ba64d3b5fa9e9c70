package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"proviant/internal/models"
)

// Раскладка ключей в Redis. Тело уведомления живёт отдельно от очереди,
// чтобы диспетчер никогда не достал id без тела.
const (
	alertKeyPrefix = "push:alert:"     // JSON уведомления
	slotKeyPrefix  = "push:slot:"      // слот user/item/kind -> id активного уведомления
	userKeyPrefix  = "push:user:"      // SET всех id пользователя
	queueKey       = "push:queue"      // ZSET, score = unix-время доставки
	deadLetterKey  = "push:deadletter" // LIST исчерпавших попытки
)

// RedisAlertScheduler хранит запланированные уведомления в Redis.
// Повторное планирование для той же тройки user/item/kind замещает
// предыдущее уведомление, а не добавляет второе.
type RedisAlertScheduler struct {
	client *redis.Client
	logger *zerolog.Logger
}

func NewRedisAlertScheduler(client *redis.Client, logger *zerolog.Logger) *RedisAlertScheduler {
	return &RedisAlertScheduler{client: client, logger: logger}
}

func alertKey(id string) string {
	return alertKeyPrefix + id
}

func slotKey(userID, itemID int64, kind string) string {
	return fmt.Sprintf("%s%d:%d:%s", slotKeyPrefix, userID, itemID, kind)
}

func userKey(userID int64) string {
	return fmt.Sprintf("%s%d", userKeyPrefix, userID)
}

// Schedule ставит уведомление в очередь и возвращает его id.
// Старое уведомление в том же слоте снимается до записи нового.
func (s *RedisAlertScheduler) Schedule(ctx context.Context, alert *models.Alert) (string, error) {
	if alert == nil {
		return "", errors.New("alert is nil")
	}
	if alert.UserID == 0 || alert.ItemID == 0 {
		return "", errors.New("alert requires user and item")
	}
	if alert.Kind == "" {
		alert.Kind = models.AlertKindExpiry
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	slot := slotKey(alert.UserID, alert.ItemID, alert.Kind)

	prevID, err := s.client.Get(ctx, slot).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("failed to read alert slot: %w", err)
	}
	if prevID != "" && prevID != alert.ID {
		if err := s.remove(ctx, prevID, alert.UserID); err != nil {
			return "", fmt.Errorf("failed to replace alert %s: %w", prevID, err)
		}
	}

	data, err := json.Marshal(alert)
	if err != nil {
		return "", fmt.Errorf("failed to marshal alert: %w", err)
	}

	// Тело пишем до очереди: диспетчер может сработать сразу после ZAdd.
	if err := s.client.Set(ctx, alertKey(alert.ID), data, 0).Err(); err != nil {
		return "", fmt.Errorf("failed to store alert: %w", err)
	}
	if err := s.client.ZAdd(ctx, queueKey, redis.Z{
		Score:  float64(alert.DeliverAt.Unix()),
		Member: alert.ID,
	}).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue alert: %w", err)
	}
	if err := s.client.Set(ctx, slot, alert.ID, 0).Err(); err != nil {
		return "", fmt.Errorf("failed to set alert slot: %w", err)
	}
	if err := s.client.SAdd(ctx, userKey(alert.UserID), alert.ID).Err(); err != nil {
		return "", fmt.Errorf("failed to index alert by user: %w", err)
	}

	s.logger.Debug().
		Str("alert_id", alert.ID).
		Int64("user_id", alert.UserID).
		Int64("item_id", alert.ItemID).
		Time("deliver_at", alert.DeliverAt).
		Msg("Alert scheduled")

	return alert.ID, nil
}

// Cancel снимает уведомление по id. Отмена уже доставленного или
// несуществующего уведомления не ошибка.
func (s *RedisAlertScheduler) Cancel(ctx context.Context, alertID string) error {
	alert, err := loadAlert(ctx, s.client, alertID)
	if err != nil {
		return err
	}
	if alert == nil {
		return nil
	}

	if err := s.remove(ctx, alertID, alert.UserID); err != nil {
		return err
	}

	return clearSlot(ctx, s.client, alert)
}

// CancelAllForUser снимает все уведомления пользователя и возвращает,
// сколько реально было снято.
func (s *RedisAlertScheduler) CancelAllForUser(ctx context.Context, userID int64) (int, error) {
	ids, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list user alerts: %w", err)
	}

	cancelled := 0
	for _, id := range ids {
		alert, err := loadAlert(ctx, s.client, id)
		if err != nil {
			return cancelled, err
		}
		if alert == nil {
			// Висячая ссылка после доставки, просто подчищаем.
			if err := s.client.SRem(ctx, userKey(userID), id).Err(); err != nil {
				return cancelled, fmt.Errorf("failed to drop stale alert ref: %w", err)
			}
			continue
		}
		if err := s.Cancel(ctx, id); err != nil {
			return cancelled, err
		}
		cancelled++
	}

	return cancelled, nil
}

// ListScheduled возвращает уведомления пользователя по времени доставки.
func (s *RedisAlertScheduler) ListScheduled(ctx context.Context, userID int64) ([]models.Alert, error) {
	ids, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list user alerts: %w", err)
	}

	alerts := make([]models.Alert, 0, len(ids))
	for _, id := range ids {
		alert, err := loadAlert(ctx, s.client, id)
		if err != nil {
			return nil, err
		}
		if alert == nil {
			continue
		}
		alerts = append(alerts, *alert)
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].DeliverAt.Before(alerts[j].DeliverAt)
	})

	return alerts, nil
}

// remove выводит уведомление из очереди, из тела и из индекса пользователя.
func (s *RedisAlertScheduler) remove(ctx context.Context, alertID string, userID int64) error {
	if err := s.client.ZRem(ctx, queueKey, alertID).Err(); err != nil {
		return fmt.Errorf("failed to dequeue alert: %w", err)
	}
	if err := s.client.Del(ctx, alertKey(alertID)).Err(); err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	if err := s.client.SRem(ctx, userKey(userID), alertID).Err(); err != nil {
		return fmt.Errorf("failed to unindex alert: %w", err)
	}
	return nil
}

// loadAlert читает тело уведомления, nil без ошибки если его уже нет.
func loadAlert(ctx context.Context, client *redis.Client, alertID string) (*models.Alert, error) {
	data, err := client.Get(ctx, alertKey(alertID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	var alert models.Alert
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert: %w", err)
	}
	return &alert, nil
}

// clearSlot сбрасывает слот, только если тот всё ещё указывает на это
// уведомление: слот мог быть перезанят более новым.
func clearSlot(ctx context.Context, client *redis.Client, alert *models.Alert) error {
	slot := slotKey(alert.UserID, alert.ItemID, alert.Kind)
	current, err := client.Get(ctx, slot).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to read alert slot: %w", err)
	}
	if current == alert.ID {
		if err := client.Del(ctx, slot).Err(); err != nil {
			return fmt.Errorf("failed to clear alert slot: %w", err)
		}
	}
	return nil
}
