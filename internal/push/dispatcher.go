package push

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"proviant/internal/metrics"
	"proviant/internal/models"
	"proviant/internal/worker"
)

// Sender is the messaging surface the dispatcher needs.
type Sender interface {
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
}

// DispatcherOptions настраивает цикл доставки.
type DispatcherOptions struct {
	PollInterval time.Duration
	BatchSize    int
	SendRPS      float64
	SendBurst    int
	Retry        worker.RetryPolicy
}

// Dispatcher снимает созревшие уведомления из очереди и доставляет их
// в Telegram. Неудачные отправки переносятся с экспоненциальной паузой,
// исчерпавшие попытки уходят в dead letter.
type Dispatcher struct {
	client   *redis.Client
	telegram Sender
	limiter  *rate.Limiter
	retry    worker.RetryPolicy
	poll     time.Duration
	batch    int64
	logger   *zerolog.Logger
}

func NewDispatcher(client *redis.Client, telegram Sender, opts DispatcherOptions, logger *zerolog.Logger) *Dispatcher {
	if opts.PollInterval == 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 20
	}
	if opts.SendRPS <= 0 {
		opts.SendRPS = 20
	}
	if opts.SendBurst <= 0 {
		opts.SendBurst = 5
	}
	if opts.Retry.MaxRetries == 0 {
		opts.Retry.MaxRetries = 5
	}
	if opts.Retry.InitialDelay == 0 {
		opts.Retry.InitialDelay = 2 * time.Second
	}
	if opts.Retry.MaxDelay == 0 {
		opts.Retry.MaxDelay = 1 * time.Minute
	}
	if opts.Retry.BackoffFactor == 0 {
		opts.Retry.BackoffFactor = 2
	}

	return &Dispatcher{
		client:   client,
		telegram: telegram,
		limiter:  rate.NewLimiter(rate.Limit(opts.SendRPS), opts.SendBurst),
		retry:    opts.Retry,
		poll:     opts.PollInterval,
		batch:    int64(opts.BatchSize),
		logger:   logger,
	}
}

// Start крутит цикл доставки до закрытия контекста.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info().Dur("poll_interval", d.poll).Msg("Alert dispatcher started")
	defer d.logger.Info().Msg("Alert dispatcher stopped")

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.DeliverDue(ctx, time.Now()); err != nil {
				d.logger.Error().Err(err).Msg("Alert delivery pass failed")
			}
		}
	}
}

// DeliverDue обрабатывает все уведомления со сроком доставки не позже now.
func (d *Dispatcher) DeliverDue(ctx context.Context, now time.Time) error {
	for {
		ids, err := d.client.ZRangeByScore(ctx, queueKey, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   strconv.FormatInt(now.Unix(), 10),
			Count: d.batch,
		}).Result()
		if err != nil {
			return fmt.Errorf("failed to fetch due alerts: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		for _, id := range ids {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			claimed, err := d.client.ZRem(ctx, queueKey, id).Result()
			if err != nil {
				return fmt.Errorf("failed to claim alert: %w", err)
			}
			if claimed == 0 {
				// Уведомление сняли или забрали между выборкой и захватом.
				continue
			}
			d.deliver(ctx, id, now)
		}

		if int64(len(ids)) < d.batch {
			return nil
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, alertID string, now time.Time) {
	alert, err := loadAlert(ctx, d.client, alertID)
	if err != nil {
		d.logger.Error().Err(err).Str("alert_id", alertID).Msg("Failed to load claimed alert")
		return
	}
	if alert == nil {
		return
	}

	if err := d.limiter.Wait(ctx); err != nil {
		// Остановка процесса: вернуть захваченное уведомление в очередь.
		d.requeue(alert, alert.DeliverAt)
		return
	}

	if _, err := d.telegram.SendMessage(alert.ChatID, alert.Body); err != nil {
		d.retryOrDrop(ctx, alert, now, err)
		return
	}

	d.finish(ctx, alert)
	metrics.IncAlertDelivery("delivered")
	d.logger.Info().
		Str("alert_id", alert.ID).
		Int64("user_id", alert.UserID).
		Int64("item_id", alert.ItemID).
		Int("days_left", alert.DaysLeft).
		Msg("Alert delivered")
}

func (d *Dispatcher) retryOrDrop(ctx context.Context, alert *models.Alert, now time.Time, cause error) {
	alert.Attempts++
	if alert.Attempts >= d.retry.MaxRetries {
		d.deadLetter(ctx, alert, cause)
		return
	}

	next := now.Add(d.retry.NextDelay(alert.Attempts))
	data, err := json.Marshal(alert)
	if err != nil {
		d.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("Failed to marshal alert for retry")
		return
	}
	if err := d.client.Set(ctx, alertKey(alert.ID), data, 0).Err(); err != nil {
		d.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("Failed to persist alert attempts")
	}
	if err := d.client.ZAdd(ctx, queueKey, redis.Z{
		Score:  float64(next.Unix()),
		Member: alert.ID,
	}).Err(); err != nil {
		d.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("Failed to requeue alert")
		return
	}

	metrics.IncAlertDelivery("retried")
	d.logger.Warn().
		Err(cause).
		Str("alert_id", alert.ID).
		Int("attempt", alert.Attempts).
		Time("next_try", next).
		Msg("Alert delivery failed, retry scheduled")
}

func (d *Dispatcher) deadLetter(ctx context.Context, alert *models.Alert, cause error) {
	if data, err := json.Marshal(alert); err == nil {
		if err := d.client.LPush(ctx, deadLetterKey, data).Err(); err != nil {
			d.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("Failed to push alert to dead letter")
		}
	}
	d.finish(ctx, alert)

	metrics.IncAlertDelivery("dead_letter")
	d.logger.Error().
		Err(cause).
		Str("alert_id", alert.ID).
		Int64("user_id", alert.UserID).
		Int("attempts", alert.Attempts).
		Msg("Alert dropped after max attempts")
}

// finish подчищает тело, индекс пользователя и слот уже снятого из
// очереди уведомления.
func (d *Dispatcher) finish(ctx context.Context, alert *models.Alert) {
	if err := d.client.Del(ctx, alertKey(alert.ID)).Err(); err != nil {
		d.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("Failed to delete alert body")
	}
	if err := d.client.SRem(ctx, userKey(alert.UserID), alert.ID).Err(); err != nil {
		d.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("Failed to unindex alert")
	}
	if err := clearSlot(ctx, d.client, alert); err != nil {
		d.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("Failed to clear alert slot")
	}
}

func (d *Dispatcher) requeue(alert *models.Alert, at time.Time) {
	rctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.client.ZAdd(rctx, queueKey, redis.Z{
		Score:  float64(at.Unix()),
		Member: alert.ID,
	}).Err(); err != nil {
		d.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("Failed to return alert to queue")
	}
}
