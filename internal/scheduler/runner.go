package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"proviant/internal/models"
	"proviant/internal/worker"

	"github.com/rs/zerolog"
)

// MinTaskInterval нижняя граница периода фоновых задач. Срочность по
// срокам годности меняется не чаще раза в сутки, гонять пересборку
// чаще часа незачем.
const MinTaskInterval = time.Hour

// TaskFunc одна итерация фоновой задачи.
type TaskFunc func(ctx context.Context) (models.TaskResult, error)

type task struct {
	id       string
	interval time.Duration
	fn       TaskFunc
}

// Runner гоняет зарегистрированные периодические задачи. Результат
// Failed перезапускается с экспоненциальной выдержкой; выдержки
// укладываются в штатный интервал.
type Runner struct {
	mu      sync.Mutex
	tasks   map[string]*task
	retry   worker.RetryPolicy
	logger  *zerolog.Logger
	wg      sync.WaitGroup
	started bool
}

func NewRunner(retry worker.RetryPolicy, logger *zerolog.Logger) *Runner {
	if retry.MaxRetries <= 0 {
		retry.MaxRetries = 3
	}
	if retry.InitialDelay <= 0 {
		retry.InitialDelay = time.Minute
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = 10 * time.Minute
	}
	if retry.BackoffFactor <= 0 {
		retry.BackoffFactor = 2
	}
	return &Runner{
		tasks:  make(map[string]*task),
		retry:  retry,
		logger: logger,
	}
}

// Register ставит задачу в реестр. Повторная регистрация того же id не
// ошибка и ничего не меняет. Интервал короче MinTaskInterval
// поднимается до него.
func (r *Runner) Register(taskID string, interval time.Duration, fn TaskFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[taskID]; ok {
		r.logger.Debug().Str("task", taskID).Msg("Task already registered, skipping")
		return
	}
	if interval < MinTaskInterval {
		interval = MinTaskInterval
	}

	r.tasks[taskID] = &task{id: taskID, interval: interval, fn: fn}
	r.logger.Info().Str("task", taskID).Dur("interval", interval).Msg("Background task registered")
}

func (r *Runner) IsRegistered(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[taskID]
	return ok
}

// Start закрепляет по горутине за каждой задачей и возвращается.
// Остановка через ctx, Wait дожидается выхода всех горутин.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	for _, t := range r.tasks {
		r.wg.Add(1)
		go func(t *task) {
			defer r.wg.Done()
			r.loop(ctx, t)
		}(t)
	}
}

func (r *Runner) Wait() {
	r.wg.Wait()
}

// RunNow выполняет задачу вне расписания, без ретраев. Используется
// ручным /refresh.
func (r *Runner) RunNow(ctx context.Context, taskID string) (models.TaskResult, error) {
	r.mu.Lock()
	t, ok := r.tasks[taskID]
	r.mu.Unlock()

	if !ok {
		return models.TaskResultFailed, fmt.Errorf("task %q is not registered", taskID)
	}
	return t.fn(ctx)
}

func (r *Runner) loop(ctx context.Context, t *task) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	// Первый прогон сразу: процесс мог пролежать дольше интервала.
	r.execute(ctx, t)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.execute(ctx, t)
		}
	}
}

func (r *Runner) execute(ctx context.Context, t *task) {
	for attempt := 0; ; attempt++ {
		result, err := t.fn(ctx)
		if err == nil && result != models.TaskResultFailed {
			if result == models.TaskResultNewData {
				r.logger.Info().Str("task", t.id).Msg("Task produced new data")
			} else {
				r.logger.Debug().Str("task", t.id).Msg("Task ran, nothing changed")
			}
			return
		}

		if attempt >= r.retry.MaxRetries {
			r.logger.Error().Err(err).
				Str("task", t.id).
				Int("attempts", attempt+1).
				Msg("Task failed, giving up until next tick")
			return
		}

		delay := r.retry.NextDelay(attempt + 1)
		r.logger.Warn().Err(err).
			Str("task", t.id).
			Dur("retry_in", delay).
			Msg("Task failed, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
