package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dan-auerbach/morana-sub000/internal/provider"
	"github.com/dan-auerbach/morana-sub000/internal/telemetry"
)

// Таймауты опроса очереди генерации.
const (
	// ImagePollTimeout — максимальное время ожидания изображения.
	ImagePollTimeout = 3 * time.Minute

	// VideoPollTimeout — максимальное время ожидания видео.
	VideoPollTimeout = 10 * time.Minute
)

// Poller опрашивает очередь генерации до готовности задания.
//
// Интервалы растут экспоненциально (500ms → 5s), общий дедлайн жёсткий:
// по истечении шаг падает с ErrPollTimeout, execution останавливается.
type Poller struct {
	backend provider.GenerationBackend

	// sleep заменяется в тестах, чтобы не ждать реального времени.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller создаёт Poller над очередью генерации.
func NewPoller(backend provider.GenerationBackend) *Poller {
	return &Poller{
		backend: backend,
		sleep:   sleepContext,
	}
}

// Await блокирует до готовности задания и возвращает дескриптор результата.
// kind используется только для метрик ("image"/"video").
func (p *Poller) Await(ctx context.Context, job *provider.GenerationJob, kind string, timeout time.Duration) (*provider.GenerationResult, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	// Без джиттера: интервалы детерминированно растут до MaxInterval.
	bo.RandomizationFactor = 0
	bo.Multiplier = 1.4
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = timeout
	bo.Reset()

	for {
		status, err := p.backend.Status(ctx, job)
		if err != nil {
			return nil, fmt.Errorf("poll status: %w", err)
		}

		switch status {
		case provider.JobStatusCompleted:
			result, err := p.backend.Result(ctx, job)
			if err != nil {
				return nil, fmt.Errorf("fetch result: %w", err)
			}
			return result, nil
		case provider.JobStatusFailed:
			return nil, fmt.Errorf("%w: job %s", ErrGenerationFailed, job.ID)
		}

		next := bo.NextBackOff()
		if next == backoff.Stop {
			telemetry.PollTimeouts.WithLabelValues(kind).Inc()
			return nil, fmt.Errorf("%w after %s: job %s", ErrPollTimeout, timeout, job.ID)
		}
		if err := p.sleep(ctx, next); err != nil {
			return nil, err
		}
	}
}

// sleepContext спит с уважением к отмене контекста.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
