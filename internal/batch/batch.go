package batch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"JMLogPump/internal/metrics"
)

// SendFunc отправляет накопленную пачку в хранилище
type SendFunc[T any] func(ctx context.Context, rows []T) error

// Batcher накапливает строки и отправляет их пачками
// batchSize - сколько строк отправлять за раз
// batchInterval - максимальный интервал между отправками
type Batcher[T any] struct {
	name          string
	batchSize     int
	batchInterval time.Duration
	logger        *zap.Logger
	send          SendFunc[T]
	metrics       *metrics.Metrics
}

// NewBatcher создает новый batcher
func NewBatcher[T any](name string, batchSize int, batchInterval time.Duration, logger *zap.Logger, send SendFunc[T], m *metrics.Metrics) *Batcher[T] {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Batcher[T]{
		name:          name,
		batchSize:     batchSize,
		batchInterval: batchInterval,
		logger:        logger.Named(name),
		send:          send,
		metrics:       m,
	}
}

// Run запускает сборку и отправку batch до закрытия канала или отмены ctx.
// При отмене ctx уже поставленные в канал строки дочитываются и отправляются.
func (b *Batcher[T]) Run(ctx context.Context, in <-chan T) {
	batch := make([]T, 0, b.batchSize)
	timer := time.NewTimer(b.batchInterval)
	defer timer.Stop()

	flush := func(reason string) {
		if len(batch) == 0 {
			return
		}
		b.logger.Debug("Отправляем batch", zap.Int("count", len(batch)), zap.String("reason", reason))
		// Отмена сервиса не должна прерывать отправку последней пачки
		err := b.send(context.WithoutCancel(ctx), batch)
		b.metrics.BatchFlushed(err == nil)
		if err != nil {
			b.logger.Error("Ошибка при отправке batch", zap.Error(err), zap.Int("count", len(batch)))
		} else {
			b.logger.Debug("Batch успешно отправлен", zap.Int("count", len(batch)))
		}
		batch = make([]T, 0, b.batchSize)
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case row, ok := <-in:
					if !ok {
						flush("graceful shutdown")
						return
					}
					batch = append(batch, row)
					if len(batch) >= b.batchSize {
						flush("batch size reached")
					}
				default:
					flush("graceful shutdown")
					return
				}
			}
		case row, ok := <-in:
			if !ok {
				flush("input closed")
				return
			}
			batch = append(batch, row)
			if len(batch) >= b.batchSize {
				flush("batch size reached")
				resetTimer(timer, b.batchInterval)
			}
		case <-timer.C:
			flush("interval")
			timer.Reset(b.batchInterval)
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
