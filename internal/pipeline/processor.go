package pipeline

import (
	"context"

	"go.uber.org/zap"

	"JMLogPump/internal/metrics"
	"JMLogPump/internal/models"
	"JMLogPump/internal/transform"
)

// Processor превращает файл лога в строки для ClickHouse
type Processor struct {
	opts    Options
	records chan<- models.RecordRow
	series  chan<- models.SeriesRow
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewProcessor(opts Options, records chan<- models.RecordRow, series chan<- models.SeriesRow, m *metrics.Metrics, logger *zap.Logger) *Processor {
	return &Processor{
		opts:    opts,
		records: records,
		series:  series,
		metrics: m,
		logger:  logger,
	}
}

// Process разбирает файл, считает ряды и отправляет строки в каналы батчеров
func (p *Processor) Process(ctx context.Context, path string) error {
	a, err := Analyze(ctx, path, p.opts)
	if err != nil {
		p.metrics.FileProcessed("failed")
		return err
	}

	counts := make(map[models.RecordType]int, 2)
	for _, r := range a.Store.Records() {
		select {
		case <-ctx.Done():
			p.metrics.FileProcessed("cancelled")
			return ctx.Err()
		case p.records <- transform.RecordRow(a.RunID, path, r):
		}
		counts[r.Type]++
	}
	for t, n := range counts {
		p.metrics.RecordsParsed(t.String(), n)
	}

	points := 0
	for _, s := range a.Series {
		rows := transform.SeriesRows(a.RunID, path, s.Result, s.Trend)
		for _, row := range rows {
			select {
			case <-ctx.Done():
				p.metrics.FileProcessed("cancelled")
				return ctx.Err()
			case p.series <- row:
			}
		}
		p.metrics.SeriesPoints(s.Query.Mode.String(), len(rows))
		points += len(rows)
	}

	p.metrics.FileProcessed("ok")
	p.logger.Info("Файл обработан",
		zap.String("file", path),
		zap.String("run_id", a.RunID),
		zap.Int("records", a.Store.Len()),
		zap.Int("series", len(a.Series)),
		zap.Int("points", points))
	return nil
}
