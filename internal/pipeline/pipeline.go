package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"JMLogPump/internal/aggregate"
	"JMLogPump/internal/config"
	"JMLogPump/internal/store"
)

// Options - параметры расчёта рядов для одного файла
type Options struct {
	Window  int
	Modes   []aggregate.Mode
	Trend   bool
	Units   aggregate.Units
	Workers int
}

// OptionsFromConfig собирает Options из конфигурации
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	modes, err := cfg.ParsedModes()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Window:  cfg.WindowSeconds,
		Modes:   modes,
		Trend:   cfg.Trend,
		Units:   aggregate.Units{MegabytesPerSecond: cfg.Units.MegabytesPerSecond, Seconds: cfg.Units.Seconds},
		Workers: cfg.Workers,
	}, nil
}

// Series - результат запроса в единицах отображения и, при Trend, его сглаженная версия
type Series struct {
	aggregate.Result
	Title string
	Trend []float64
}

// Analysis - все ряды, посчитанные для одного файла
type Analysis struct {
	RunID  string
	File   string
	Store  *store.Store
	Window int
	Units  aggregate.Units
	Series []Series
}

// Queries строит запросы для графиков: по метрике на каждую транзакцию и метку,
// плюс парная общая метрика. Общие метрики запрашиваются один раз.
func Queries(st *store.Store, window int, modes []aggregate.Mode) []aggregate.Query {
	labels := append(st.Transactions(), st.Labels()...)
	seen := make(map[aggregate.Query]struct{})
	var out []aggregate.Query
	add := func(q aggregate.Query) {
		if _, ok := seen[q]; ok {
			return
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}

	for _, m := range modes {
		if m.Global() {
			add(aggregate.Query{Mode: m, Window: window})
			continue
		}
		for _, label := range labels {
			add(aggregate.Query{Label: label, Mode: m, Window: window})
		}
		if total, ok := m.Total(); ok {
			add(aggregate.Query{Mode: total, Window: window})
		}
	}
	return out
}

// Analyze загружает файл и считает по нему ряды
func Analyze(ctx context.Context, path string, opts Options) (*Analysis, error) {
	st, err := store.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return AnalyzeStore(ctx, st, path, opts)
}

// AnalyzeStore считает ряды по уже загруженному логу в его текущем окне просмотра
func AnalyzeStore(ctx context.Context, st *store.Store, file string, opts Options) (*Analysis, error) {
	queries := Queries(st, opts.Window, opts.Modes)
	results, err := aggregate.RunQueries(ctx, st.View(), queries, opts.Workers)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		RunID:  uuid.NewString(),
		File:   file,
		Store:  st,
		Window: opts.Window,
		Units:  opts.Units,
		Series: make([]Series, 0, len(results)),
	}
	for _, res := range results {
		res.Series = aggregate.Scale(res.Series, res.Query.Mode, opts.Units)
		s := Series{Result: res, Title: res.Query.Mode.Title(opts.Units)}
		if opts.Trend {
			trend, err := aggregate.Smooth(res.Series.Values())
			switch {
			case err == nil:
				s.Trend = trend
			case !errors.Is(err, aggregate.ErrTooFewPoints):
				return nil, err
			}
		}
		a.Series = append(a.Series, s)
	}
	return a, nil
}
