package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"JMLogPump/internal/aggregate"
	"JMLogPump/internal/config"
	"JMLogPump/internal/models"
	"JMLogPump/internal/parser"
	"JMLogPump/internal/store"
)

const csvLog = `timeStamp,elapsed,label,success,bytes,allThreads,Latency
1000,100,A,true,2048,1,10
2000,200,A,true,4096,2,20
5000,300,A,true,1024,,30
`

const xmlLog = `<?xml version="1.0" encoding="UTF-8"?>
<testResults version="1.2">
<sample t="0" lt="0" ts="10000" s="true" lb="Login" by="4096" ng="1" na="2">
  <httpSample t="100" lt="40" ts="10000" s="true" lb="GET /login" by="2048" ng="1" na="2"/>
</sample>
<sample t="0" lt="0" ts="12000" s="true" lb="Logout" by="1024" ng="1" na="1">
  <httpSample t="10" lt="5" ts="12000" s="true" lb="GET /logout" by="1024" ng="1" na="1"/>
</sample>
</testResults>
`

// steadyLog - одна запись в секунду на протяжении n секунд, по 1 МБ
func steadyLog(n int) string {
	var b strings.Builder
	b.WriteString("timeStamp,elapsed,label,success,bytes,allThreads,Latency\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d,%d,A,true,%d,5,10\n", 1000+i*1000, 1000, 1024*1024)
	}
	return b.String()
}

func parse(t *testing.T, body string) *store.Store {
	t.Helper()
	st, err := store.Parse(strings.NewReader(body))
	require.NoError(t, err)
	return st
}

func TestQueries_CSV(t *testing.T) {
	st := parse(t, csvLog)
	qs := Queries(st, 2, []aggregate.Mode{aggregate.ModeRPT, aggregate.ModeART, aggregate.ModeVUsers, aggregate.ModeRPTTotal})

	assert.Equal(t, []aggregate.Query{
		{Label: "A", Mode: aggregate.ModeRPT, Window: 2},
		{Mode: aggregate.ModeRPTTotal, Window: 2},
		{Label: "A", Mode: aggregate.ModeART, Window: 2},
		{Mode: aggregate.ModeVUsers, Window: 2},
	}, qs)
}

func TestQueries_XMLTransactionsFirst(t *testing.T) {
	st := parse(t, xmlLog)
	qs := Queries(st, 1, []aggregate.Mode{aggregate.ModeBPT})

	var labels []string
	for _, q := range qs {
		labels = append(labels, q.Label)
	}
	assert.Equal(t, []string{"Login", "Logout", "GET /login", "GET /logout", ""}, labels)
	assert.Equal(t, aggregate.ModeBPTTotal, qs[len(qs)-1].Mode)
}

func TestAnalyzeStore(t *testing.T) {
	st := parse(t, csvLog)
	a, err := AnalyzeStore(context.Background(), st, "run.jtl", Options{
		Window:  2,
		Modes:   []aggregate.Mode{aggregate.ModeRPT},
		Workers: 2,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, a.RunID)
	assert.Equal(t, "run.jtl", a.File)
	require.Len(t, a.Series, 2)
	assert.Equal(t, "Responses per Second", a.Series[0].Title)
	assert.Equal(t, map[int]float64{0: 1.0, 2: 0.0, 4: 0.5}, a.Series[0].Series.Map())
	assert.Equal(t, aggregate.ModeRPTTotal, a.Series[1].Query.Mode)
	assert.Equal(t, a.Series[0].Series, a.Series[1].Series)
	// мало точек для тренда - ряд без сглаживания, не ошибка
	assert.Nil(t, a.Series[0].Trend)
}

func TestAnalyzeStore_TrendAndUnits(t *testing.T) {
	st := parse(t, steadyLog(20))
	a, err := AnalyzeStore(context.Background(), st, "steady.jtl", Options{
		Window: 1,
		Modes:  []aggregate.Mode{aggregate.ModeBPT, aggregate.ModeART},
		Trend:  true,
		Units:  aggregate.Units{MegabytesPerSecond: true, Seconds: true},
	})
	require.NoError(t, err)
	require.Len(t, a.Series, 3)

	bpt := a.Series[0]
	assert.Equal(t, "Throughput (MB/s)", bpt.Title)
	require.Len(t, bpt.Trend, len(bpt.Series))
	// каждое окно - ровно 1 МБ/с
	assert.InDelta(t, 1.0, bpt.Series[3].Value, 1e-9)
	assert.InDelta(t, 1.0, bpt.Trend[7], 1e-9)

	art := a.Series[2]
	assert.Equal(t, aggregate.ModeART, art.Query.Mode)
	assert.Equal(t, "Average Response Time (s)", art.Title)
	assert.InDelta(t, 1.0, art.Series[0].Value, 1e-9)
}

func TestAnalyzeStore_View(t *testing.T) {
	st := parse(t, steadyLog(600))
	st.SetView(100, 400)
	a, err := AnalyzeStore(context.Background(), st, "long.jtl", Options{
		Window: 100,
		Modes:  []aggregate.Mode{aggregate.ModeRPTTotal},
	})
	require.NoError(t, err)
	require.Len(t, a.Series, 1)
	assert.Equal(t, []int{100, 200, 300, 400}, offsets(a.Series[0].Series))
}

func offsets(s aggregate.Series) []int {
	out := make([]int, len(s))
	for i, p := range s {
		out[i] = p.Offset
	}
	return out
}

func TestAnalyze_Errors(t *testing.T) {
	_, err := Analyze(context.Background(), filepath.Join(t.TempDir(), "missing.jtl"), Options{Window: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.jtl")
	require.NoError(t, os.WriteFile(path, []byte("foo,bar\n1,2\n"), 0o644))
	_, err = Analyze(context.Background(), path, Options{Window: 1})
	assert.ErrorIs(t, err, parser.ErrSchemaInvalid)

	path = filepath.Join(t.TempDir(), "ok.jtl")
	require.NoError(t, os.WriteFile(path, []byte(csvLog), 0o644))
	_, err = Analyze(context.Background(), path, Options{Window: 0, Modes: []aggregate.Mode{aggregate.ModeRPT}})
	assert.ErrorIs(t, err, aggregate.ErrInvalidWindow)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		WindowSeconds: 30,
		Modes:         []string{"rpt", "VUSERS"},
		Trend:         true,
		Workers:       3,
		Units:         config.UnitsConfig{Seconds: true},
	}
	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, Options{
		Window:  30,
		Modes:   []aggregate.Mode{aggregate.ModeRPT, aggregate.ModeVUsers},
		Trend:   true,
		Units:   aggregate.Units{Seconds: true},
		Workers: 3,
	}, opts)

	cfg.Modes = []string{"p99"}
	_, err = OptionsFromConfig(cfg)
	assert.ErrorIs(t, err, aggregate.ErrUnknownMode)
}

func TestProcessor_Process(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jtl")
	require.NoError(t, os.WriteFile(path, []byte(csvLog), 0o644))

	records := make(chan models.RecordRow, 16)
	series := make(chan models.SeriesRow, 16)
	p := NewProcessor(Options{Window: 2, Modes: []aggregate.Mode{aggregate.ModeRPT}}, records, series, nil, zap.NewNop())

	require.NoError(t, p.Process(context.Background(), path))
	close(records)
	close(series)

	var recs []models.RecordRow
	for r := range records {
		recs = append(recs, r)
	}
	require.Len(t, recs, 3)
	assert.Equal(t, path, recs[0].File)
	assert.Equal(t, recs[0].RunID, recs[2].RunID)
	assert.Nil(t, recs[2].ActiveUsers)

	var rows []models.SeriesRow
	for r := range series {
		rows = append(rows, r)
	}
	require.Len(t, rows, 6)
	assert.Equal(t, "rpt", rows[0].Mode)
	assert.Equal(t, "A", rows[0].Label)
	assert.Equal(t, "rpt_total", rows[5].Mode)
	assert.Equal(t, recs[0].RunID, rows[0].RunID)
}

func TestProcessor_Cancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jtl")
	require.NoError(t, os.WriteFile(path, []byte(csvLog), 0o644))

	// небуферизованный канал без читателя: запись возможна только до отмены
	records := make(chan models.RecordRow)
	series := make(chan models.SeriesRow)
	p := NewProcessor(Options{Window: 2, Modes: []aggregate.Mode{aggregate.ModeRPT}}, records, series, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Process(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}
