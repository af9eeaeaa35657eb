package aggregate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"JMLogPump/internal/models"
)

type rec struct {
	off     int
	label   string
	elapsed int64
	latency int64
	kb      int64
	success string
	users   int64
	typ     models.RecordType
}

func view(start, end int, typed bool, rs ...rec) View {
	v := View{Start: start, End: end, Typed: typed}
	for _, r := range rs {
		success := r.success
		if success == "" {
			success = "true"
		}
		v.Records = append(v.Records, models.Record{
			SecFromStart:   r.off,
			Label:          r.label,
			Elapsed:        r.elapsed,
			Latency:        r.latency,
			Bytes:          r.kb,
			Success:        success,
			ActiveUsers:    r.users,
			HasActiveUsers: r.users > 0,
			Type:           r.typ,
		})
	}
	return v
}

func TestAggregate_RPTWindowBoundaries(t *testing.T) {
	v := view(0, 4, false,
		rec{off: 0, label: "A", elapsed: 100},
		rec{off: 1, label: "A", elapsed: 200},
		rec{off: 4, label: "A", elapsed: 300},
	)

	s, err := Aggregate(context.Background(), v, 2, "A", ModeRPT)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 1.0, 2: 0.0, 4: 0.5}, s.Map())
}

func TestAggregate_ResponseTimeDividesByCount(t *testing.T) {
	v := view(0, 4, false,
		rec{off: 0, label: "A", elapsed: 100, latency: 10},
		rec{off: 1, label: "A", elapsed: 200, latency: 30},
		rec{off: 4, label: "A", elapsed: 300, latency: 50},
	)

	art, err := Aggregate(context.Background(), v, 2, "A", ModeART)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 150, 2: 0, 4: 300}, art.Map())

	lat, err := Aggregate(context.Background(), v, 2, "A", ModeLAT)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 20, 2: 0, 4: 50}, lat.Map())

	for _, p := range append(art, lat...) {
		assert.GreaterOrEqual(t, p.Value, 0.0)
	}
}

func TestAggregate_ErrorCountIsCumulative(t *testing.T) {
	v := view(0, 6, false,
		rec{off: 0, label: "A", success: "false"},
		rec{off: 1, label: "A"},
		rec{off: 3, label: "A", success: "false"},
		rec{off: 5, label: "A", success: "false"},
		rec{off: 5, label: "B", success: "false"},
		rec{off: 6, label: "A"},
	)

	errc, err := Aggregate(context.Background(), v, 2, "A", ModeERRC)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 1, 2: 2, 4: 3, 6: 3}, errc.Map())

	total, err := Aggregate(context.Background(), v, 2, "", ModeERRCTotal)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 1, 2: 2, 4: 4, 6: 4}, total.Map())

	for _, s := range []Series{errc, total} {
		for i := 1; i < len(s); i++ {
			assert.GreaterOrEqual(t, s[i].Value, s[i-1].Value)
		}
	}
}

func TestAggregate_ErrorRate(t *testing.T) {
	v := view(0, 3, false,
		rec{off: 0, label: "A", success: "false"},
		rec{off: 0, label: "A", success: "FALSE"},
		rec{off: 1, label: "B", success: "false"},
		rec{off: 3, label: "A"},
	)

	s, err := Aggregate(context.Background(), v, 2, "A", ModeERR)
	require.NoError(t, err)
	// только буквальное "false" считается ошибкой
	assert.Equal(t, map[int]float64{0: 0.5, 2: 0}, s.Map())

	total, err := Aggregate(context.Background(), v, 2, "", ModeERRTotal)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 1, 2: 0}, total.Map())
}

func TestAggregate_ActiveUsersKeepsLastValue(t *testing.T) {
	v := view(0, 6, false,
		rec{off: 0, label: "A", users: 5},
		rec{off: 1, label: "B", users: 7},
		rec{off: 6, label: "A", users: 3},
	)

	s, err := Aggregate(context.Background(), v, 2, "", ModeVUsers)
	require.NoError(t, err)
	// окна без записей отсутствуют
	assert.Equal(t, map[int]float64{0: 7, 6: 3}, s.Map())
}

func TestAggregate_TotalThroughputUsesTransactions(t *testing.T) {
	rs := []rec{
		{off: 0, label: "page", kb: 10, typ: models.HTTPSample},
		{off: 0, label: "page", kb: 20, typ: models.HTTPSample},
		{off: 0, label: "tx", kb: 40, typ: models.Sample},
	}

	typed, err := Aggregate(context.Background(), view(0, 0, true, rs...), 1, "", ModeBPTTotal)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 40}, typed.Map())

	flat, err := Aggregate(context.Background(), view(0, 0, false, rs...), 1, "", ModeBPTTotal)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 70}, flat.Map())

	byLabel, err := Aggregate(context.Background(), view(0, 0, true, rs...), 2, "page", ModeBPT)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 15}, byLabel.Map())
}

func TestAggregate_GlobalModesIgnoreLabel(t *testing.T) {
	v := view(0, 1, false,
		rec{off: 0, label: "A"},
		rec{off: 1, label: "B"},
	)

	s, err := Aggregate(context.Background(), v, 2, "A", ModeRPTTotal)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 1}, s.Map())
}

func TestAggregate_UnknownLabelGivesZeros(t *testing.T) {
	v := view(0, 4, false,
		rec{off: 0, label: "A", elapsed: 10},
		rec{off: 2, label: "A", elapsed: 10},
		rec{off: 4, label: "A", elapsed: 10},
	)

	for _, mode := range []Mode{ModeART, ModeRPT, ModeBPT, ModeERRC} {
		s, err := Aggregate(context.Background(), v, 2, "missing", mode)
		require.NoError(t, err, mode.String())
		assert.Equal(t, map[int]float64{0: 0, 2: 0, 4: 0}, s.Map(), mode.String())
	}
}

func TestAggregate_ViewStartSkipsEarlierRecords(t *testing.T) {
	v := view(2, 4, false,
		rec{off: 0, label: "A"},
		rec{off: 1, label: "A"},
		rec{off: 2, label: "A"},
		rec{off: 3, label: "A"},
		rec{off: 4, label: "A"},
	)

	s, err := Aggregate(context.Background(), v, 2, "A", ModeRPT)
	require.NoError(t, err)
	assert.Equal(t, Series{{Offset: 2, Value: 1}, {Offset: 4, Value: 0.5}}, s)
}

func TestAggregate_NoRecordsAfterStart(t *testing.T) {
	v := view(10, 12, false, rec{off: 0, label: "A"})

	s, err := Aggregate(context.Background(), v, 2, "A", ModeRPT)
	require.NoError(t, err)
	assert.Equal(t, Series{{Offset: 10, Value: 0}}, s)
}

func TestAggregate_InvalidArguments(t *testing.T) {
	v := view(0, 1, false, rec{off: 0, label: "A"})

	_, err := Aggregate(context.Background(), v, 0, "A", ModeRPT)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = Aggregate(context.Background(), v, 1, "A", Mode(200))
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestAggregate_Cancelled(t *testing.T) {
	v := view(0, 5, false,
		rec{off: 0, label: "A"},
		rec{off: 5, label: "A"},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Aggregate(ctx, v, 1, "A", ModeRPT)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunQueries_KeepsOrder(t *testing.T) {
	v := view(0, 4, false,
		rec{off: 0, label: "A", elapsed: 100},
		rec{off: 1, label: "B", elapsed: 200},
		rec{off: 4, label: "A", elapsed: 300},
	)
	queries := []Query{
		{Label: "A", Mode: ModeART, Window: 2},
		{Label: "B", Mode: ModeART, Window: 2},
		{Mode: ModeRPTTotal, Window: 2},
		{Label: "A", Mode: ModeERRC, Window: 1},
	}

	results, err := RunQueries(context.Background(), v, queries, 2)
	require.NoError(t, err)
	require.Len(t, results, len(queries))
	for i, q := range queries {
		want, err := Aggregate(context.Background(), v, q.Window, q.Label, q.Mode)
		require.NoError(t, err)
		assert.Equal(t, q, results[i].Query)
		assert.Equal(t, want, results[i].Series)
	}
}

func TestRunQueries_PropagatesError(t *testing.T) {
	v := view(0, 1, false, rec{off: 0, label: "A"})

	_, err := RunQueries(context.Background(), v, []Query{{Label: "A", Mode: ModeRPT, Window: 0}}, 1)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}
