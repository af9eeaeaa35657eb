package transform

import (
	"math"
	"time"

	"JMLogPump/internal/aggregate"
	"JMLogPump/internal/models"
)

// RecordRow конвертирует запись лога в строку таблицы записей
func RecordRow(runID, file string, r models.Record) models.RecordRow {
	row := models.RecordRow{
		RunID:        runID,
		File:         file,
		EventTime:    time.UnixMilli(r.Timestamp).UTC(),
		SecFromStart: int32(r.SecFromStart),
		Label:        r.Label,
		Type:         r.Type.String(),
		Elapsed:      r.Elapsed,
		Latency:      r.Latency,
		KBytes:       r.Bytes,
		Success:      1,
	}
	if r.Failed() {
		row.Success = 0
	}
	if r.HasActiveUsers {
		users := r.ActiveUsers
		row.ActiveUsers = &users
	}
	return row
}

// SeriesRows раскладывает ряд на строки таблицы рядов.
// trend либо пуст, либо той же длины, что и ряд.
func SeriesRows(runID, file string, res aggregate.Result, trend []float64) []models.SeriesRow {
	label := res.Query.Label
	if res.Query.Mode.Global() {
		label = ""
	}
	rows := make([]models.SeriesRow, 0, len(res.Series))
	for i, p := range res.Series {
		row := models.SeriesRow{
			RunID:     runID,
			File:      file,
			Mode:      res.Query.Mode.String(),
			Label:     label,
			WindowSec: uint32(res.Query.Window),
			Offset:    int32(p.Offset),
			Value:     p.Value,
		}
		if i < len(trend) && !math.IsNaN(trend[i]) {
			t := trend[i]
			row.Trend = &t
		}
		rows = append(rows, row)
	}
	return rows
}
