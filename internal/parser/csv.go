package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"JMLogPump/internal/models"
)

// SecFromStartColumn - синтетическая колонка, которая добавляется к заголовку
const SecFromStartColumn = "secFromStart"

// CSVDecoder разбирает плоский CSV-лог. Колонки ищутся по имени, порядок не важен.
type CSVDecoder struct{}

type csvColumns struct {
	ts, elapsed, latency, bytes, label, success, threads int
	width                                                int
}

func (CSVDecoder) Decode(r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, newError(FormatUnrecognized, 1, nil, "empty file")
		}
		return nil, newError(SchemaInvalid, 1, err, "read csv header")
	}
	// csv.Reader оставляет BOM в имени первой колонки
	header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	if err := ValidateHeader(strings.Join(header, ",")); err != nil {
		return nil, err
	}
	header = append(header, SecFromStartColumn)
	cols, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	res := &Result{Format: FormatCSV}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			line := 0
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, newError(MalformedRecord, line, err, "read csv row")
		}
		line, _ := cr.FieldPos(0)

		rec, err := parseCSVRow(row, cols, line)
		if err != nil {
			return nil, err
		}
		if len(res.Records) == 0 {
			res.Start = rec.Timestamp
		}
		res.Records = append(res.Records, rec)
	}
	if len(res.Records) == 0 {
		return nil, newError(MalformedRecord, 0, nil, "no records")
	}
	return res, nil
}

// indexColumns строит отображение имя колонки → позиция
func indexColumns(header []string) (csvColumns, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}
	lookup := func(name string) (int, error) {
		i, ok := index[name]
		if !ok {
			return 0, newError(SchemaInvalid, 1, nil, "column %q not found", name)
		}
		return i, nil
	}

	var (
		cols csvColumns
		err  error
	)
	targets := []struct {
		name string
		dst  *int
	}{
		{"timeStamp", &cols.ts},
		{"elapsed", &cols.elapsed},
		{"Latency", &cols.latency},
		{"bytes", &cols.bytes},
		{"label", &cols.label},
		{"success", &cols.success},
		{"allThreads", &cols.threads},
	}
	for _, t := range targets {
		if *t.dst, err = lookup(t.name); err != nil {
			return cols, err
		}
		if *t.dst+1 > cols.width {
			cols.width = *t.dst + 1
		}
	}
	return cols, nil
}

func parseCSVRow(row []string, cols csvColumns, line int) (models.Record, error) {
	if len(row) < cols.width {
		return models.Record{}, newError(MalformedRecord, line, nil, "expected at least %d fields, got %d", cols.width, len(row))
	}

	var rec models.Record
	ints := []struct {
		name string
		raw  string
		dst  *int64
	}{
		{"timeStamp", row[cols.ts], &rec.Timestamp},
		{"elapsed", row[cols.elapsed], &rec.Elapsed},
		{"Latency", row[cols.latency], &rec.Latency},
		{"bytes", row[cols.bytes], &rec.RawBytes},
	}
	for _, f := range ints {
		v, err := parseInt(f.raw)
		if err != nil {
			return models.Record{}, newError(MalformedRecord, line, err, "%s=%q", f.name, f.raw)
		}
		*f.dst = v
	}
	rec.Bytes = rec.RawBytes / 1024
	rec.Label = row[cols.label]
	rec.Success = row[cols.success]
	rec.Type = models.Sample

	// allThreads необязателен: при ошибке поле просто остаётся пустым
	if v, err := parseInt(row[cols.threads]); err == nil {
		rec.ActiveUsers = v
		rec.HasActiveUsers = true
	}
	return rec, nil
}

func parseInt(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %w", err)
	}
	return v, nil
}
