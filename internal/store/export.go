package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ExportHeader - колонки CSV-выгрузки в фиксированном порядке
var ExportHeader = []string{"timeStamp", "elapsed", "label", "success", "bytes", "allThreads", "Latency"}

// Export пишет записи в CSV: заголовок и по одной строке на запись.
// bytes выгружается в исходных единицах, чтобы повторная загрузка дала те же килобайты.
func (s *Store) Export(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(ExportHeader))
	for i := range s.records {
		rec := &s.records[i]
		row[0] = strconv.FormatInt(rec.Timestamp, 10)
		row[1] = strconv.FormatInt(rec.Elapsed, 10)
		row[2] = rec.Label
		row[3] = rec.Success
		row[4] = strconv.FormatInt(rec.RawBytes, 10)
		row[5] = ""
		if rec.HasActiveUsers {
			row[5] = strconv.FormatInt(rec.ActiveUsers, 10)
		}
		row[6] = strconv.FormatInt(rec.Latency, 10)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFile сохраняет лог в CSV-файл
func (s *Store) ExportFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := s.Export(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
