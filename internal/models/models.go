package models

import "time"

// RecordType - уровень записи в иерархическом логе JMeter
type RecordType uint8

const (
	// Sample - транзакция (родительский элемент sample)
	Sample RecordType = iota
	// HTTPSample - дочерний запрос httpSample
	HTTPSample
)

func (t RecordType) String() string {
	if t == HTTPSample {
		return "httpSample"
	}
	return "sample"
}

// Record - нормализованная строка лога JMeter.
// Bytes хранится в килобайтах для обоих форматов, RawBytes - как в исходном файле.
// Success остаётся строкой: запись считается ошибочной только при значении "false".
type Record struct {
	Timestamp      int64 // epoch, мс
	Elapsed        int64 // мс
	Latency        int64 // мс
	Bytes          int64 // кБ
	RawBytes       int64
	Label          string
	Success        string
	ActiveUsers    int64
	HasActiveUsers bool
	SecFromStart   int
	Type           RecordType
}

// Failed сообщает, помечена ли запись как неуспешная
func (r *Record) Failed() bool {
	return r.Success == "false"
}

// RecordRow - строка таблицы сырых записей в ClickHouse
type RecordRow struct {
	RunID        string
	File         string
	EventTime    time.Time
	SecFromStart int32
	Label        string
	Type         string
	Elapsed      int64
	Latency      int64
	KBytes       int64
	Success      uint8
	ActiveUsers  *int64
}

// SeriesRow - одна точка агрегированного ряда для ClickHouse
type SeriesRow struct {
	RunID     string
	File      string
	Mode      string
	Label     string
	WindowSec uint32
	Offset    int32
	Value     float64
	Trend     *float64
}
