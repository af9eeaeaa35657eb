package store

import (
	"fmt"
	"io"
	"os"
	"sync"

	"JMLogPump/internal/aggregate"
	"JMLogPump/internal/models"
	"JMLogPump/internal/parser"
)

// minViewSpan - минимальная ширина окна просмотра (сек) при подрезке границ
const minViewSpan = 300

// Store - нормализованный лог одного файла.
// Записи неизменяемы после построения; меняются только границы окна просмотра.
type Store struct {
	format       parser.Format
	records      []models.Record
	labels       []string
	transactions []string
	typed        bool
	endTime      int

	mu    sync.RWMutex
	start int
	end   int
}

// Load открывает файл и строит Store
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse читает лог из потока целиком
func Parse(r io.Reader) (*Store, error) {
	res, err := parser.Parse(r)
	if err != nil {
		return nil, err
	}
	return New(res), nil
}

// New вычисляет производные колонки и индексы меток
func New(res *parser.Result) *Store {
	s := &Store{
		format:  res.Format,
		records: res.Records,
		typed:   res.Typed,
	}

	seenLabels := make(map[string]struct{})
	seenTx := make(map[string]struct{})
	for i := range s.records {
		rec := &s.records[i]
		rec.SecFromStart = int(floorDiv(rec.Timestamp-res.Start, 1000))
		if rec.SecFromStart > s.endTime {
			s.endTime = rec.SecFromStart
		}

		// без иерархии все метки считаются метками запросов
		if s.typed && rec.Type == models.Sample {
			if _, ok := seenTx[rec.Label]; !ok {
				seenTx[rec.Label] = struct{}{}
				s.transactions = append(s.transactions, rec.Label)
			}
			continue
		}
		if _, ok := seenLabels[rec.Label]; !ok {
			seenLabels[rec.Label] = struct{}{}
			s.labels = append(s.labels, rec.Label)
		}
	}
	s.end = s.endTime
	return s
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func (s *Store) Format() parser.Format { return s.format }

// Typed сообщает, есть ли в логе деление на транзакции и запросы
func (s *Store) Typed() bool { return s.typed }

func (s *Store) Len() int { return len(s.records) }

// Records возвращает записи в порядке файла. Срез не копируется и не должен изменяться.
func (s *Store) Records() []models.Record { return s.records }

// Labels - метки запросов (httpSample, либо все записи плоского лога) в порядке появления
func (s *Store) Labels() []string { return append([]string(nil), s.labels...) }

// Transactions - метки транзакций; пусто для плоского лога
func (s *Store) Transactions() []string { return append([]string(nil), s.transactions...) }

// EndTime - максимальное смещение (сек) по всему логу
func (s *Store) EndTime() int { return s.endTime }

// Bounds возвращает текущие границы окна просмотра
func (s *Store) Bounds() (start, end int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.start, s.end
}

// SetView задаёт окно просмотра с теми же ограничениями, что и при ручной настройке графика:
// конец не меньше 300 с (если он раньше конца лога), начало не позже конца.
func (s *Store) SetView(start, end int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if end < s.endTime {
		s.end = max(minViewSpan, end)
	} else {
		s.end = s.endTime
	}
	if start < s.end {
		s.start = max(0, start)
	} else {
		s.start = max(0, s.end-minViewSpan)
	}
}

// ResetView возвращает окно просмотра к границам всего лога
func (s *Store) ResetView() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start, s.end = 0, s.endTime
}

// View - снимок для агрегации; границы фиксируются на момент вызова
func (s *Store) View() aggregate.View {
	start, end := s.Bounds()
	return aggregate.View{
		Records: s.records,
		Start:   start,
		End:     end,
		Typed:   s.typed,
	}
}
