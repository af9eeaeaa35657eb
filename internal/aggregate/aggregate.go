package aggregate

import (
	"context"
	"errors"
	"sort"

	"JMLogPump/internal/models"
)

var (
	ErrInvalidWindow = errors.New("window must be positive")
	ErrUnknownMode   = errors.New("unknown mode")
)

// View - снимок лога для одного запроса агрегации.
// Start и End ограничивают перебор окон, но не фильтруют записи.
type View struct {
	Records []models.Record
	Start   int
	End     int
	Typed   bool
}

// Point - значение метрики для окна, начинающегося с Offset секунд от старта
type Point struct {
	Offset int
	Value  float64
}

// Series - точки, упорядоченные по смещению
type Series []Point

// Map возвращает ряд в виде смещение → значение
func (s Series) Map() map[int]float64 {
	m := make(map[int]float64, len(s))
	for _, p := range s {
		m[p.Offset] = p.Value
	}
	return m
}

func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Aggregate вычисляет метрику mode по окнам шириной window секунд.
// Окна идут от v.Start до v.End включительно; запись на границе окна относится к следующему.
// Для меток без записей возвращается ряд нулей, а не ошибка.
func Aggregate(ctx context.Context, v View, window int, label string, mode Mode) (Series, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	spec, ok := modes[mode]
	if !ok {
		return nil, ErrUnknownMode
	}

	acc := &accumulator{
		points: map[int]float64{v.Start: 0},
		start:  v.Start,
	}
	next := v.Start + window

	// первая запись не раньше начала окна просмотра
	row := len(v.Records)
	for i := range v.Records {
		if v.Records[i].SecFromStart >= v.Start {
			row = i
			break
		}
	}

	for acc.start <= v.End && row < len(v.Records) {
		r := &v.Records[row]
		if r.SecFromStart < next {
			if spec.scope == scopeGlobal || r.Label == label {
				spec.accumulate(acc, r, v.Typed)
			}
			row++
			continue
		}

		// запись вне текущего окна: закрываем его и проверяем ту же запись на следующем
		spec.close(acc, window, next, next <= v.End)
		acc.start = next
		next += window
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if acc.start <= v.End {
		spec.close(acc, window, next, false)
	}
	return toSeries(acc.points), nil
}

// close завершает окно acc.start; seed - нужно ли завести следующее окно
func (spec modeSpec) close(a *accumulator, window, next int, seed bool) {
	switch spec.finalize {
	case carry:
		if seed {
			a.points[next] = a.points[a.start]
		}
		return
	case keepLast:
		return
	case perCount:
		if a.count > 0 {
			a.points[a.start] /= float64(a.count)
			a.count = 0
		}
	default:
		a.points[a.start] /= float64(window)
	}
	if seed {
		a.points[next] = 0
	}
}

func toSeries(points map[int]float64) Series {
	s := make(Series, 0, len(points))
	for off, val := range points {
		s = append(s, Point{Offset: off, Value: val})
	}
	sort.Slice(s, func(i, j int) bool { return s[i].Offset < s[j].Offset })
	return s
}
