package aggregate

import (
	"fmt"
	"strings"

	"JMLogPump/internal/models"
)

// Mode - вид метрики, вычисляемой по окну
type Mode uint8

const (
	ModeBPT       Mode = iota + 1 // пропускная способность по метке, кБ/с
	ModeART                       // среднее время отклика
	ModeLAT                       // средняя латентность
	ModeRPT                       // ответов в секунду
	ModeERR                       // ошибок в секунду
	ModeERRC                      // накопленное число ошибок
	ModeBPTTotal                  // общая пропускная способность
	ModeRPTTotal                  // всего запросов в секунду
	ModeERRTotal                  // всего ошибок в секунду
	ModeERRCTotal                 // накопленное число ошибок по всем меткам
	ModeVUsers                    // активные потоки
)

type scope uint8

const (
	scopeLabel scope = iota
	scopeGlobal
)

type finalizer uint8

const (
	perSecond finalizer = iota // делим на ширину окна
	perCount                   // делим на число записей
	carry                      // переносим значение в следующее окно
	keepLast                   // ничего не делаем
)

// accumulator - состояние открытого окна
type accumulator struct {
	points map[int]float64
	start  int
	count  int
}

type modeSpec struct {
	name       string
	scope      scope
	finalize   finalizer
	accumulate func(a *accumulator, r *models.Record, typed bool)
	total      Mode
}

func sum(field func(*models.Record) int64) func(*accumulator, *models.Record, bool) {
	return func(a *accumulator, r *models.Record, _ bool) {
		a.points[a.start] += float64(field(r))
	}
}

func mean(field func(*models.Record) int64) func(*accumulator, *models.Record, bool) {
	return func(a *accumulator, r *models.Record, _ bool) {
		a.points[a.start] += float64(field(r))
		a.count++
	}
}

func hits(a *accumulator, _ *models.Record, _ bool) {
	a.points[a.start]++
}

func failures(a *accumulator, r *models.Record, _ bool) {
	if r.Failed() {
		a.points[a.start]++
	}
}

// transactionBytes учитывает только транзакции; без иерархии - все записи
func transactionBytes(a *accumulator, r *models.Record, typed bool) {
	if !typed || r.Type == models.Sample {
		a.points[a.start] += float64(r.Bytes)
	}
}

func activeUsers(a *accumulator, r *models.Record, _ bool) {
	if r.HasActiveUsers {
		a.points[a.start] = float64(r.ActiveUsers)
	}
}

func bytesOf(r *models.Record) int64   { return r.Bytes }
func elapsedOf(r *models.Record) int64 { return r.Elapsed }
func latencyOf(r *models.Record) int64 { return r.Latency }

var modes = map[Mode]modeSpec{
	ModeBPT:       {name: "bpt", scope: scopeLabel, finalize: perSecond, accumulate: sum(bytesOf), total: ModeBPTTotal},
	ModeART:       {name: "art", scope: scopeLabel, finalize: perCount, accumulate: mean(elapsedOf)},
	ModeLAT:       {name: "lat", scope: scopeLabel, finalize: perCount, accumulate: mean(latencyOf)},
	ModeRPT:       {name: "rpt", scope: scopeLabel, finalize: perSecond, accumulate: hits, total: ModeRPTTotal},
	ModeERR:       {name: "err", scope: scopeLabel, finalize: perSecond, accumulate: failures, total: ModeERRTotal},
	ModeERRC:      {name: "errc", scope: scopeLabel, finalize: carry, accumulate: failures, total: ModeERRCTotal},
	ModeBPTTotal:  {name: "bpt_total", scope: scopeGlobal, finalize: perSecond, accumulate: transactionBytes},
	ModeRPTTotal:  {name: "rpt_total", scope: scopeGlobal, finalize: perSecond, accumulate: hits},
	ModeERRTotal:  {name: "err_total", scope: scopeGlobal, finalize: perSecond, accumulate: failures},
	ModeERRCTotal: {name: "errc_total", scope: scopeGlobal, finalize: carry, accumulate: failures},
	ModeVUsers:    {name: "vusers", scope: scopeGlobal, finalize: keepLast, accumulate: activeUsers},
}

// ChartModes - метрики в порядке меню графиков
var ChartModes = []Mode{ModeART, ModeLAT, ModeRPT, ModeBPT, ModeERR, ModeERRC, ModeVUsers}

func (m Mode) String() string {
	if spec, ok := modes[m]; ok {
		return spec.name
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode разбирает имя метрики: bpt, art, lat, rpt, err, errc, *_total, vusers
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, spec := range modes {
		if spec.name == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Global сообщает, считается ли метрика по всем записям независимо от метки
func (m Mode) Global() bool {
	return modes[m].scope == scopeGlobal
}

// Total возвращает парную общую метрику (bpt → bpt_total и т.д.)
func (m Mode) Total() (Mode, bool) {
	t := modes[m].total
	return t, t != 0
}

// Units - единицы отображения
type Units struct {
	MegabytesPerSecond bool // пропускная способность в МБ/с вместо кБ/с
	Seconds            bool // время отклика и латентность в секундах вместо мс
}

// Title - заголовок графика для метрики
func (m Mode) Title(u Units) string {
	timeUnit := "ms"
	if u.Seconds {
		timeUnit = "s"
	}
	rateUnit := "kB/s"
	if u.MegabytesPerSecond {
		rateUnit = "MB/s"
	}
	switch m {
	case ModeART:
		return "Average Response Time (" + timeUnit + ")"
	case ModeLAT:
		return "Average Latency (" + timeUnit + ")"
	case ModeRPT:
		return "Responses per Second"
	case ModeBPT:
		return "Throughput (" + rateUnit + ")"
	case ModeERR:
		return "Error Rate"
	case ModeERRC:
		return "Error Count"
	case ModeVUsers:
		return "Active Threads"
	case ModeBPTTotal:
		return "Total Throughput"
	case ModeRPTTotal:
		return "Total Hits"
	case ModeERRTotal:
		return "Total Error Rate"
	case ModeERRCTotal:
		return "Total Error Count"
	}
	return m.String()
}

// Scale переводит значения ряда в выбранные единицы. Исходный ряд не меняется.
func Scale(s Series, m Mode, u Units) Series {
	div := 1.0
	switch m {
	case ModeBPT, ModeBPTTotal:
		if u.MegabytesPerSecond {
			div = 1024
		}
	case ModeART, ModeLAT:
		if u.Seconds {
			div = 1000
		}
	}
	out := make(Series, len(s))
	for i, p := range s {
		out[i] = Point{Offset: p.Offset, Value: p.Value / div}
	}
	return out
}
