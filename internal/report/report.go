package report

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"JMLogPump/internal/pipeline"
)

type Report struct {
	RunID        string   `yaml:"run_id"`
	File         string   `yaml:"file"`
	Format       string   `yaml:"format"`
	Records      int      `yaml:"records"`
	DurationSec  int      `yaml:"duration_sec"`
	WindowSec    int      `yaml:"window_sec"`
	View         View     `yaml:"view"`
	Transactions []string `yaml:"transactions,omitempty"`
	Labels       []string `yaml:"labels"`
	Series       []Series `yaml:"series"`
}

type View struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

type Series struct {
	Mode   string  `yaml:"mode"`
	Label  string  `yaml:"label,omitempty"`
	Title  string  `yaml:"title"`
	Points []Point `yaml:"points"`
}

type Point struct {
	Offset int      `yaml:"offset"`
	Value  float64  `yaml:"value"`
	Trend  *float64 `yaml:"trend,omitempty"`
}

// FromAnalysis собирает отчёт по результатам расчёта
func FromAnalysis(a *pipeline.Analysis) *Report {
	start, end := a.Store.Bounds()
	r := &Report{
		RunID:        a.RunID,
		File:         a.File,
		Format:       a.Store.Format().String(),
		Records:      a.Store.Len(),
		DurationSec:  a.Store.EndTime(),
		WindowSec:    a.Window,
		View:         View{Start: start, End: end},
		Transactions: a.Store.Transactions(),
		Labels:       a.Store.Labels(),
		Series:       make([]Series, 0, len(a.Series)),
	}
	for _, s := range a.Series {
		out := Series{
			Mode:   s.Query.Mode.String(),
			Title:  s.Title,
			Points: make([]Point, len(s.Series)),
		}
		if !s.Query.Mode.Global() {
			out.Label = s.Query.Label
		}
		for i, p := range s.Series {
			out.Points[i] = Point{Offset: p.Offset, Value: p.Value}
			if i < len(s.Trend) {
				t := s.Trend[i]
				out.Points[i].Trend = &t
			}
		}
		r.Series = append(r.Series, out)
	}
	return r
}

// Write сериализует отчёт в YAML
func (r *Report) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

// WriteFile записывает отчёт в файл
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := r.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
