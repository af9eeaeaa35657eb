package aggregate

import "errors"

// TrendWindow - ширина скользящего среднего
const TrendWindow = 10

var ErrTooFewPoints = errors.New("too few points for trend")

// Smooth строит центрированное скользящее среднее по TrendWindow точкам.
// Первые и последние TrendWindow/2 точек копируются без изменений.
func Smooth(values []float64) ([]float64, error) {
	if len(values) < TrendWindow {
		return nil, ErrTooFewPoints
	}
	half := TrendWindow / 2
	out := make([]float64, len(values))
	copy(out[:half], values[:half])
	copy(out[len(values)-half:], values[len(values)-half:])
	for i := half; i < len(values)-half; i++ {
		var avg float64
		for j := i - half; j < i+half; j++ {
			avg += values[j] / TrendWindow
		}
		out[i] = avg
	}
	return out, nil
}
