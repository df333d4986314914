package sink

import (
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/ctdlog/internal/ctd"
	"github.com/banshee-data/ctdlog/internal/monitoring"
)

// Summary describes one quantity over the window.
type Summary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// WindowSummary is the rolling summary of the last N samples.
type WindowSummary struct {
	N           int     `json:"n"`
	Temperature Summary `json:"temperature_c"`
	Depth       Summary `json:"depth_m"`
	Salinity    Summary `json:"salinity_psu"`
}

// Window keeps the last Size samples in memory and logs their summary each
// time another Size samples have arrived. Nothing is retained beyond the
// window.
type Window struct {
	Size int
	Logf func(format string, v ...interface{})

	mu    sync.Mutex
	temp  []float64
	depth []float64
	sal   []float64
	seen  int
}

// NewWindow returns a Window over the last size samples.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{Size: size}
}

// Emit implements Sink.
func (w *Window) Emit(s ctd.CalibratedSample) error {
	w.mu.Lock()
	w.temp = push(w.temp, s.Temperature, w.Size)
	w.depth = push(w.depth, s.Depth, w.Size)
	w.sal = push(w.sal, s.Salinity, w.Size)
	w.seen++
	report := w.seen%w.Size == 0
	w.mu.Unlock()

	if report {
		sum := w.Summary()
		logf := w.Logf
		if logf == nil {
			logf = monitoring.Logf
		}
		logf("last %d samples: temperature %.3f±%.3f °C, depth %.2f±%.2f m (%.2f..%.2f), salinity %.3f±%.3f psu",
			sum.N,
			sum.Temperature.Mean, sum.Temperature.StdDev,
			sum.Depth.Mean, sum.Depth.StdDev, sum.Depth.Min, sum.Depth.Max,
			sum.Salinity.Mean, sum.Salinity.StdDev)
	}
	return nil
}

// Summary returns the statistics of the samples currently in the window.
func (w *Window) Summary() WindowSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WindowSummary{
		N:           len(w.temp),
		Temperature: summarise(w.temp),
		Depth:       summarise(w.depth),
		Salinity:    summarise(w.sal),
	}
}

func push(xs []float64, v float64, size int) []float64 {
	xs = append(xs, v)
	if len(xs) > size {
		xs = xs[len(xs)-size:]
	}
	return xs
}

func summarise(xs []float64) Summary {
	if len(xs) == 0 {
		return Summary{}
	}
	s := Summary{Min: floats.Min(xs), Max: floats.Max(xs)}
	if len(xs) == 1 {
		s.Mean = xs[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
	return s
}
