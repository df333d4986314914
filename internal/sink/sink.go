// Package sink holds the consumers of calibrated samples: log output, CSV
// export, a live broadcast for the debug server and a rolling summary.
package sink

import (
	"errors"

	"github.com/banshee-data/ctdlog/internal/ctd"
)

// Sink receives each calibrated sample the pipeline produces. Emit is called
// from the pipeline goroutine and should not block for long.
type Sink interface {
	Emit(ctd.CalibratedSample) error
}

// Func adapts a function to a Sink.
type Func func(ctd.CalibratedSample) error

// Emit calls f(s).
func (f Func) Emit(s ctd.CalibratedSample) error { return f(s) }

// Multi hands every sample to each sink in order. All sinks see the sample
// even if an earlier one fails; the failures are joined.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(s ctd.CalibratedSample) error {
	var errs []error
	for _, sk := range m {
		if err := sk.Emit(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
