package sink

import (
	"fmt"
	"time"

	"github.com/banshee-data/ctdlog/internal/ctd"
	"github.com/banshee-data/ctdlog/internal/monitoring"
	"github.com/banshee-data/ctdlog/internal/units"
)

// Log writes one line per sample. With the default units the line is the
// reference form "<temp> °C, <depth> m, <salinity> psu" prefixed with the
// sample time.
type Log struct {
	TemperatureUnit string
	DepthUnit       string
	// Location is the zone timestamps are shown in; nil means UTC.
	Location *time.Location
	// Logf defaults to monitoring.Logf.
	Logf func(format string, v ...interface{})
}

// Emit implements Sink.
func (l *Log) Emit(s ctd.CalibratedSample) error {
	logf := l.Logf
	if logf == nil {
		logf = monitoring.Logf
	}
	logf("%s %s", l.timestamp(s.Time), l.Format(s))
	return nil
}

// Format renders s in the configured display units.
func (l *Log) Format(s ctd.CalibratedSample) string {
	tu, du := l.TemperatureUnit, l.DepthUnit
	if tu == "" {
		tu = units.Celsius
	}
	if du == "" {
		du = units.Metres
	}
	if tu == units.Celsius && du == units.Metres {
		return s.String()
	}
	return fmt.Sprintf("%.2f %s, %.2f %s, %.2f psu",
		units.ConvertTemperature(s.Temperature, tu), units.Symbol(tu),
		units.ConvertDepth(s.Depth, du), units.Symbol(du),
		s.Salinity)
}

func (l *Log) timestamp(t time.Time) string {
	loc := l.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.RFC3339)
}
