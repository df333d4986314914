// Package ctd holds the sample types shared by the device link, the
// calibration engine and the sinks, plus the decoder for the probe's raw
// sample frame.
package ctd

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// RawSample is one set of analogue-to-digital counts read from the probe.
type RawSample struct {
	T uint16 `json:"t"`
	P uint16 `json:"p"`
	C uint16 `json:"c"`
}

// CalibratedSample is a RawSample converted to physical units. Counts far
// outside the certificate's range can give NaN or ±Inf; those encode as JSON
// null and decode back to NaN.
type CalibratedSample struct {
	Time        time.Time
	Temperature float64
	Depth       float64
	Salinity    float64
}

type sampleJSON struct {
	Time        time.Time `json:"time"`
	Temperature *float64  `json:"temperature_c"`
	Depth       *float64  `json:"depth_m"`
	Salinity    *float64  `json:"salinity_psu"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func (s CalibratedSample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleJSON{
		Time:        s.Time,
		Temperature: finite(s.Temperature),
		Depth:       finite(s.Depth),
		Salinity:    finite(s.Salinity),
	})
}

func (s *CalibratedSample) UnmarshalJSON(data []byte) error {
	var j sampleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*s = CalibratedSample{
		Time:        j.Time,
		Temperature: orNaN(j.Temperature),
		Depth:       orNaN(j.Depth),
		Salinity:    orNaN(j.Salinity),
	}
	return nil
}

// String returns the reference textual form used in the reader's log output.
func (s CalibratedSample) String() string {
	return fmt.Sprintf("%.2f °C, %.2f m, %.2f psu", s.Temperature, s.Depth, s.Salinity)
}
