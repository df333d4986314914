package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/ctdlog/internal/ctd"
)

var csvHeader = []string{"time", "temperature_c", "depth_m", "salinity_psu"}

// CSV writes samples as rows to w, flushing after every row so the file can
// be followed while a cast is in progress. The caller owns w.
type CSV struct {
	mu     sync.Mutex
	w      *csv.Writer
	header bool
}

// NewCSV returns a CSV sink writing to w.
func NewCSV(w io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(w)}
}

// Emit implements Sink.
func (c *CSV) Emit(s ctd.CalibratedSample) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.header {
		if err := c.w.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
		c.header = true
	}

	row := []string{
		s.Time.UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(s.Temperature, 'f', 4, 64),
		strconv.FormatFloat(s.Depth, 'f', 4, 64),
		strconv.FormatFloat(s.Salinity, 'f', 4, 64),
	}
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
