package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/banshee-data/ctdlog/internal/calibration"
	"github.com/banshee-data/ctdlog/internal/ctd"
	"github.com/banshee-data/ctdlog/internal/db"
	"github.com/banshee-data/ctdlog/internal/devicelink"
	"github.com/banshee-data/ctdlog/internal/sink"
	"github.com/banshee-data/ctdlog/internal/units"
)

// options is the parsed command line. set records which flags were given
// explicitly, so they can override values loaded from the database.
type options struct {
	Port       string
	Baud       int
	Timeout    time.Duration
	CertPath   string
	Cond7      string
	CSVPath    string
	Listen     string
	DBPath     string
	ConfigName string
	Count      int
	Interval   time.Duration
	UnitsTemp  string
	UnitsDepth string
	TZ         string
	Window     int
	Simulate   bool
	Verbose    bool
	ImportCert string
	ExportCert string
	Migrate    string

	set map[string]bool
}

func currentOptions() options {
	o := options{
		Port:       *port,
		Baud:       *baud,
		Timeout:    *timeout,
		CertPath:   *certPath,
		Cond7:      *cond7,
		CSVPath:    *csvPath,
		Listen:     *listen,
		DBPath:     *dbPath,
		ConfigName: *configName,
		Count:      *count,
		Interval:   *interval,
		UnitsTemp:  *unitsTemp,
		UnitsDepth: *unitsDepth,
		TZ:         *tz,
		Window:     *window,
		Simulate:   *simulate,
		Verbose:    *verbose,
		ImportCert: *importCert,
		ExportCert: *exportCert,
		Migrate:    *migrateCmd,
		set:        make(map[string]bool),
	}
	flag.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o
}

func (o options) validate() error {
	if err := units.ValidateDisplay(o.UnitsTemp, o.UnitsDepth); err != nil {
		return err
	}
	if !units.IsTimezoneValid(o.TZ) {
		return fmt.Errorf("unknown timezone %q", o.TZ)
	}
	if o.Cond7 != "" {
		if _, err := calibration.ParseCond7Form(o.Cond7); err != nil {
			return err
		}
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", o.Timeout)
	}
	if o.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", o.Count)
	}
	if o.Window < 0 {
		return fmt.Errorf("window must not be negative, got %d", o.Window)
	}
	if o.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %s", o.Interval)
	}
	switch o.Migrate {
	case "", "status", "down":
	default:
		return fmt.Errorf("unknown migrate action %q: expected status or down", o.Migrate)
	}
	if (o.Migrate != "" || o.ImportCert != "") && o.DBPath == "" {
		return errors.New("-migrate and -import-cert need -db")
	}
	if o.Port == "" && o.DBPath == "" && !o.Simulate {
		return errors.New("a serial port is required")
	}
	return nil
}

// resolvePort decides which device to open and how. Without a store the
// flags are used as given. With one, the named serial config supplies the
// defaults and explicitly set flags override it.
func resolvePort(o options, store *db.DB) (string, devicelink.PortOptions, *db.SerialConfig, error) {
	path := o.Port
	opts := devicelink.PortOptions{
		BaudRate:      o.Baud,
		ReadTimeoutMs: int(o.Timeout / time.Millisecond),
	}

	var cfg *db.SerialConfig
	if store != nil {
		var err error
		cfg, err = store.GetSerialConfigByName(o.ConfigName)
		if err != nil {
			return "", opts, nil, err
		}
		if cfg == nil {
			return "", opts, nil, fmt.Errorf("no serial config named %q", o.ConfigName)
		}
		if !cfg.Enabled {
			return "", opts, nil, fmt.Errorf("serial config %q is disabled", o.ConfigName)
		}

		stored, err := cfg.PortOptions()
		if err != nil {
			return "", opts, nil, err
		}
		merged := stored
		if !o.set["port"] {
			path = cfg.PortPath
		}
		if o.set["baud"] {
			merged.BaudRate = o.Baud
		}
		if o.set["timeout"] {
			merged.ReadTimeoutMs = opts.ReadTimeoutMs
		}
		if !merged.Equal(stored) {
			log.Printf("serial config %q: flags override stored settings (%d baud, %dms timeout)",
				cfg.Name, merged.BaudRate, merged.ReadTimeoutMs)
		}
		opts = merged
	}

	normalised, err := opts.Normalise()
	if err != nil {
		return "", opts, nil, err
	}
	return path, normalised, cfg, nil
}

// resolveCoefficients picks the calibration: an explicit -cert file first,
// then the certificate linked to the serial config, then the built-in
// Star-Oddi constants. -cond7 overrides whichever was chosen.
func resolveCoefficients(o options, store *db.DB, cfg *db.SerialConfig) (*calibration.Coefficients, error) {
	var c *calibration.Coefficients
	switch {
	case o.CertPath != "":
		loaded, err := calibration.LoadCertificate(o.CertPath)
		if err != nil {
			return nil, err
		}
		c = loaded
	case store != nil && cfg != nil && cfg.CertificateID != nil:
		stored, err := store.GetCertificate(*cfg.CertificateID)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, fmt.Errorf("serial config %q references missing certificate %d", cfg.Name, *cfg.CertificateID)
		}
		c = stored
	default:
		builtin := calibration.StarOddi()
		c = &builtin
	}

	if o.Cond7 != "" {
		form, err := calibration.ParseCond7Form(o.Cond7)
		if err != nil {
			return nil, err
		}
		c.Cond7Form = form
	}
	return c, nil
}

// buildSinks assembles the outputs. The returned function closes any files
// that were opened; it is safe to call more than once.
func buildSinks(o options, broadcast *sink.Broadcast) (sink.Sink, func(), error) {
	loc, err := units.DisplayLocation(o.TZ)
	if err != nil {
		return nil, func() {}, err
	}

	sinks := sink.Multi{
		&sink.Log{TemperatureUnit: o.UnitsTemp, DepthUnit: o.UnitsDepth, Location: loc},
	}
	if broadcast != nil {
		sinks = append(sinks, broadcast)
	}

	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
				log.Printf("failed to close %s: %v", f.Name(), err)
			}
		}
		files = nil
	}

	if o.CSVPath != "" {
		f, err := os.Create(o.CSVPath)
		if err != nil {
			return nil, closeAll, fmt.Errorf("failed to create csv file: %w", err)
		}
		files = append(files, f)
		sinks = append(sinks, sink.NewCSV(f))
	}
	if o.Window > 0 {
		sinks = append(sinks, sink.NewWindow(o.Window))
	}
	return sinks, closeAll, nil
}

// simulatedCast returns counts for a probe being lowered and raised
// repeatedly: pressure ramps down and back over 200 samples while
// temperature and conductivity drift with it.
func simulatedCast() func() ctd.RawSample {
	i := 0
	return func() ctd.RawSample {
		phase := i % 200
		i++
		step := phase
		if phase >= 100 {
			step = 199 - phase
		}
		return ctd.RawSample{
			T: uint16(1800 + 4*step),
			P: uint16(340 + 2*step),
			C: uint16(2400 - 3*step),
		}
	}
}
