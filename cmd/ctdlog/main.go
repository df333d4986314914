package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/ctdlog/internal/calibration"
	"github.com/banshee-data/ctdlog/internal/db"
	"github.com/banshee-data/ctdlog/internal/devicelink"
	"github.com/banshee-data/ctdlog/internal/monitoring"
	"github.com/banshee-data/ctdlog/internal/pipeline"
	"github.com/banshee-data/ctdlog/internal/sink"
	"github.com/banshee-data/ctdlog/internal/timeutil"
	"github.com/banshee-data/ctdlog/internal/version"
)

var (
	port       = flag.String("port", "/dev/ttyUSB0", "Serial port the probe is attached to")
	baud       = flag.Int("baud", devicelink.DefaultBaudRate, "Serial baud rate")
	timeout    = flag.Duration("timeout", devicelink.DefaultReadTimeout, "Serial read timeout")
	certPath   = flag.String("cert", "", "Calibration certificate (JSON); defaults to the built-in Star-Oddi constants")
	cond7      = flag.String("cond7", "", "Override the seventh conductivity term: literal or power")
	csvPath    = flag.String("csv", "", "Also write samples as CSV to this file")
	listen     = flag.String("listen", "", "Debug HTTP listen address, e.g. localhost:8080 (disabled when empty)")
	dbPath     = flag.String("db", "", "Instrument configuration database (SQLite)")
	configName = flag.String("config-name", "default", "Serial config to load from -db")
	count      = flag.Int("count", 0, "Stop after this many samples (0 runs until interrupted)")
	interval   = flag.Duration("interval", 0, "Minimum time between sample requests")
	unitsTemp  = flag.String("units-temp", "c", "Temperature display unit: c or f")
	unitsDepth = flag.String("units-depth", "m", "Depth display unit: m, ft or fathom")
	tz         = flag.String("tz", "UTC", "Timezone for logged timestamps")
	window     = flag.Int("window", 0, "Log a rolling summary every N samples (0 disables)")
	simulate   = flag.Bool("simulate", false, "Read from an in-process simulated probe instead of the serial port")
	verbose    = flag.Bool("v", false, "Log every raw frame")
	importCert = flag.String("import-cert", "", "Store this certificate (JSON) in -db, link it to -config-name and exit")
	exportCert = flag.String("export-cert", "", "Write the calibration that would be used to this JSON file and exit")
	migrateCmd = flag.String("migrate", "", "Database migration action on -db, then exit: status or down")
	versionFlg = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *versionFlg {
		fmt.Println(version.String())
		return
	}

	// Installed before the probe is opened so an interrupt during the
	// handshake still ends with the session closed.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, currentOptions())
	stop()
	if err != nil {
		log.Fatal(err)
	}
}

// run wires the probe, the calibration and the sinks together and samples
// until ctx is cancelled. Every setup failure is returned; pipeline errors
// after a clean start are returned too so the exit status reflects them.
func run(ctx context.Context, o options) error {
	if err := o.validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	monitoring.SetVerbose(o.Verbose)

	var store *db.DB
	if o.DBPath != "" {
		var err error
		store, err = db.NewDB(o.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open config database: %w", err)
		}
		defer store.Close()
	}

	switch {
	case o.Migrate != "":
		return runMigrate(store, o.Migrate)
	case o.ImportCert != "":
		return importCertificate(store, o.ImportCert, o.ConfigName)
	}

	path, portOpts, cfg, err := resolvePort(o, store)
	if err != nil {
		return fmt.Errorf("failed to resolve serial settings: %w", err)
	}
	coeffs, err := resolveCoefficients(o, store, cfg)
	if err != nil {
		return fmt.Errorf("failed to load calibration: %w", err)
	}
	engine, err := calibration.NewEngine(coeffs)
	if err != nil {
		return fmt.Errorf("invalid calibration: %w", err)
	}
	log.Printf("calibration %s / %s, cond7 %s", coeffs.Instrument, coeffs.Certificate, coeffs.Cond7Form)
	if o.ExportCert != "" {
		if err := calibration.SaveCertificate(o.ExportCert, coeffs); err != nil {
			return fmt.Errorf("failed to export calibration: %w", err)
		}
		log.Printf("calibration written to %s", o.ExportCert)
		return nil
	}

	opener := devicelink.SerialOpener
	if o.Simulate {
		sim := devicelink.NewSimulator(simulatedCast())
		opener = sim.Opener()
		path = "simulator"
	}

	session, err := devicelink.Open(path, portOpts, opener)
	if err != nil {
		return fmt.Errorf("failed to open probe: %w", err)
	}
	if err := session.Handshake(); err != nil {
		session.Close()
		return fmt.Errorf("failed to initialise probe: %w", err)
	}
	portDesc := fmt.Sprintf("%s, %d baud, %s timeout", path, session.Options().BaudRate, session.Options().ReadTimeout())
	log.Printf("probe ready on %s (session %s)", portDesc, session.ID)

	broadcast := sink.NewBroadcast()
	sinks, closeSinks, err := buildSinks(o, broadcast)
	if err != nil {
		session.Close()
		return fmt.Errorf("failed to set up output: %w", err)
	}
	defer closeSinks()

	runner := &pipeline.Runner{
		Link:       session,
		Engine:     engine,
		Sink:       sinks,
		Clock:      timeutil.RealClock{},
		MaxSamples: o.Count,
		Interval:   o.Interval,
	}

	var wg sync.WaitGroup
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if o.Listen != "" {
		mux := http.NewServeMux()
		debug := tsweb.Debugger(mux)
		debug.KV("Version", version.Version)
		debug.KV("Port", portDesc)
		debug.KVFunc("Pipeline", func() any { return runner.Stats().String() })
		broadcast.AttachAdminRoutes(debug)
		if store != nil {
			if err := store.AttachAdminRoutes(debug); err != nil {
				session.Close()
				return fmt.Errorf("failed to attach database routes: %w", err)
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveDebug(ctx, o.Listen, mux)
		}()
	}

	runErr := runner.Run(ctx)
	stop()
	broadcast.Close()
	wg.Wait()

	if runErr != nil {
		return runErr
	}
	log.Printf("shutdown complete")
	return nil
}

func serveDebug(ctx context.Context, addr string, h http.Handler) {
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("debug server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
}
