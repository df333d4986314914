package main

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ctdlog/internal/calibration"
	"github.com/banshee-data/ctdlog/internal/ctd"
	"github.com/banshee-data/ctdlog/internal/db"
	"github.com/banshee-data/ctdlog/internal/monitoring"
	"github.com/banshee-data/ctdlog/internal/sink"
	"github.com/banshee-data/ctdlog/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func testOptions() options {
	return options{
		Port:       "/dev/ttyUSB0",
		Baud:       4800,
		Timeout:    2 * time.Second,
		ConfigName: "default",
		UnitsTemp:  "c",
		UnitsDepth: "m",
		TZ:         "UTC",
		set:        map[string]bool{},
	}
}

func openStore(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*options)
	}{
		{"temperature unit", func(o *options) { o.UnitsTemp = "k" }},
		{"depth unit", func(o *options) { o.UnitsDepth = "league" }},
		{"timezone", func(o *options) { o.TZ = "Mars/Olympus" }},
		{"cond7", func(o *options) { o.Cond7 = "square" }},
		{"timeout", func(o *options) { o.Timeout = 0 }},
		{"count", func(o *options) { o.Count = -1 }},
		{"window", func(o *options) { o.Window = -5 }},
		{"interval", func(o *options) { o.Interval = -time.Second }},
		{"no port", func(o *options) { o.Port = "" }},
		{"migrate action", func(o *options) { o.Migrate = "sideways"; o.DBPath = "x.db" }},
		{"migrate without db", func(o *options) { o.Migrate = "status" }},
		{"import without db", func(o *options) { o.ImportCert = "cert.json" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := testOptions()
			tt.modify(&o)
			assert.Error(t, o.validate())
		})
	}

	o := testOptions()
	o.Port = ""
	o.Simulate = true
	assert.NoError(t, o.validate(), "the simulator needs no port")
}

func TestResolvePort_FlagsOnly(t *testing.T) {
	o := testOptions()
	o.Baud = 9600
	o.Timeout = 500 * time.Millisecond

	path, opts, cfg, err := resolvePort(o, nil)
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.Equal(t, "/dev/ttyUSB0", path)
	assert.Equal(t, 9600, opts.BaudRate)
	assert.Equal(t, 500*time.Millisecond, opts.ReadTimeout())
	assert.Equal(t, "N", opts.Parity)
}

func TestResolvePort_InvalidBaud(t *testing.T) {
	o := testOptions()
	o.Baud = 1234
	_, _, _, err := resolvePort(o, nil)
	assert.Error(t, err)
}

func TestResolvePort_StoreWithOverrides(t *testing.T) {
	store := openStore(t)
	_, err := store.CreateSerialConfig(&db.SerialConfig{
		Name: "mooring", PortPath: "/dev/ttyS3", BaudRate: 9600, DataBits: 8, StopBits: 2,
		Parity: "E", ReadTimeoutMs: 1000, Enabled: true,
	})
	require.NoError(t, err)

	o := testOptions()
	o.ConfigName = "mooring"

	path, opts, cfg, err := resolvePort(o, store)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyS3", path)
	assert.Equal(t, 9600, opts.BaudRate)
	assert.Equal(t, 2, opts.StopBits)
	assert.Equal(t, "E", opts.Parity)
	assert.Equal(t, time.Second, opts.ReadTimeout())

	o.Port = "/dev/ttyUSB7"
	o.Baud = 19200
	o.set = map[string]bool{"port": true, "baud": true}
	path, opts, _, err = resolvePort(o, store)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB7", path)
	assert.Equal(t, 19200, opts.BaudRate)
	assert.Equal(t, "E", opts.Parity, "unset flags keep stored values")
}

func TestResolvePort_StoreErrors(t *testing.T) {
	store := openStore(t)

	o := testOptions()
	o.ConfigName = "missing"
	_, _, _, err := resolvePort(o, store)
	assert.ErrorContains(t, err, `no serial config named "missing"`)

	_, err = store.CreateSerialConfig(&db.SerialConfig{Name: "spare", PortPath: "/dev/ttyS9", BaudRate: 4800, DataBits: 8, StopBits: 1, Parity: "N"})
	require.NoError(t, err)
	o.ConfigName = "spare"
	_, _, _, err = resolvePort(o, store)
	assert.ErrorContains(t, err, "disabled")
}

func TestResolveCoefficients_BuiltIn(t *testing.T) {
	c, err := resolveCoefficients(testOptions(), nil, nil)
	require.NoError(t, err)
	want := calibration.StarOddi()
	assert.Equal(t, &want, c)
}

func TestResolveCoefficients_Cond7Override(t *testing.T) {
	o := testOptions()
	o.Cond7 = "power"
	c, err := resolveCoefficients(o, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, calibration.Cond7Power, c.Cond7Form)
}

func TestResolveCoefficients_File(t *testing.T) {
	c := calibration.StarOddi()
	c.Instrument = "S9999"
	path := filepath.Join(t.TempDir(), "cert.json")
	require.NoError(t, calibration.SaveCertificate(path, &c))

	o := testOptions()
	o.CertPath = path
	got, err := resolveCoefficients(o, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "S9999", got.Instrument)

	o.CertPath = filepath.Join(t.TempDir(), "missing.json")
	_, err = resolveCoefficients(o, nil, nil)
	assert.Error(t, err)
}

func TestResolveCoefficients_Stored(t *testing.T) {
	store := openStore(t)
	c := calibration.StarOddi()
	c.Instrument = "S4242"
	id, err := store.SaveCertificate(&c)
	require.NoError(t, err)

	cfg := &db.SerialConfig{Name: "default", CertificateID: &id}
	got, err := resolveCoefficients(testOptions(), store, cfg)
	require.NoError(t, err)
	assert.Equal(t, "S4242", got.Instrument)

	missing := id + 100
	cfg.CertificateID = &missing
	_, err = resolveCoefficients(testOptions(), store, cfg)
	assert.ErrorContains(t, err, "missing certificate")
}

func TestBuildSinks_CSVAndWindow(t *testing.T) {
	o := testOptions()
	o.CSVPath = filepath.Join(t.TempDir(), "cast.csv")
	o.Window = 2

	out, closeSinks, err := buildSinks(o, sink.NewBroadcast())
	require.NoError(t, err)

	multi, ok := out.(sink.Multi)
	require.True(t, ok)
	assert.Len(t, multi, 4)

	require.NoError(t, out.Emit(ctd.CalibratedSample{Time: time.Unix(0, 0), Temperature: 10, Depth: 1, Salinity: 35}))
	closeSinks()
	closeSinks()

	data, err := os.ReadFile(o.CSVPath)
	require.NoError(t, err)
	assert.Equal(t, "time,temperature_c,depth_m,salinity_psu\n1970-01-01T00:00:00Z,10.0000,1.0000,35.0000\n", string(data))
}

func TestBuildSinks_BadCSVPath(t *testing.T) {
	o := testOptions()
	o.CSVPath = filepath.Join(t.TempDir(), "no-such-dir", "cast.csv")
	_, _, err := buildSinks(o, nil)
	assert.Error(t, err)
}

func TestSimulatedCast(t *testing.T) {
	next := simulatedCast()
	first := next()
	assert.Equal(t, ctd.RawSample{T: 1800, P: 340, C: 2400}, first)

	var deepest ctd.RawSample
	for i := 1; i < 200; i++ {
		s := next()
		if s.P > deepest.P {
			deepest = s
		}
	}
	assert.Equal(t, uint16(340+2*99), deepest.P)
	assert.Equal(t, first, next(), "the cast repeats every 200 samples")
}

func TestRun_Simulated(t *testing.T) {
	o := testOptions()
	o.Simulate = true
	o.Timeout = 10 * time.Millisecond
	o.set["timeout"] = true
	o.Count = 3
	o.DBPath = filepath.Join(t.TempDir(), "config.db")
	o.CSVPath = filepath.Join(t.TempDir(), "cast.csv")

	require.NoError(t, run(context.Background(), o))

	f, err := os.Open(o.CSVPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"time", "temperature_c", "depth_m", "salinity_psu"}, rows[0])
}

func TestRun_CancelledBeforeSampling(t *testing.T) {
	logs := testutil.CaptureLogs(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := testOptions()
	o.Simulate = true
	o.Timeout = 10 * time.Millisecond
	o.set["timeout"] = true
	o.CSVPath = filepath.Join(t.TempDir(), "cast.csv")

	require.NoError(t, run(ctx, o))

	data, err := os.ReadFile(o.CSVPath)
	require.NoError(t, err)
	assert.Equal(t, "time,temperature_c,depth_m,salinity_psu\n", string(data))
	assert.Contains(t, logs(), "pipeline stopped: 0 cycles, 0 emitted, 0 dropped (link 0, frame 0, sink 0)")
}

func TestRun_InvalidFlags(t *testing.T) {
	o := testOptions()
	o.UnitsTemp = "rankine"
	assert.ErrorContains(t, run(context.Background(), o), "invalid flags")
}

func TestRun_OpenFailure(t *testing.T) {
	o := testOptions()
	o.Port = filepath.Join(t.TempDir(), "no-such-tty")
	assert.ErrorContains(t, run(context.Background(), o), "failed to open probe")
}
