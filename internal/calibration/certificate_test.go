package calibration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadCertificate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "probe.json")

	want := StarOddi()
	want.Instrument = "S9876"
	require.NoError(t, SaveCertificate(path, &want))

	got, err := LoadCertificate(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("certificate mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCertificate_WrongExtension(t *testing.T) {
	_, err := LoadCertificate(filepath.Join(t.TempDir(), "probe.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json extension")
}

func TestLoadCertificate_Missing(t *testing.T) {
	_, err := LoadCertificate(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat")
}

func TestLoadCertificate_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.json")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat(" ", maxCertificateSize+1)), 0o644))
	_, err := LoadCertificate(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestParseCertificate_UnknownField(t *testing.T) {
	_, err := ParseCertificate([]byte(`{"cond7_form": "literal", "tprr": 21.3}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse certificate JSON")
}

func TestParseCertificate_Invalid(t *testing.T) {
	// Parses but leaves the range breakpoints equal.
	_, err := ParseCertificate([]byte(`{"cond7_form": "power", "gravity": 1, "seawater_density": 1, "salinity": {"standard_ratio": 42.914}}`))
	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "high_range", ce.Field)
}

func TestMarshalCertificate_RejectsInvalid(t *testing.T) {
	c := StarOddi()
	c.Cond7Form = ""
	_, err := MarshalCertificate(&c)
	assert.Error(t, err)
}
