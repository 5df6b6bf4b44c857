package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	goqrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaqqye/training_qr_backend/internal/qrcode"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QR_BUFFER_MINUTES", "")
	t.Setenv("QR_PARTIAL_POLICY", "")
	t.Setenv("APP_TIMEZONE", "")
	t.Setenv("QR_DAILY_WINDOW", "")

	cfg := Load()
	buffer, err := cfg.QRBuffer()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, buffer)
	assert.Equal(t, "rollback", cfg.QRPartialPolicy)
	assert.Equal(t, 10*time.Second, cfg.QRRenderTimeout)
	assert.True(t, cfg.QRDailyWindow)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QR_BUFFER_MINUTES", "30")
	t.Setenv("QR_PARTIAL_POLICY", "KEEP")
	t.Setenv("QR_DAILY_WINDOW", "false")
	t.Setenv("SEED_HALLS", "Main Hall, Board Room ,,")
	t.Setenv("LOG_MAX_SIZE_MB", "not-a-number")

	cfg := Load()
	buffer, err := cfg.QRBuffer()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, buffer)
	assert.Equal(t, "keep", cfg.QRPartialPolicy)
	assert.False(t, cfg.QRDailyWindow)
	assert.Equal(t, []string{"Main Hall", "Board Room"}, cfg.SeedHalls)
	assert.Equal(t, 25, cfg.LogMaxSizeMB)
}

func TestQRBufferMustBePositive(t *testing.T) {
	for _, minutes := range []string{"0", "-5"} {
		t.Setenv("QR_BUFFER_MINUTES", minutes)
		_, err := Load().QRBuffer()
		assert.Error(t, err, minutes)
	}
}

func TestLocationRejectsUnknownZone(t *testing.T) {
	cfg := &Config{Timezone: "Mars/Olympus_Mons"}
	_, err := cfg.Location()
	assert.Error(t, err)
}

func TestLoadQRStyles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "styles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
attendance:
  fill: "#000000"
  recovery: medium
hall:
  moduleSize: 10
`), 0o644))

	styles, err := LoadQRStyles(path)
	require.NoError(t, err)
	assert.Equal(t, "#000000", styles[qrcode.KindAttendance].Fill)
	assert.Equal(t, "#f0f0f0", styles[qrcode.KindAttendance].Background)
	assert.Equal(t, goqrcode.Medium, styles[qrcode.KindAttendance].Recovery)
	assert.Equal(t, 10, styles[qrcode.KindHall].ModuleSize)
	assert.Equal(t, qrcode.DefaultStyles()[qrcode.KindFeedback], styles[qrcode.KindFeedback])
}

func TestLoadQRStylesErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadQRStyles(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("poster:\n  fill: red\n"), 0o644))
	_, err = LoadQRStyles(bad)
	assert.ErrorContains(t, err, "unknown kind")

	styles, err := LoadQRStyles("")
	require.NoError(t, err)
	assert.Equal(t, qrcode.DefaultStyles(), styles)
}
