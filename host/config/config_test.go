package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kioskctl/host/serial"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kiosk.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, time.Second, cfg.Serial.ReadTimeout)
	assert.Equal(t, 20*time.Millisecond, cfg.Sync.RowDelay)
	assert.Equal(t, 5, cfg.Sync.ProgressEvery)
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := newLoader(map[string]string{}).withEnv().withFile("").withDefaults().build()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
[serial]
device = "/dev/ttyUSB0"
baud = 9600
driver = "tarm"

[sync]
row_delay = "50ms"

[log]
format = "json"
`)

	cfg, err := newLoader(map[string]string{}).withEnv().withFile(path).withDefaults().build()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Device)
	assert.Equal(t, 9600, cfg.Serial.Baud)
	assert.Equal(t, "tarm", cfg.Serial.Driver)
	assert.Equal(t, 50*time.Millisecond, cfg.Sync.RowDelay)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, time.Second, cfg.Serial.ReadTimeout, "unset keys keep defaults")
	assert.Equal(t, "kiosk.db", cfg.Store.Path)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "[serial]\ndevice = \"/dev/ttyUSB0\"\nbaud = 9600\n")
	environ := map[string]string{
		"KIOSK_SERIAL_DEVICE":  "/dev/ttyACM1",
		"KIOSK_SYNC_ROW_DELAY": "30ms",
		"KIOSK_STORE_PATH":     "/var/lib/kiosk/kiosk.db",
	}

	cfg, err := newLoader(environ).withEnv().withFile(path).withDefaults().build()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM1", cfg.Serial.Device)
	assert.Equal(t, 9600, cfg.Serial.Baud)
	assert.Equal(t, 30*time.Millisecond, cfg.Sync.RowDelay)
	assert.Equal(t, "/var/lib/kiosk/kiosk.db", cfg.Store.Path)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		environ map[string]string
		want    string
	}{
		{"unsupported baud", "[serial]\nbaud = 57600\n", nil, "serial.baud"},
		{"unknown driver", "[serial]\ndriver = \"ftdi\"\n", nil, "serial.driver"},
		{"unknown key", "[serial]\nparity = \"even\"\n", nil, "unknown key"},
		{"malformed toml", "[serial\n", nil, "read"},
		{"bad env duration", "", map[string]string{"KIOSK_SERIAL_READ_TIMEOUT": "soon"}, "parse environment"},
		{"negative delay", "[sync]\nrow_delay = \"-1ms\"\n", nil, "sync.row_delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			environ := tt.environ
			if environ == nil {
				environ = map[string]string{}
			}
			_, err := newLoader(environ).withEnv().withFile(writeFile(t, tt.content)).withDefaults().build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestSerialPort(t *testing.T) {
	cfg := Default()
	cfg.Serial.Device = "COM3"
	cfg.Serial.Baud = 9600
	cfg.Serial.Driver = "tarm"

	port := cfg.SerialPort()
	assert.Equal(t, "COM3", port.Device)
	assert.Equal(t, 9600, port.Baud)
	assert.Equal(t, serial.DriverTarm, port.Driver)
	assert.Equal(t, time.Second, port.ReadTimeout)
}

func TestFileExists(t *testing.T) {
	assert.True(t, FileExists(writeFile(t, "")))
	assert.False(t, FileExists(t.TempDir()))
	assert.False(t, FileExists(filepath.Join(t.TempDir(), "nope")))
}
