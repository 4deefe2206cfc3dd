package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bravejig/bjig/internal/protocol"
)

// useTempConfigDir points the registry at a throwaway XDG config home.
func useTempConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, appName, configFile)
}

func TestDeviceKey(t *testing.T) {
	assert.Equal(t, "2468ACE02468ACE0", DeviceKey(0x2468ACE02468ACE0))
	assert.Equal(t, "0000000000000001", DeviceKey(1))
}

func TestNewRegistryDefaults(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 1, r.Version)
	assert.Equal(t, 38400, r.Serial.BaudRate)
	assert.Equal(t, 5, r.Serial.TimeoutSeconds)
	assert.Empty(t, r.Devices)
}

func TestEnsureDevice(t *testing.T) {
	r := NewRegistry()

	d1 := r.EnsureDevice(0x1234)
	d1.Nickname = "office illuminance"

	d2 := r.EnsureDevice(0x1234)
	assert.Same(t, d1, d2)
	assert.Equal(t, "office illuminance", r.GetDevice(0x1234).Nickname)
	assert.Nil(t, r.GetDevice(0x5678))
}

func TestUpdateDeviceLastSeen(t *testing.T) {
	r := NewRegistry()
	r.UpdateDeviceLastSeen(0x1234, protocol.SensorIlluminance)

	d := r.GetDevice(0x1234)
	require.NotNil(t, d)
	assert.False(t, d.LastSeen.IsZero())
	assert.Equal(t, uint16(protocol.SensorIlluminance), d.SensorType)
	assert.Equal(t, "Illuminance", d.SensorTypeName())

	// A main-unit sighting must not erase the known sensor type.
	r.UpdateDeviceLastSeen(0x1234, protocol.SensorMainUnit)
	assert.Equal(t, uint16(protocol.SensorIlluminance), r.GetDevice(0x1234).SensorType)
}

func TestSaveAndReload(t *testing.T) {
	configPath := useTempConfigDir(t)

	r := NewRegistry()
	r.Serial.Port = "/dev/ttyACM0"
	r.SetDeviceNickname(0x2468ACE02468ACE0, "warehouse temp")
	r.UpdateDeviceLastSeen(0x2468ACE02468ACE0, protocol.SensorTemperatureHumidity)
	require.NoError(t, r.Save())

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# bjig configuration file")

	var loaded Registry
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, 1, loaded.Version)
	assert.Equal(t, "/dev/ttyACM0", loaded.Serial.Port)

	d := loaded.Devices["2468ACE02468ACE0"]
	require.NotNil(t, d)
	assert.Equal(t, "warehouse temp", d.Nickname)
	assert.Equal(t, uint16(protocol.SensorTemperatureHumidity), d.SensorType)
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	configPath := useTempConfigDir(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0700))
	require.NoError(t, os.WriteFile(configPath, []byte("version: 9\n"), 0600))

	_, err := loadRegistryFromDisk()
	assert.ErrorContains(t, err, "unsupported config version")
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	useTempConfigDir(t)

	r, err := loadRegistryFromDisk()
	require.NoError(t, err)
	assert.Equal(t, 1, r.Version)
	assert.Equal(t, 38400, r.Serial.BaudRate)
}
