package config

import (
	"fmt"
	"time"

	"github.com/bravejig/bjig/internal/protocol"
)

// Registry is the entire user configuration file: serial link preferences
// plus user-defined metadata for known modules.
type Registry struct {
	Version int                `yaml:"version"`
	Serial  *SerialPrefs       `yaml:"serial,omitempty"`
	Devices map[string]*Device `yaml:"devices,omitempty"` // keyed by 16-hex device ID
}

// SerialPrefs holds the default link parameters. CLI flags override them.
type SerialPrefs struct {
	Port           string `yaml:"port,omitempty"`
	BaudRate       int    `yaml:"baud_rate,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// Device is user-defined metadata for one known module. The router only
// stores bare device IDs; nicknames and sensor types are client-side.
type Device struct {
	Nickname   string    `yaml:"nickname,omitempty"`
	SensorType uint16    `yaml:"sensor_type,omitempty"`
	LastSeen   time.Time `yaml:"last_seen,omitempty"`
}

// SensorTypeName renders the device's sensor type for display.
func (d *Device) SensorTypeName() string {
	return protocol.SensorTypeName(d.SensorType)
}

// DeviceKey renders a device ID in the registry's key format.
func DeviceKey(deviceID uint64) string {
	return fmt.Sprintf("%016X", deviceID)
}

// NewRegistry creates a Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Devices: make(map[string]*Device),
		Serial: &SerialPrefs{
			BaudRate:       38400,
			TimeoutSeconds: 5,
		},
	}
}

// GetDevice retrieves metadata for a device ID, or nil if unknown.
func (r *Registry) GetDevice(deviceID uint64) *Device {
	return r.Devices[DeviceKey(deviceID)]
}

// EnsureDevice returns the entry for a device ID, creating it if needed.
func (r *Registry) EnsureDevice(deviceID uint64) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	key := DeviceKey(deviceID)
	if device, exists := r.Devices[key]; exists {
		return device
	}
	device := &Device{}
	r.Devices[key] = device
	return device
}

// UpdateDeviceLastSeen stamps a device as seen now, recording its sensor
// type when known.
func (r *Registry) UpdateDeviceLastSeen(deviceID uint64, sensorType uint16) {
	device := r.EnsureDevice(deviceID)
	device.LastSeen = time.Now()
	if sensorType != protocol.SensorMainUnit {
		device.SensorType = sensorType
	}
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(deviceID uint64, nickname string) {
	r.EnsureDevice(deviceID).Nickname = nickname
}
