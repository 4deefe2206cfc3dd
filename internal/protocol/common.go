package protocol

import "fmt"

// Protocol envelope constants. Every packet on the BraveJIG serial link
// starts with [protocol_version, packet_type]; all multi-byte integers are
// little-endian.
const (
	ProtocolVersion = 0x01
)

// Packet type codes. Note the reuse: 0x02 carries both JIG Info responses and
// Downlink responses depending on firmware path, and 0x03 carries both DFU
// responses and (in some firmware revisions) uplink traffic. See
// ClassifyAndDecode for the disambiguation rules.
const (
	TypeUplink           = 0x00 // inbound: uplink notification; outbound: downlink request
	TypeDownlinkResponse = 0x01
	TypeJigInfoResponse  = 0x02 // also downlink responses on some paths
	TypeDfuResponse      = 0x03
	TypeErrorLegacy      = 0x04
	TypeError            = 0xFF
)

// Sensor type identifiers assigned by Braveridge to each module family.
const (
	SensorIlluminance        = 0x0121
	SensorAccelerometer      = 0x0122
	SensorTemperatureHumidity = 0x0123
	SensorBarometricPressure = 0x0124
	SensorDistanceRanging    = 0x0125
)

// SensorMainUnit targets the end-device main unit rather than an attached
// sensor. Used for generic parameter get/set and restart commands, and is
// the sensor_id carried by parameter-information uplinks.
const SensorMainUnit = 0x0000

// JIG Info CMD values. The GET_DEVICE_ID and REMOVE_DEVICE_ID families are
// index ranges: index i maps to 0x03+i (i in 0..99) and 0x6C+i (i in 0..98).
// The remove range stops one short because 0x6C+99 would be 0xCF, which is
// GET_DEVICE_ID_ALL.
const (
	CmdRouterStop           = 0x00
	CmdRouterStart          = 0x01
	CmdGetVersion           = 0x02
	CmdGetDeviceIDBase      = 0x03 // ..0x66 for indices 0..99
	CmdGetDeviceIDLast      = 0x66
	CmdGetScanMode          = 0x67
	CmdSetScanModeLongRange = 0x69
	CmdSetScanModeLegacy    = 0x6A
	CmdRemoveDeviceIDAll    = 0x6B
	CmdRemoveDeviceIDBase   = 0x6C // ..0xCE for indices 0..99
	CmdRemoveDeviceIDLast   = 0xCE
	CmdGetDeviceIDAll       = 0xCF
	CmdKeepAlive            = 0xD0
)

// Scan modes accepted by SET_SCAN_MODE.
const (
	ScanModeLongRange = 0
	ScanModeLegacy    = 1
)

// Module (Downlink) CMD values shared by every sensor type.
const (
	ModuleCmdInstantUplink = 0x00
	ModuleCmdSetParameter  = 0x05
	ModuleCmdGetParameter  = 0x0D
	ModuleCmdSensorDfu     = 0x12
	ModuleCmdRestart       = 0xFD
)

// MaxDeviceIndex is the largest device table index the router supports.
const MaxDeviceIndex = 99

// MaxRemoveDeviceIndex is the largest index REMOVE_DEVICE_ID can address.
// One less than MaxDeviceIndex: the CMD after REMOVE_DEVICE_ID_INDEX_98 is
// GET_DEVICE_ID_ALL, not a remove.
const MaxRemoveDeviceIndex = 98

// CmdForDeviceIndex maps a device table index to its GET_DEVICE_ID CMD value.
func CmdForDeviceIndex(index int) (byte, error) {
	if index < 0 || index > MaxDeviceIndex {
		return 0, fmt.Errorf("device index %d out of range (0-%d)", index, MaxDeviceIndex)
	}
	return byte(CmdGetDeviceIDBase + index), nil
}

// CmdForRemoveDeviceIndex maps a device table index to its REMOVE_DEVICE_ID
// CMD value.
func CmdForRemoveDeviceIndex(index int) (byte, error) {
	if index < 0 || index > MaxRemoveDeviceIndex {
		return 0, fmt.Errorf("remove index %d out of range (0-%d)", index, MaxRemoveDeviceIndex)
	}
	return byte(CmdRemoveDeviceIDBase + index), nil
}

// CmdForScanMode maps a scan mode value to its SET_SCAN_MODE CMD value.
func CmdForScanMode(mode int) (byte, error) {
	switch mode {
	case ScanModeLongRange:
		return CmdSetScanModeLongRange, nil
	case ScanModeLegacy:
		return CmdSetScanModeLegacy, nil
	default:
		return 0, fmt.Errorf("invalid scan mode: %d (0=Long Range, 1=Legacy)", mode)
	}
}

// CmdName returns a human-readable name for a JIG Info CMD value.
func CmdName(cmd byte) string {
	switch {
	case cmd == CmdRouterStop:
		return "ROUTER_STOP"
	case cmd == CmdRouterStart:
		return "ROUTER_START"
	case cmd == CmdGetVersion:
		return "GET_VERSION"
	case cmd >= CmdGetDeviceIDBase && cmd <= CmdGetDeviceIDLast:
		return fmt.Sprintf("GET_DEVICE_ID_INDEX_%d", cmd-CmdGetDeviceIDBase)
	case cmd == CmdGetScanMode:
		return "GET_SCAN_MODE"
	case cmd == CmdSetScanModeLongRange:
		return "SET_SCAN_MODE_LONG_RANGE"
	case cmd == CmdSetScanModeLegacy:
		return "SET_SCAN_MODE_LEGACY"
	case cmd == CmdRemoveDeviceIDAll:
		return "REMOVE_DEVICE_ID_ALL"
	case cmd >= CmdRemoveDeviceIDBase && cmd <= CmdRemoveDeviceIDLast:
		return fmt.Sprintf("REMOVE_DEVICE_ID_INDEX_%d", cmd-CmdRemoveDeviceIDBase)
	case cmd == CmdGetDeviceIDAll:
		return "GET_DEVICE_ID_ALL"
	case cmd == CmdKeepAlive:
		return "KEEP_ALIVE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", cmd)
	}
}

// ModuleCmdName returns a human-readable name for a module CMD value.
func ModuleCmdName(cmd byte) string {
	switch cmd {
	case ModuleCmdInstantUplink:
		return "INSTANT_UPLINK"
	case ModuleCmdSetParameter:
		return "SET_PARAMETER"
	case ModuleCmdGetParameter:
		return "GET_PARAMETER"
	case ModuleCmdSensorDfu:
		return "SENSOR_DFU"
	case ModuleCmdRestart:
		return "DEVICE_RESTART"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", cmd)
	}
}

// SensorTypeName returns a human-readable name for a sensor type identifier.
func SensorTypeName(sensorID uint16) string {
	switch sensorID {
	case SensorMainUnit:
		return "Main Unit"
	case SensorIlluminance:
		return "Illuminance"
	case SensorAccelerometer:
		return "Accelerometer"
	case SensorTemperatureHumidity:
		return "Temperature/Humidity"
	case SensorBarometricPressure:
		return "Barometric Pressure"
	case SensorDistanceRanging:
		return "Distance/Ranging"
	default:
		return fmt.Sprintf("Unknown(0x%04X)", sensorID)
	}
}

// ErrorReasonText interprets an error notification reason code. 0x07 is
// not in the vendor protocol sheet but is emitted by real hardware.
func ErrorReasonText(reason byte) string {
	switch reason {
	case 0x01:
		return "invalid request"
	case 0x02:
		return "downlink processing in progress"
	case 0x03, 0x04, 0x05:
		return "reserved"
	case 0x06:
		return "device id not registered at index"
	case 0x07:
		return "device not found"
	default:
		return fmt.Sprintf("unknown error reason: 0x%02x", reason)
	}
}

// ResultText interprets a Downlink response result code.
func ResultText(result byte) string {
	switch result {
	case 0x00:
		return "Success"
	case 0x01:
		return "Invalid Sensor ID"
	case 0x02:
		return "Unsupported CMD"
	case 0x03:
		return "Parameter out of range"
	case 0x04:
		return "Connection failed"
	case 0x05:
		return "Timeout"
	case 0x07:
		return "Device not found"
	case 0x08:
		return "Router busy"
	case 0x09:
		return "Module busy"
	default:
		return fmt.Sprintf("Unknown result: 0x%02X", result)
	}
}
