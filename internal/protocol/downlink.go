package protocol

import (
	"encoding/binary"
	"time"
)

// DownlinkRequest is a command addressed to a specific module. sensor_id
// 0x0000 targets the end-device main unit (generic parameter and restart
// commands); any other value targets the attached sensor.
//
// Wire layout (21+len(data) bytes, little-endian):
//
//	[0]     0x01         protocol version
//	[1]     0x00         packet type (downlink request)
//	[2-3]   data_length  len(data)
//	[4-7]   unix_time
//	[8-15]  device_id
//	[16-17] sensor_id
//	[18]    cmd
//	[19-20] order        sequence number (DFU block sequence, else 0x0000)
//	[21+]   data         command-specific payload
type DownlinkRequest struct {
	DeviceID uint64
	SensorID uint16
	Cmd      byte
	Order    uint16
	Data     []byte
}

// EncodeDownlinkRequest builds a downlink request stamped with the current
// time.
func EncodeDownlinkRequest(deviceID uint64, sensorID uint16, cmd byte, order uint16, data []byte) []byte {
	return EncodeDownlinkRequestAt(deviceID, sensorID, cmd, order, data, uint32(time.Now().Unix()))
}

// EncodeDownlinkRequestAt builds a downlink request with an explicit unix
// timestamp.
func EncodeDownlinkRequestAt(deviceID uint64, sensorID uint16, cmd byte, order uint16, data []byte, unixTime uint32) []byte {
	buf := make([]byte, 21+len(data))
	buf[0] = ProtocolVersion
	buf[1] = TypeUplink // 0x00 doubles as the outbound downlink request type
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(data)))
	binary.LittleEndian.PutUint32(buf[4:8], unixTime)
	binary.LittleEndian.PutUint64(buf[8:16], deviceID)
	binary.LittleEndian.PutUint16(buf[16:18], sensorID)
	buf[18] = cmd
	binary.LittleEndian.PutUint16(buf[19:21], order)
	copy(buf[21:], data)
	return buf
}

// DownlinkResponse is a module's acknowledgment of a downlink request.
// Result 0x00 is success; any other value is a device error code (see
// ResultText).
//
// The hardware emits two fixed forms and is not consistent about which:
//
//	20 bytes: [ver, type, unix_time u32, device_id u64, sensor_id u16,
//	           order u16, cmd, result]
//	19 bytes: [ver, type, data_length u16, unix_time u32, device_id u64,
//	           sensor_id u16, result] (no order/cmd echo)
//
// Both are decoded, selected by total length; HasCmd reports whether the
// order and cmd fields are meaningful.
type DownlinkResponse struct {
	PacketType byte
	UnixTime   uint32
	DeviceID   uint64
	SensorID   uint16
	Order      uint16
	Cmd        byte
	Result     byte
	HasCmd     bool
}

// Success reports whether the module accepted the request.
func (r *DownlinkResponse) Success() bool { return r.Result == 0x00 }

// DecodeDownlinkResponse parses a downlink response frame. Frames that are
// neither 19 nor 20 bytes fail with a BadLengthError.
func DecodeDownlinkResponse(data []byte) (*DownlinkResponse, error) {
	switch len(data) {
	case 20:
		if err := checkVersion(data); err != nil {
			return nil, err
		}
		return &DownlinkResponse{
			PacketType: data[1],
			UnixTime:   binary.LittleEndian.Uint32(data[2:6]),
			DeviceID:   binary.LittleEndian.Uint64(data[6:14]),
			SensorID:   binary.LittleEndian.Uint16(data[14:16]),
			Order:      binary.LittleEndian.Uint16(data[16:18]),
			Cmd:        data[18],
			Result:     data[19],
			HasCmd:     true,
		}, nil
	case 19:
		if err := checkVersion(data); err != nil {
			return nil, err
		}
		return &DownlinkResponse{
			PacketType: data[1],
			UnixTime:   binary.LittleEndian.Uint32(data[4:8]),
			DeviceID:   binary.LittleEndian.Uint64(data[8:16]),
			SensorID:   binary.LittleEndian.Uint16(data[16:18]),
			Result:     data[18],
		}, nil
	default:
		return nil, &BadLengthError{Kind: "Downlink response", Got: len(data)}
	}
}

// UplinkNotification is an unsolicited frame from a module carrying sensor
// data, or parameter information when SensorID is 0x0000.
//
// Wire layout (21+ bytes, little-endian):
//
//	[0]     0x01         protocol version
//	[1]     0x00         packet type
//	[2-3]   data_length
//	[4-7]   unix_time
//	[8-15]  device_id
//	[16-17] sensor_id
//	[18]    rssi         signed dBm
//	[19-20] order
//	[21+]   data
type UplinkNotification struct {
	DataLength uint16
	UnixTime   uint32
	DeviceID   uint64
	SensorID   uint16
	RSSI       int8
	Order      uint16
	Data       []byte
}

// IsParameterInfo reports whether this uplink carries parameter information
// from the module main unit rather than sensor data.
func (u *UplinkNotification) IsParameterInfo() bool { return u.SensorID == SensorMainUnit }

// DecodeUplinkNotification parses an uplink notification frame.
func DecodeUplinkNotification(data []byte) (*UplinkNotification, error) {
	if len(data) < 21 {
		return nil, &ShortPacketError{Kind: "Uplink notification", Got: len(data), Want: 21}
	}
	if err := checkVersion(data); err != nil {
		return nil, err
	}
	n := &UplinkNotification{
		DataLength: binary.LittleEndian.Uint16(data[2:4]),
		UnixTime:   binary.LittleEndian.Uint32(data[4:8]),
		DeviceID:   binary.LittleEndian.Uint64(data[8:16]),
		SensorID:   binary.LittleEndian.Uint16(data[16:18]),
		RSSI:       int8(data[18]),
		Order:      binary.LittleEndian.Uint16(data[19:21]),
	}
	if len(data) > 21 {
		n.Data = append([]byte(nil), data[21:]...)
	}
	return n, nil
}
