package protocol

import (
	"encoding/binary"
	"fmt"
	"time"
)

// jstOffset is the fixed UTC+9 offset the router expects in the local_time
// field of JIG Info requests.
const jstOffset = 9 * 3600

// JigInfoRequest is a command addressed to the router itself.
//
// Wire layout (11 bytes, little-endian):
//
//	[0]     0x01        protocol version
//	[1]     0x01        packet type
//	[2]     cmd         JIG Info CMD value
//	[3-6]   local_time  unix time + 9h (JST)
//	[7-10]  unix_time   unix time (UTC)
type JigInfoRequest struct {
	Cmd       byte
	LocalTime uint32
	UnixTime  uint32
}

// EncodeJigInfoRequest builds a JIG Info request for cmd stamped with the
// current time.
func EncodeJigInfoRequest(cmd byte) []byte {
	now := uint32(time.Now().Unix())
	return EncodeJigInfoRequestAt(cmd, now)
}

// EncodeJigInfoRequestAt builds a JIG Info request with an explicit unix
// timestamp. The local_time field is always unixTime+9h; the router rejects
// requests whose clock fields it considers implausible.
func EncodeJigInfoRequestAt(cmd byte, unixTime uint32) []byte {
	buf := make([]byte, 11)
	buf[0] = ProtocolVersion
	buf[1] = 0x01
	buf[2] = cmd
	binary.LittleEndian.PutUint32(buf[3:7], unixTime+jstOffset)
	binary.LittleEndian.PutUint32(buf[7:11], unixTime)
	return buf
}

// JigInfoResponse is the router's reply to a JIG Info request.
//
// Wire layout (15+ bytes, little-endian):
//
//	[0]     0x01              protocol version
//	[1]     packet type       0x02 on real hardware
//	[2-5]   unix_time
//	[6]     cmd               echoes the request CMD
//	[7-14]  router_device_id
//	[15+]   data              command-specific payload
type JigInfoResponse struct {
	PacketType     byte
	UnixTime       uint32
	Cmd            byte
	RouterDeviceID uint64
	Data           []byte
}

// DecodeJigInfoResponse parses a JIG Info response frame.
func DecodeJigInfoResponse(data []byte) (*JigInfoResponse, error) {
	if len(data) < 15 {
		return nil, &ShortPacketError{Kind: "JIG Info response", Got: len(data), Want: 15}
	}
	if err := checkVersion(data); err != nil {
		return nil, err
	}
	resp := &JigInfoResponse{
		PacketType:     data[1],
		UnixTime:       binary.LittleEndian.Uint32(data[2:6]),
		Cmd:            data[6],
		RouterDeviceID: binary.LittleEndian.Uint64(data[7:15]),
	}
	if len(data) > 15 {
		resp.Data = append([]byte(nil), data[15:]...)
	}
	return resp, nil
}

// Version is the router firmware version triplet carried by a GET_VERSION
// response.
type Version struct {
	Major byte
	Minor byte
	Build byte
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
}

// DeviceEntry is one slot of the router's device ID table.
type DeviceEntry struct {
	Index    int
	DeviceID uint64
}

// Parsed payload forms. The codec only length-checks the opaque Data blob;
// these accessors reinterpret it for the command families that define one.

// Version extracts the firmware version from a GET_VERSION response.
func (r *JigInfoResponse) Version() (Version, bool) {
	if r.Cmd != CmdGetVersion || len(r.Data) < 3 {
		return Version{}, false
	}
	return Version{Major: r.Data[0], Minor: r.Data[1], Build: r.Data[2]}, true
}

// ScanMode extracts the scan mode byte from a GET_SCAN_MODE response.
func (r *JigInfoResponse) ScanMode() (byte, bool) {
	if r.Cmd != CmdGetScanMode || len(r.Data) < 1 {
		return 0, false
	}
	return r.Data[0], true
}

// Ack extracts the success byte carried by start/stop, set-scan-mode,
// remove-device-id and keep-alive responses. 0x01 means accepted.
func (r *JigInfoResponse) Ack() (bool, bool) {
	ackCmd := r.Cmd == CmdRouterStop || r.Cmd == CmdRouterStart ||
		r.Cmd == CmdSetScanModeLongRange || r.Cmd == CmdSetScanModeLegacy ||
		r.Cmd == CmdRemoveDeviceIDAll || r.Cmd == CmdKeepAlive ||
		(r.Cmd >= CmdRemoveDeviceIDBase && r.Cmd <= CmdRemoveDeviceIDLast)
	if !ackCmd || len(r.Data) < 1 {
		return false, false
	}
	return r.Data[0] == 0x01, true
}

// DeviceEntry extracts the single index+ID pair from a GET_DEVICE_ID_INDEX_i
// response.
func (r *JigInfoResponse) DeviceEntry() (DeviceEntry, bool) {
	if r.Cmd < CmdGetDeviceIDBase || r.Cmd > CmdGetDeviceIDLast || len(r.Data) < 9 {
		return DeviceEntry{}, false
	}
	return DeviceEntry{
		Index:    int(r.Data[0]),
		DeviceID: binary.LittleEndian.Uint64(r.Data[1:9]),
	}, true
}

// DeviceList extracts the device ID table from a GET_DEVICE_ID_ALL response.
// The payload carries a count byte followed by count 8-byte device IDs; a
// truncated tail is ignored rather than rejected, matching router behavior.
func (r *JigInfoResponse) DeviceList() ([]DeviceEntry, bool) {
	if r.Cmd != CmdGetDeviceIDAll || len(r.Data) < 1 {
		return nil, false
	}
	count := int(r.Data[0])
	entries := make([]DeviceEntry, 0, count)
	offset := 1
	for i := 0; i < count && offset+8 <= len(r.Data); i++ {
		entries = append(entries, DeviceEntry{
			Index:    i,
			DeviceID: binary.LittleEndian.Uint64(r.Data[offset : offset+8]),
		})
		offset += 8
	}
	return entries, true
}
