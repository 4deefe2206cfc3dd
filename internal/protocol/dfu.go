package protocol

import (
	"encoding/binary"
	"time"
)

// RouterDfuChunkSize is the largest DFU image slice carried by one router
// firmware chunk.
const RouterDfuChunkSize = 1024

// DfuRequest initiates a router firmware update.
//
// Wire layout (10 bytes, little-endian):
//
//	[0]    0x01          protocol version
//	[1]    0x03          packet type
//	[2-5]  unix_time
//	[6-9]  total_length  firmware size in bytes
type DfuRequest struct {
	UnixTime    uint32
	TotalLength uint32
}

// EncodeDfuRequest builds a DFU initiation request stamped with the current
// time.
func EncodeDfuRequest(totalLength uint32) []byte {
	return EncodeDfuRequestAt(totalLength, uint32(time.Now().Unix()))
}

// EncodeDfuRequestAt builds a DFU initiation request with an explicit unix
// timestamp.
func EncodeDfuRequestAt(totalLength, unixTime uint32) []byte {
	buf := make([]byte, 10)
	buf[0] = ProtocolVersion
	buf[1] = TypeDfuResponse
	binary.LittleEndian.PutUint32(buf[2:6], unixTime)
	binary.LittleEndian.PutUint32(buf[6:10], totalLength)
	return buf
}

// DfuResponse is the router's reply to a DFU initiation request. Result 0x01
// means the router is ready to receive chunks; anything else is a rejection.
//
// Wire layout (exactly 7 bytes, little-endian):
//
//	[0]    0x01       protocol version
//	[1]    0x03       packet type
//	[2-5]  unix_time
//	[6]    result
type DfuResponse struct {
	UnixTime uint32
	Result   byte
}

// Ready reports whether the router accepted the DFU initiation.
func (r *DfuResponse) Ready() bool { return r.Result == 0x01 }

// DecodeDfuResponse parses a DFU response frame. The exact-length check is
// what separates DFU responses from uplink traffic on the shared 0x03 type
// code.
func DecodeDfuResponse(data []byte) (*DfuResponse, error) {
	if len(data) != 7 {
		return nil, &BadLengthError{Kind: "DFU response", Got: len(data)}
	}
	if err := checkVersion(data); err != nil {
		return nil, err
	}
	return &DfuResponse{
		UnixTime: binary.LittleEndian.Uint32(data[2:6]),
		Result:   data[6],
	}, nil
}

// EncodeDfuChunk frames one slice of router firmware for the in-session
// transfer sub-protocol. Chunks carry no envelope: once initiation succeeds
// the link switches to raw [packet_size u16][image bytes] records.
func EncodeDfuChunk(image []byte) []byte {
	buf := make([]byte, 2+len(image))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(image)))
	copy(buf[2:], image)
	return buf
}
