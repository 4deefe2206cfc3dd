package protocol

import "encoding/binary"

// ErrorNotification is an asynchronous error report from the router. It is
// not correlated to a request: the router does not echo a command or device
// ID, only a reason code.
//
// Wire layout (exactly 7 bytes, little-endian):
//
//	[0]    0x01       protocol version
//	[1]    0xFF       packet type (0x04 on legacy firmware)
//	[2-5]  unix_time
//	[6]    reason
type ErrorNotification struct {
	PacketType byte
	UnixTime   uint32
	Reason     byte
}

// ReasonText returns the interpreted reason per spec 5-1-5.
func (e *ErrorNotification) ReasonText() string { return ErrorReasonText(e.Reason) }

// DecodeErrorNotification parses an error notification frame.
func DecodeErrorNotification(data []byte) (*ErrorNotification, error) {
	if len(data) != 7 {
		return nil, &BadLengthError{Kind: "Error notification", Got: len(data)}
	}
	if err := checkVersion(data); err != nil {
		return nil, err
	}
	return &ErrorNotification{
		PacketType: data[1],
		UnixTime:   binary.LittleEndian.Uint32(data[2:6]),
		Reason:     data[6],
	}, nil
}
