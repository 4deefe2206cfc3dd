package protocol

import "fmt"

// ShortPacketError indicates a frame that is too small for its packet type.
// Decode failures are non-fatal: callers log and keep scanning the link.
type ShortPacketError struct {
	Kind string // packet kind being decoded
	Got  int
	Want int // minimum (or exact) length required
}

func (e *ShortPacketError) Error() string {
	return fmt.Sprintf("%s packet too short: %d bytes, need %d", e.Kind, e.Got, e.Want)
}

// BadVersionError indicates an unsupported protocol version byte.
type BadVersionError struct {
	Version byte
}

func (e *BadVersionError) Error() string {
	return fmt.Sprintf("unsupported protocol version 0x%02X (want 0x%02X)", e.Version, ProtocolVersion)
}

// BadLengthError indicates a frame whose total length matches no known form
// of its packet type (e.g. a Downlink response that is neither 19 nor 20
// bytes).
type BadLengthError struct {
	Kind string
	Got  int
}

func (e *BadLengthError) Error() string {
	return fmt.Sprintf("%s packet has invalid length %d", e.Kind, e.Got)
}

// UnknownTypeError indicates a packet type byte this implementation does not
// recognize.
type UnknownTypeError struct {
	Type byte
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown packet type 0x%02X", e.Type)
}

func checkVersion(data []byte) error {
	if data[0] != ProtocolVersion {
		return &BadVersionError{Version: data[0]}
	}
	return nil
}
