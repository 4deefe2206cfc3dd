package module

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ParameterCodec translates a sensor type's opaque parameter blob to and
// from a human-editable string form. Implementations live per sensor type
// outside this package; HexCodec is the universal fallback.
type ParameterCodec interface {
	// Name identifies the codec in CLI output.
	Name() string
	// Encode turns user input into the wire blob.
	Encode(s string) ([]byte, error)
	// Decode renders a wire blob for display.
	Decode(blob []byte) (string, error)
}

// HexCodec passes parameter blobs through as hex strings. It accepts
// spaced or compact hex on input and renders spaced uppercase hex.
type HexCodec struct{}

func (HexCodec) Name() string { return "hex" }

func (HexCodec) Encode(s string) ([]byte, error) {
	compact := strings.NewReplacer(" ", "", "\t", "").Replace(s)
	blob, err := hex.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("invalid hex parameter data: %w", err)
	}
	return blob, nil
}

func (HexCodec) Decode(blob []byte) (string, error) {
	parts := make([]string, len(blob))
	for i, b := range blob {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " "), nil
}

// codecs maps sensor type IDs to registered codecs. Sensor-type specific
// codecs register here; unknown types fall back to HexCodec.
var codecs = map[uint16]ParameterCodec{}

// RegisterCodec installs a codec for one sensor type.
func RegisterCodec(sensorID uint16, codec ParameterCodec) {
	codecs[sensorID] = codec
}

// CodecFor returns the codec for a sensor type, defaulting to HexCodec.
func CodecFor(sensorID uint16) ParameterCodec {
	if codec, ok := codecs[sensorID]; ok {
		return codec
	}
	return HexCodec{}
}
