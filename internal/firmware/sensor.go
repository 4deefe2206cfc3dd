package firmware

import (
	"encoding/binary"
	"hash/crc32"
)

const (
	// SecondBlockBodyBytes is how much firmware rides in the second block
	// alongside the 4-byte data length.
	SecondBlockBodyBytes = 234

	// ContinuationBlockBytes is the fixed payload size of every
	// continuation block.
	ContinuationBlockBytes = 238
)

// SensorPlan is the precomputed transfer layout for one sensor module
// image. Body is the firmware proper, always excluding the trailing
// CRC32: the final block appends CRC explicitly.
type SensorPlan struct {
	Body        []byte
	CRC         uint32
	DataLength  uint32
	TotalBlocks int
	EmbeddedCRC bool
}

// PlanSensor computes the block plan for an image. Module vendors ship
// images both with and without a trailing CRC32; an image whose last four
// bytes are the little-endian CRC32 of everything before them is treated
// as carrying its checksum embedded, and that checksum is reused rather
// than recomputed over the CRC bytes themselves.
func PlanSensor(data []byte) SensorPlan {
	body := data
	var crc uint32
	embedded := false

	if len(data) > 4 {
		trailer := binary.LittleEndian.Uint32(data[len(data)-4:])
		if crc32.ChecksumIEEE(data[:len(data)-4]) == trailer {
			body = data[:len(data)-4]
			crc = trailer
			embedded = true
		}
	}
	if !embedded {
		crc = crc32.ChecksumIEEE(body)
	}

	return SensorPlan{
		Body:        body,
		CRC:         crc,
		DataLength:  uint32(len(body)) + 4,
		TotalBlocks: SensorBlockCount(len(body)),
		EmbeddedCRC: embedded,
	}
}

// SensorBlockCount returns the number of blocks needed for a firmware
// body of bodyLen bytes: header + length block + continuation blocks +
// final block. Continuation blocks are only emitted while more than one
// full block of firmware remains after the length block; the last run of
// data always travels in the final block together with the CRC.
func SensorBlockCount(bodyLen int) int {
	remaining := bodyLen - SecondBlockBodyBytes
	continuation := 0
	for remaining > ContinuationBlockBytes {
		continuation++
		remaining -= ContinuationBlockBytes
	}
	return 2 + continuation + 1
}
