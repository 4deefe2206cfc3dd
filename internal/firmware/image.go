package firmware

import (
	"fmt"
	"hash/crc32"
	"os"

	"github.com/bravejig/bjig/internal/protocol"
)

const (
	// MaxRouterImageSize is the largest router image expressible on the
	// wire: the DFU initiation request carries the total length as a u32.
	MaxRouterImageSize = 1<<32 - 1

	// MaxSensorImageSize bounds sensor module images. Module flash is far
	// smaller than this; the limit mainly catches a wrong file argument.
	MaxSensorImageSize = 1 << 20
)

// Image is a firmware file loaded into memory.
type Image struct {
	Path string
	Data []byte
}

// Size returns the image length in bytes.
func (img *Image) Size() int { return len(img.Data) }

// CRC32 returns the IEEE CRC32 of the whole image.
func (img *Image) CRC32() uint32 { return crc32.ChecksumIEEE(img.Data) }

// LoadRouter reads and validates a router firmware image.
func LoadRouter(path string) (*Image, error) {
	return load(path, MaxRouterImageSize)
}

// LoadSensor reads and validates a sensor module firmware image.
func LoadSensor(path string) (*Image, error) {
	return load(path, MaxSensorImageSize)
}

func load(path string, maxSize int) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("firmware: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("firmware: %s is empty", path)
	}
	if len(data) > maxSize {
		return nil, fmt.Errorf("firmware: %s is %d bytes, exceeds limit of %d", path, len(data), maxSize)
	}
	return &Image{Path: path, Data: data}, nil
}

// RouterChunkCount returns the number of 1024-byte chunks needed to
// transfer size bytes.
func RouterChunkCount(size int) int {
	if size <= 0 {
		return 0
	}
	return (size + protocol.RouterDfuChunkSize - 1) / protocol.RouterDfuChunkSize
}
