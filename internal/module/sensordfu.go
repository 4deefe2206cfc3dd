package module

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bravejig/bjig/internal/core"
	"github.com/bravejig/bjig/internal/firmware"
	"github.com/bravejig/bjig/internal/protocol"
)

// Block sequence numbers carried in the Downlink order field. The module
// firmware keys its DFU state machine off these, not off arrival order.
const (
	seqHeader = 0x0000
	seqLength = 0x0001
	seqFinal  = 0xFFFF
)

// dfuBlockTimeout bounds each block acknowledgment. Blocks land in module
// flash before they are acknowledged, which takes far longer than an
// ordinary command.
const dfuBlockTimeout = 10 * time.Second

// DfuProgress reports sensor transfer state after each accepted block.
type DfuProgress struct {
	Phase        string
	CurrentBlock int
	TotalBlocks  int
}

// DfuProgressFunc receives progress updates. May be nil.
type DfuProgressFunc func(p DfuProgress)

// UpdateFirmware runs the 4-block sensor DFU protocol against one module:
// a fixed header block, a length block carrying the first firmware bytes,
// continuation blocks of 238 bytes, and a final block carrying the
// remainder plus the image CRC32. Every block is a Downlink SENSOR_DFU
// command whose response is awaited before the next block; the first
// failure aborts the transfer with no resume.
//
// On success the module reboots itself into the new image; callers should
// wait 30-60s before querying it again.
func (c *Client) UpdateFirmware(deviceID uint64, sensorID uint16, plan firmware.SensorPlan, progress DfuProgressFunc) error {
	c.logger.Info("Starting sensor firmware update",
		zap.String("device_id", fmt.Sprintf("%016X", deviceID)),
		zap.Int("size", len(plan.Body)),
		zap.Int("blocks", plan.TotalBlocks),
		zap.Bool("embedded_crc", plan.EmbeddedCRC),
	)

	tracker := c.conn.Tracker()
	tracker.StartDfuTracking()
	defer tracker.StopDfuTracking()

	report := func(phase string, block int) {
		if progress != nil {
			progress(DfuProgress{Phase: phase, CurrentBlock: block, TotalBlocks: plan.TotalBlocks})
		}
	}

	sendBlock := func(phase string, block int, seq uint16, data []byte) error {
		_, err := c.conn.DownlinkWithOrder(deviceID, sensorID, protocol.ModuleCmdSensorDfu, seq, data, dfuBlockTimeout)
		if err != nil {
			return &core.DfuError{Phase: phase, BlocksCompleted: block - 1, TotalBlocks: plan.TotalBlocks, Err: err}
		}
		report(phase, block)
		return nil
	}

	if err := sendBlock("header", 1, seqHeader, headerBlock()); err != nil {
		return err
	}
	if err := sendBlock("length", 2, seqLength, lengthBlock(plan)); err != nil {
		return err
	}

	// Continuation blocks carry full 238-byte runs; the last run of data,
	// whatever its size, travels in the final block with the CRC.
	remaining := plan.Body
	if len(remaining) > firmware.SecondBlockBodyBytes {
		remaining = remaining[firmware.SecondBlockBodyBytes:]
	} else {
		remaining = nil
	}
	block := 3
	seq := uint16(0x0002)
	for len(remaining) > firmware.ContinuationBlockBytes {
		if err := sendBlock("data", block, seq, remaining[:firmware.ContinuationBlockBytes]); err != nil {
			return err
		}
		remaining = remaining[firmware.ContinuationBlockBytes:]
		block++
		seq++
	}

	if err := sendBlock("final", plan.TotalBlocks, seqFinal, finalBlock(remaining, plan.CRC)); err != nil {
		return err
	}

	if recs := tracker.DfuErrors(); len(recs) > 0 {
		return &core.DfuError{
			Phase:           "final",
			BlocksCompleted: plan.TotalBlocks,
			TotalBlocks:     plan.TotalBlocks,
			Err:             &core.RouterError{Reason: recs[0].Reason},
		}
	}

	c.logger.Info("Sensor firmware update complete",
		zap.String("device_id", fmt.Sprintf("%016X", deviceID)),
		zap.Int("blocks", plan.TotalBlocks),
	)
	return nil
}

// headerBlock is the fixed first block: hardware ID 0x0000 followed by
// 0xFF padding to the full block size.
func headerBlock() []byte {
	data := make([]byte, firmware.ContinuationBlockBytes)
	for i := 2; i < len(data); i++ {
		data[i] = 0xFF
	}
	return data
}

// lengthBlock is the second block: the transfer data length (firmware
// plus CRC) followed by the first firmware bytes, padded with 0xFF for
// images smaller than one block.
func lengthBlock(plan firmware.SensorPlan) []byte {
	data := make([]byte, firmware.ContinuationBlockBytes)
	binary.LittleEndian.PutUint32(data[0:4], plan.DataLength)
	n := copy(data[4:], plan.Body)
	for i := 4 + n; i < len(data); i++ {
		data[i] = 0xFF
	}
	return data
}

// finalBlock carries the last firmware bytes and the little-endian CRC32.
func finalBlock(remaining []byte, crc uint32) []byte {
	data := make([]byte, 0, len(remaining)+4)
	data = append(data, remaining...)
	return binary.LittleEndian.AppendUint32(data, crc)
}
