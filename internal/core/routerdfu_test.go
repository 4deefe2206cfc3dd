package core

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bravejig/bjig/internal/firmware"
)

func shortenFinalWait(t *testing.T) {
	t.Helper()
	old := dfuFinalWait
	dfuFinalWait = 10 * time.Millisecond
	t.Cleanup(func() { dfuFinalWait = old })
}

func TestRouterDfuHappyPath(t *testing.T) {
	shortenFinalWait(t)
	c, link := newTestCommander(t)
	link.sendHook = func(frame []byte) {
		// The router acknowledges the initiation and every chunk with a
		// ready DFU response.
		link.deliver(dfuRespFrame(0x01))
	}

	img := &firmware.Image{Path: "fw.bin", Data: bytes.Repeat([]byte{0xA5}, 2500)}
	var updates []RouterDfuProgress
	err := c.UpdateRouterFirmware(img, func(p RouterDfuProgress) {
		updates = append(updates, p)
	})
	require.NoError(t, err)

	// Initiation request plus three chunks of 1024, 1024 and 452 bytes.
	sent := link.sentFrames()
	require.Len(t, sent, 4)
	assert.Len(t, sent[0], 10)
	assert.Equal(t, uint32(2500), binary.LittleEndian.Uint32(sent[0][6:10]))
	assert.Equal(t, uint16(1024), binary.LittleEndian.Uint16(sent[1][0:2]))
	assert.Equal(t, uint16(1024), binary.LittleEndian.Uint16(sent[2][0:2]))
	assert.Equal(t, uint16(452), binary.LittleEndian.Uint16(sent[3][0:2]))

	final := updates[len(updates)-1]
	assert.Equal(t, "complete", final.Phase)
	assert.Equal(t, 3, final.ChunksCompleted)
	assert.Equal(t, 2500, final.BytesTransferred)
}

func TestRouterDfuRejectedAtInitiation(t *testing.T) {
	c, link := newTestCommander(t)
	link.sendHook = func(frame []byte) {
		link.deliver(dfuRespFrame(0x00))
	}

	img := &firmware.Image{Path: "fw.bin", Data: bytes.Repeat([]byte{0xA5}, 100)}
	err := c.UpdateRouterFirmware(img, nil)

	var dfuErr *DfuError
	require.ErrorAs(t, err, &dfuErr)
	assert.Equal(t, "initiate", dfuErr.Phase)
	assert.Equal(t, 0, dfuErr.BlocksCompleted)
	assert.Len(t, link.sentFrames(), 1)
}

func TestRouterDfuAbortsOnErrorNotification(t *testing.T) {
	c, link := newTestCommander(t)
	sendCount := 0
	link.sendHook = func(frame []byte) {
		sendCount++
		switch {
		case sendCount <= 2:
			// Initiation and first chunk accepted.
			link.deliver(dfuRespFrame(0x01))
		default:
			// Second chunk draws an asynchronous error notification.
			link.deliver(errorFrame(0x01))
		}
	}

	img := &firmware.Image{Path: "fw.bin", Data: bytes.Repeat([]byte{0xA5}, 3000)}
	err := c.UpdateRouterFirmware(img, nil)

	var dfuErr *DfuError
	require.ErrorAs(t, err, &dfuErr)
	assert.Equal(t, "transfer", dfuErr.Phase)
	assert.Equal(t, 1, dfuErr.BlocksCompleted)
	assert.Equal(t, 3, dfuErr.TotalBlocks)
}

func TestRouterDfuChunkRejected(t *testing.T) {
	c, link := newTestCommander(t)
	sendCount := 0
	link.sendHook = func(frame []byte) {
		sendCount++
		if sendCount == 1 {
			link.deliver(dfuRespFrame(0x01))
			return
		}
		link.deliver(dfuRespFrame(0x02))
	}

	img := &firmware.Image{Path: "fw.bin", Data: bytes.Repeat([]byte{0xA5}, 1500)}
	err := c.UpdateRouterFirmware(img, nil)

	var dfuErr *DfuError
	require.ErrorAs(t, err, &dfuErr)
	assert.Equal(t, "transfer", dfuErr.Phase)
	assert.Equal(t, 0, dfuErr.BlocksCompleted)
	assert.ErrorContains(t, err, "rejected")
}

func TestRouterDfuTrackerScoped(t *testing.T) {
	shortenFinalWait(t)
	c, link := newTestCommander(t)

	// An error observed before the session must not poison the transfer.
	link.deliver(errorFrame(0x02))

	link.sendHook = func(frame []byte) {
		link.deliver(dfuRespFrame(0x01))
	}
	img := &firmware.Image{Path: "fw.bin", Data: bytes.Repeat([]byte{0xA5}, 100)}
	require.NoError(t, c.UpdateRouterFirmware(img, nil))

	// History keeps the pre-session record.
	assert.Equal(t, 1, c.ErrorSummary().Total)
}
