package module

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bravejig/bjig/internal/core"
	"github.com/bravejig/bjig/internal/firmware"
	"github.com/bravejig/bjig/internal/protocol"
)

type downlinkCall struct {
	deviceID uint64
	sensorID uint16
	cmd      byte
	order    uint16
	hasOrder bool
	data     []byte
}

// fakeConn scripts the commander surface the module client consumes.
type fakeConn struct {
	calls     []downlinkCall
	failAt    int // 1-based call index that fails; 0 disables
	failErr   error
	paramInfo *protocol.UplinkNotification
	paramErr  error
	tracker   *core.ErrorTracker
}

func newFakeConn() *fakeConn {
	return &fakeConn{tracker: core.NewErrorTracker(zap.NewNop())}
}

func (f *fakeConn) record(call downlinkCall) (*protocol.DownlinkResponse, error) {
	f.calls = append(f.calls, call)
	if f.failAt != 0 && len(f.calls) == f.failAt {
		return nil, f.failErr
	}
	return &protocol.DownlinkResponse{DeviceID: call.deviceID, SensorID: call.sensorID, Result: 0x00}, nil
}

func (f *fakeConn) Downlink(deviceID uint64, sensorID uint16, cmd byte, data []byte, timeout time.Duration) (*protocol.DownlinkResponse, error) {
	return f.record(downlinkCall{deviceID: deviceID, sensorID: sensorID, cmd: cmd, data: append([]byte(nil), data...)})
}

func (f *fakeConn) DownlinkWithOrder(deviceID uint64, sensorID uint16, cmd byte, order uint16, data []byte, timeout time.Duration) (*protocol.DownlinkResponse, error) {
	return f.record(downlinkCall{deviceID: deviceID, sensorID: sensorID, cmd: cmd, order: order, hasOrder: true, data: append([]byte(nil), data...)})
}

func (f *fakeConn) WaitForParameterInfo(deviceID uint64, timeout time.Duration) (*protocol.UplinkNotification, error) {
	if f.paramErr != nil {
		return nil, f.paramErr
	}
	return f.paramInfo, nil
}

func (f *fakeConn) Tracker() *core.ErrorTracker { return f.tracker }

const testDeviceID = 0x2468ACE02468ACE0

func TestInstantUplink(t *testing.T) {
	conn := newFakeConn()
	client := NewClient(conn, zap.NewNop())

	require.NoError(t, client.InstantUplink(testDeviceID, protocol.SensorIlluminance))
	require.Len(t, conn.calls, 1)
	assert.Equal(t, byte(protocol.ModuleCmdInstantUplink), conn.calls[0].cmd)
	assert.Equal(t, uint16(protocol.SensorIlluminance), conn.calls[0].sensorID)
	assert.Empty(t, conn.calls[0].data)
}

func TestRestartTargetsMainUnit(t *testing.T) {
	conn := newFakeConn()
	client := NewClient(conn, zap.NewNop())

	require.NoError(t, client.Restart(testDeviceID))
	require.Len(t, conn.calls, 1)
	assert.Equal(t, byte(protocol.ModuleCmdRestart), conn.calls[0].cmd)
	assert.Equal(t, uint16(protocol.SensorMainUnit), conn.calls[0].sensorID)
}

func TestSetParameter(t *testing.T) {
	conn := newFakeConn()
	client := NewClient(conn, zap.NewNop())

	blob := []byte{0x05, 0x00, 0x3C, 0x00}
	require.NoError(t, client.SetParameter(testDeviceID, blob))
	require.Len(t, conn.calls, 1)
	assert.Equal(t, byte(protocol.ModuleCmdSetParameter), conn.calls[0].cmd)
	assert.Equal(t, blob, conn.calls[0].data)
}

func TestSetParameterRejectsEmptyBlob(t *testing.T) {
	client := NewClient(newFakeConn(), zap.NewNop())
	assert.Error(t, client.SetParameter(testDeviceID, nil))
}

func TestGetParameterWaitsForUplink(t *testing.T) {
	conn := newFakeConn()
	conn.paramInfo = &protocol.UplinkNotification{
		DeviceID: testDeviceID,
		SensorID: protocol.SensorMainUnit,
		Data:     []byte{0x05, 0x00, 0x3C, 0x00},
	}
	client := NewClient(conn, zap.NewNop())

	blob, err := client.GetParameter(testDeviceID)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x00, 0x3C, 0x00}, blob)
	require.Len(t, conn.calls, 1)
	assert.Equal(t, byte(protocol.ModuleCmdGetParameter), conn.calls[0].cmd)
}

func TestGetParameterUplinkTimeout(t *testing.T) {
	conn := newFakeConn()
	conn.paramErr = core.ErrTimeout
	client := NewClient(conn, zap.NewNop())

	_, err := client.GetParameter(testDeviceID)
	assert.ErrorIs(t, err, core.ErrTimeout)
}

func TestHexCodecRoundTrip(t *testing.T) {
	codec := HexCodec{}

	blob, err := codec.Encode("05 00 3c 00")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x00, 0x3C, 0x00}, blob)

	s, err := codec.Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, "05 00 3C 00", s)

	_, err = codec.Encode("zz")
	assert.Error(t, err)
}

func TestCodecForDefaultsToHex(t *testing.T) {
	codec := CodecFor(protocol.SensorAccelerometer)
	assert.Equal(t, "hex", codec.Name())
}

func TestSensorDfuBlockLayout(t *testing.T) {
	conn := newFakeConn()
	client := NewClient(conn, zap.NewNop())

	// 234 + 238 + 100 bytes: header, length, one continuation, final.
	body := bytes.Repeat([]byte{0x42}, 572)
	plan := firmware.PlanSensor(body)
	require.Equal(t, 4, plan.TotalBlocks)

	var updates []DfuProgress
	err := client.UpdateFirmware(testDeviceID, protocol.SensorIlluminance, plan, func(p DfuProgress) {
		updates = append(updates, p)
	})
	require.NoError(t, err)
	require.Len(t, conn.calls, 4)

	header := conn.calls[0]
	assert.Equal(t, uint16(0x0000), header.order)
	require.Len(t, header.data, 238)
	assert.Equal(t, []byte{0x00, 0x00}, header.data[0:2])
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 236), header.data[2:])

	length := conn.calls[1]
	assert.Equal(t, uint16(0x0001), length.order)
	require.Len(t, length.data, 238)
	assert.Equal(t, uint32(576), binary.LittleEndian.Uint32(length.data[0:4]))
	assert.Equal(t, body[:234], length.data[4:])

	cont := conn.calls[2]
	assert.Equal(t, uint16(0x0002), cont.order)
	assert.Equal(t, body[234:472], cont.data)

	final := conn.calls[3]
	assert.Equal(t, uint16(0xFFFF), final.order)
	require.Len(t, final.data, 104)
	assert.Equal(t, body[472:], final.data[:100])
	assert.Equal(t, crc32.ChecksumIEEE(body), binary.LittleEndian.Uint32(final.data[100:]))

	require.Len(t, updates, 4)
	assert.Equal(t, DfuProgress{Phase: "header", CurrentBlock: 1, TotalBlocks: 4}, updates[0])
	assert.Equal(t, DfuProgress{Phase: "final", CurrentBlock: 4, TotalBlocks: 4}, updates[3])
	for _, call := range conn.calls {
		assert.Equal(t, byte(protocol.ModuleCmdSensorDfu), call.cmd)
		assert.True(t, call.hasOrder)
	}
}

func TestSensorDfuSmallImagePadsLengthBlock(t *testing.T) {
	conn := newFakeConn()
	client := NewClient(conn, zap.NewNop())

	body := []byte{0x01, 0x02, 0x03}
	plan := firmware.PlanSensor(body)
	require.Equal(t, 3, plan.TotalBlocks)

	require.NoError(t, client.UpdateFirmware(testDeviceID, protocol.SensorIlluminance, plan, nil))
	require.Len(t, conn.calls, 3)

	length := conn.calls[1]
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(length.data[0:4]))
	assert.Equal(t, body, length.data[4:7])
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 231), length.data[7:])

	final := conn.calls[2]
	assert.Equal(t, uint16(0xFFFF), final.order)
	require.Len(t, final.data, 4)
	assert.Equal(t, crc32.ChecksumIEEE(body), binary.LittleEndian.Uint32(final.data))
}

func TestSensorDfuAbortReportsCompletedBlocks(t *testing.T) {
	conn := newFakeConn()
	conn.failAt = 3
	conn.failErr = errors.New("module stopped responding")
	client := NewClient(conn, zap.NewNop())

	body := bytes.Repeat([]byte{0x42}, 2000)
	plan := firmware.PlanSensor(body)

	err := client.UpdateFirmware(testDeviceID, protocol.SensorIlluminance, plan, nil)
	var dfuErr *core.DfuError
	require.ErrorAs(t, err, &dfuErr)
	assert.Equal(t, 2, dfuErr.BlocksCompleted)
	assert.Equal(t, plan.TotalBlocks, dfuErr.TotalBlocks)
	assert.Len(t, conn.calls, 3)
}

func TestSensorDfuEmbeddedCRCSent(t *testing.T) {
	conn := newFakeConn()
	client := NewClient(conn, zap.NewNop())

	body := bytes.Repeat([]byte{0x42}, 100)
	crc := crc32.ChecksumIEEE(body)
	image := binary.LittleEndian.AppendUint32(append([]byte(nil), body...), crc)
	plan := firmware.PlanSensor(image)
	require.True(t, plan.EmbeddedCRC)

	require.NoError(t, client.UpdateFirmware(testDeviceID, protocol.SensorIlluminance, plan, nil))

	final := conn.calls[len(conn.calls)-1]
	assert.Equal(t, crc, binary.LittleEndian.Uint32(final.data[len(final.data)-4:]))
	length := conn.calls[1]
	assert.Equal(t, uint32(104), binary.LittleEndian.Uint32(length.data[0:4]))
}
