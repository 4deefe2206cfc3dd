package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyUplink(t *testing.T) {
	buf := make([]byte, 25)
	buf[0] = ProtocolVersion
	buf[1] = TypeUplink

	pkt, err := ClassifyAndDecode(buf)
	require.NoError(t, err)
	assert.IsType(t, &UplinkNotification{}, pkt)
}

// A 19-byte type-0x02 frame must resolve as a Downlink response even though
// a JIG Info decode of the same bytes would also succeed.
func TestClassifyType02NineteenBytesIsDownlink(t *testing.T) {
	buf := make([]byte, 19)
	buf[0] = ProtocolVersion
	buf[1] = TypeJigInfoResponse
	binary.LittleEndian.PutUint64(buf[8:16], 0x2468800203400004)

	pkt, err := ClassifyAndDecode(buf)
	require.NoError(t, err)

	resp, ok := pkt.(*DownlinkResponse)
	require.True(t, ok, "expected DownlinkResponse, got %T", pkt)
	assert.Equal(t, uint64(0x2468800203400004), resp.DeviceID)
}

func TestClassifyType02LongerIsJigInfo(t *testing.T) {
	buf := buildJigInfoResponse(CmdGetVersion, 0x2468800203400004, []byte{1, 2, 3})

	pkt, err := ClassifyAndDecode(buf)
	require.NoError(t, err)

	resp, ok := pkt.(*JigInfoResponse)
	require.True(t, ok, "expected JigInfoResponse, got %T", pkt)
	assert.Equal(t, byte(CmdGetVersion), resp.Cmd)
}

func TestClassifyType01TwentyBytesIsDownlink(t *testing.T) {
	buf := make([]byte, 20)
	buf[0] = ProtocolVersion
	buf[1] = TypeDownlinkResponse
	buf[18] = ModuleCmdSensorDfu

	pkt, err := ClassifyAndDecode(buf)
	require.NoError(t, err)

	resp, ok := pkt.(*DownlinkResponse)
	require.True(t, ok, "expected DownlinkResponse, got %T", pkt)
	assert.True(t, resp.HasCmd)
	assert.Equal(t, byte(ModuleCmdSensorDfu), resp.Cmd)
}

func TestClassifyType03SevenBytesIsDfu(t *testing.T) {
	pkt, err := ClassifyAndDecode([]byte{0x01, 0x03, 0, 0, 0, 0, 0x01})
	require.NoError(t, err)
	assert.IsType(t, &DfuResponse{}, pkt)
}

func TestClassifyType03LongerIsUplink(t *testing.T) {
	buf := make([]byte, 26)
	buf[0] = ProtocolVersion
	buf[1] = TypeDfuResponse

	pkt, err := ClassifyAndDecode(buf)
	require.NoError(t, err)
	assert.IsType(t, &UplinkNotification{}, pkt)
}

func TestClassifyErrorNotifications(t *testing.T) {
	for _, typ := range []byte{TypeErrorLegacy, TypeError} {
		pkt, err := ClassifyAndDecode([]byte{0x01, typ, 0, 0, 0, 0, 0x02})
		require.NoError(t, err)

		n, ok := pkt.(*ErrorNotification)
		require.True(t, ok)
		assert.Equal(t, typ, n.PacketType)
		assert.Equal(t, "downlink processing in progress", n.ReasonText())
	}
}

func TestClassifyUnknownType(t *testing.T) {
	_, err := ClassifyAndDecode([]byte{0x01, 0x42, 0, 0})

	var unknown *UnknownTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, byte(0x42), unknown.Type)
}

func TestClassifyShortFrame(t *testing.T) {
	_, err := ClassifyAndDecode([]byte{0x01})

	var short *ShortPacketError
	require.ErrorAs(t, err, &short)
}
