package core

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bravejig/bjig/internal/protocol"
	"github.com/bravejig/bjig/internal/transport"
)

// fakeLink is a scripted Link. sendHook runs synchronously on every Send
// and typically injects the response frame back through the data callback.
type fakeLink struct {
	mu         sync.Mutex
	connected  bool
	monitoring bool
	sent       [][]byte
	onData     transport.DataCallback
	onError    transport.ErrorCallback
	onConn     transport.ConnectionCallback
	sendHook   func(frame []byte)
	refuseSend bool
}

func (l *fakeLink) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = true
	return nil
}

func (l *fakeLink) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	l.monitoring = false
	return nil
}

func (l *fakeLink) StartMonitoring() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.monitoring = true
	return nil
}

func (l *fakeLink) StopMonitoring() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.monitoring = false
}

func (l *fakeLink) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *fakeLink) Send(frame []byte) bool {
	l.mu.Lock()
	if l.refuseSend {
		l.mu.Unlock()
		return false
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)
	l.sent = append(l.sent, buf)
	hook := l.sendHook
	l.mu.Unlock()
	if hook != nil {
		hook(buf)
	}
	return true
}

func (l *fakeLink) sentFrames() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.sent))
	copy(out, l.sent)
	return out
}

func (l *fakeLink) deliver(frame []byte) {
	l.mu.Lock()
	cb := l.onData
	l.mu.Unlock()
	if cb != nil {
		cb(frame)
	}
}

func (l *fakeLink) SetDataCallback(cb transport.DataCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onData = cb
}

func (l *fakeLink) SetErrorCallback(cb transport.ErrorCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onError = cb
}

func (l *fakeLink) SetConnectionCallback(cb transport.ConnectionCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onConn = cb
}

func (l *fakeLink) Statistics() transport.Stats { return transport.Stats{} }

func newTestCommander(t *testing.T) (*Commander, *fakeLink) {
	t.Helper()
	link := &fakeLink{}
	c := newCommanderWithLink(Config{
		Port:           "/dev/ttyACM0",
		CommandTimeout: 200 * time.Millisecond,
	}, link, zap.NewNop())
	require.NoError(t, c.Connect())
	return c, link
}

// Frame builders mirror the router's wire formats.

func jigInfoRespFrame(cmd byte, routerID uint64, payload []byte) []byte {
	buf := make([]byte, 15+len(payload))
	buf[0] = 0x01
	buf[1] = 0x02
	binary.LittleEndian.PutUint32(buf[2:6], 1700000000)
	buf[6] = cmd
	binary.LittleEndian.PutUint64(buf[7:15], routerID)
	copy(buf[15:], payload)
	return buf
}

func downlinkRespFrame(deviceID uint64, sensorID uint16, cmd byte, result byte) []byte {
	buf := make([]byte, 20)
	buf[0] = 0x01
	buf[1] = 0x01
	binary.LittleEndian.PutUint32(buf[2:6], 1700000000)
	binary.LittleEndian.PutUint64(buf[6:14], deviceID)
	binary.LittleEndian.PutUint16(buf[14:16], sensorID)
	binary.LittleEndian.PutUint16(buf[16:18], 0)
	buf[18] = cmd
	buf[19] = result
	return buf
}

func uplinkFrame(deviceID uint64, sensorID uint16, payload []byte) []byte {
	buf := make([]byte, 21+len(payload))
	buf[0] = 0x01
	buf[1] = 0x00
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(payload)))
	binary.LittleEndian.PutUint32(buf[4:8], 1700000000)
	binary.LittleEndian.PutUint64(buf[8:16], deviceID)
	binary.LittleEndian.PutUint16(buf[16:18], sensorID)
	buf[18] = 0xC4 // rssi -60 dBm
	binary.LittleEndian.PutUint16(buf[19:21], 0)
	copy(buf[21:], payload)
	return buf
}

func errorFrame(reason byte) []byte {
	buf := make([]byte, 7)
	buf[0] = 0x01
	buf[1] = 0xFF
	binary.LittleEndian.PutUint32(buf[2:6], 1700000000)
	buf[6] = reason
	return buf
}

func dfuRespFrame(result byte) []byte {
	buf := make([]byte, 7)
	buf[0] = 0x01
	buf[1] = 0x03
	binary.LittleEndian.PutUint32(buf[2:6], 1700000000)
	buf[6] = result
	return buf
}

func TestRouterVersion(t *testing.T) {
	c, link := newTestCommander(t)
	link.sendHook = func(frame []byte) {
		link.deliver(jigInfoRespFrame(protocol.CmdGetVersion, 0x2468ACE02468ACE0, []byte{1, 4, 2}))
	}

	v, err := c.RouterVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.4.2", v.String())
}

func TestRouterStartAck(t *testing.T) {
	c, link := newTestCommander(t)
	link.sendHook = func(frame []byte) {
		link.deliver(jigInfoRespFrame(protocol.CmdRouterStart, 1, []byte{0x01}))
	}

	ok, err := c.RouterStart()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeviceIDs(t *testing.T) {
	c, link := newTestCommander(t)
	payload := []byte{2}
	payload = binary.LittleEndian.AppendUint64(payload, 0x1111111111111111)
	payload = binary.LittleEndian.AppendUint64(payload, 0x2222222222222222)
	link.sendHook = func(frame []byte) {
		link.deliver(jigInfoRespFrame(protocol.CmdGetDeviceIDAll, 1, payload))
	}

	entries, err := c.DeviceIDs()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(0x1111111111111111), entries[0].DeviceID)
	assert.Equal(t, 1, entries[1].Index)
}

func TestExecuteNotConnected(t *testing.T) {
	link := &fakeLink{}
	c := newCommanderWithLink(Config{Port: "p"}, link, zap.NewNop())

	_, err := c.RouterVersion()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestAtMostOneInFlight(t *testing.T) {
	c, link := newTestCommander(t)

	// First request gets no response and stays pending.
	done := make(chan error, 1)
	go func() {
		_, err := c.JigInfo(protocol.CmdGetVersion)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return len(link.sentFrames()) == 1
	}, time.Second, time.Millisecond)

	// Second request for the same key must fail fast, before sending.
	_, err := c.JigInfo(protocol.CmdGetVersion)
	assert.ErrorIs(t, err, ErrRequestPending)
	assert.Len(t, link.sentFrames(), 1)

	assert.ErrorIs(t, <-done, ErrTimeout)
}

func TestTimeoutRemovesEntryAndDropsLateResponse(t *testing.T) {
	c, link := newTestCommander(t)

	_, err := c.JigInfo(protocol.CmdGetScanMode)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 0, c.table.len())

	// A late response for the timed-out key is dropped, not resolved.
	link.deliver(jigInfoRespFrame(protocol.CmdGetScanMode, 1, []byte{0x00}))
	assert.Equal(t, 0, c.table.len())
}

func TestDisconnectCancelsAllPending(t *testing.T) {
	c, _ := newTestCommander(t)

	const n = 3
	cmds := []byte{protocol.CmdGetVersion, protocol.CmdGetScanMode, protocol.CmdKeepAlive}
	results := make(chan error, n)
	for _, cmd := range cmds {
		cmd := cmd
		go func() {
			_, err := c.JigInfo(cmd)
			results <- err
		}()
	}

	require.Eventually(t, func() bool {
		return c.table.len() == n
	}, time.Second, time.Millisecond)

	require.NoError(t, c.Disconnect())

	for i := 0; i < n; i++ {
		select {
		case err := <-results:
			assert.ErrorIs(t, err, ErrDisconnected)
		case <-time.After(time.Second):
			t.Fatal("pending request not cancelled by disconnect")
		}
	}
}

func TestDownlinkSuccess(t *testing.T) {
	c, link := newTestCommander(t)
	const deviceID = 0x2468ACE02468ACE0
	link.sendHook = func(frame []byte) {
		link.deliver(downlinkRespFrame(deviceID, 0x0121, protocol.ModuleCmdInstantUplink, 0x00))
	}

	resp, err := c.Downlink(deviceID, 0x0121, protocol.ModuleCmdInstantUplink, nil, 0)
	require.NoError(t, err)
	assert.True(t, resp.Success())
}

func TestDownlinkDeviceError(t *testing.T) {
	c, link := newTestCommander(t)
	const deviceID = 0x2468ACE02468ACE0
	link.sendHook = func(frame []byte) {
		link.deliver(downlinkRespFrame(deviceID, 0x0121, protocol.ModuleCmdSetParameter, 0x09))
	}

	resp, err := c.Downlink(deviceID, 0x0121, protocol.ModuleCmdSetParameter, []byte{0x01}, 0)
	require.NotNil(t, resp)
	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, byte(0x09), devErr.Result)
	assert.Contains(t, devErr.Error(), "Module busy")
}

func TestErrorNotificationFailsSolePending(t *testing.T) {
	c, link := newTestCommander(t)
	const deviceID = 0x1111111111111111
	link.sendHook = func(frame []byte) {
		link.deliver(errorFrame(0x06))
	}

	_, err := c.Downlink(deviceID, 0x0121, protocol.ModuleCmdGetParameter, nil, 0)
	var routerErr *RouterError
	require.ErrorAs(t, err, &routerErr)
	assert.Equal(t, byte(0x06), routerErr.Reason)
	assert.Contains(t, routerErr.Error(), "device id not registered at index")

	hist := c.tracker.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "device id not registered at index", hist[0].ReasonText)
}

func TestErrorNotificationWithNoPendingOnlyTracks(t *testing.T) {
	c, link := newTestCommander(t)

	link.deliver(errorFrame(0x02))

	summary := c.ErrorSummary()
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.ByReason["downlink processing in progress"])
}

func TestUplinkRoutedToHandler(t *testing.T) {
	c, link := newTestCommander(t)
	got := make(chan *protocol.UplinkNotification, 1)
	c.SetUplinkHandler(func(n *protocol.UplinkNotification) { got <- n })

	link.deliver(uplinkFrame(0x1234, 0x0121, []byte{0xAA, 0xBB}))

	select {
	case n := <-got:
		assert.Equal(t, uint16(0x0121), n.SensorID)
		assert.Equal(t, int8(-60), n.RSSI)
		assert.Equal(t, []byte{0xAA, 0xBB}, n.Data)
	case <-time.After(time.Second):
		t.Fatal("uplink not delivered to handler")
	}
}

func TestWaitForParameterInfo(t *testing.T) {
	c, link := newTestCommander(t)
	const deviceID = 0x2468ACE02468ACE0

	go func() {
		time.Sleep(10 * time.Millisecond)
		link.deliver(uplinkFrame(deviceID, protocol.SensorMainUnit, []byte{0x05, 0x00}))
	}()

	n, err := c.WaitForParameterInfo(deviceID, time.Second)
	require.NoError(t, err)
	assert.True(t, n.IsParameterInfo())
	assert.Equal(t, []byte{0x05, 0x00}, n.Data)
}

func TestWaitForParameterInfoTimeout(t *testing.T) {
	c, _ := newTestCommander(t)

	_, err := c.WaitForParameterInfo(0x1234, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestStatusSnapshot(t *testing.T) {
	c, _ := newTestCommander(t)

	status := c.Status()
	assert.True(t, status.Connected)
	assert.Equal(t, "/dev/ttyACM0", status.Port)
	assert.Equal(t, 0, status.Pending)
}
