package core

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bravejig/bjig/internal/logging"
	"github.com/bravejig/bjig/internal/protocol"
	"github.com/bravejig/bjig/internal/transport"
)

// Config holds the connection parameters for one router link.
type Config struct {
	Port           string
	BaudRate       int
	CommandTimeout time.Duration
}

// Status is a connection snapshot.
type Status struct {
	Port       string
	Connected  bool
	Stats      transport.Stats
	Pending    int
	ErrorCount int
}

// Commander is the connection facade: it owns one transport, one
// correlation table, one dispatcher and one error tracker, and exposes
// every router-addressed command as a synchronous call. Nothing is shared
// across Commander instances.
type Commander struct {
	cfg     Config
	logger  *zap.Logger
	link    Link
	engine  *Engine
	disp    *Dispatcher
	table   *pendingTable
	tracker *ErrorTracker

	orderMu   sync.Mutex
	nextOrder uint16

	uplinkMu     sync.Mutex
	onUplink     UplinkHandler
	paramWaiters map[uint64]chan *protocol.UplinkNotification
}

// NewCommander creates a commander for the serial port in cfg.
func NewCommander(cfg Config, logger *zap.Logger) *Commander {
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if logger == nil {
		logger = logging.GetLogger()
	}
	monitor := transport.NewMonitor(transport.Config{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
	}, logger)
	return newCommanderWithLink(cfg, monitor, logger)
}

func newCommanderWithLink(cfg Config, link Link, logger *zap.Logger) *Commander {
	table := newPendingTable()
	tracker := NewErrorTracker(logger)
	c := &Commander{
		cfg:          cfg,
		logger:       logger,
		link:         link,
		table:        table,
		tracker:      tracker,
		engine:       newEngine(link, table, logger),
		disp:         newDispatcher(table, tracker, logger),
		paramWaiters: make(map[uint64]chan *protocol.UplinkNotification),
	}
	c.disp.SetUplinkHandler(c.handleUplink)
	return c
}

// Connect opens the port and starts monitoring.
func (c *Commander) Connect() error {
	if err := c.link.Connect(); err != nil {
		return err
	}
	c.link.SetDataCallback(c.disp.HandleFrame)
	c.link.SetErrorCallback(func(err error) {
		c.logger.Error("Transport error", zap.Error(err))
	})
	c.link.SetConnectionCallback(func(connected bool) {
		if !connected {
			c.engine.cancelAll(ErrDisconnected)
		}
	})
	if err := c.link.StartMonitoring(); err != nil {
		_ = c.link.Disconnect()
		return err
	}
	return nil
}

// Disconnect cancels every pending request and closes the port.
func (c *Commander) Disconnect() error {
	c.engine.cancelAll(ErrDisconnected)
	return c.link.Disconnect()
}

// IsConnected reports whether the link is up.
func (c *Commander) IsConnected() bool {
	return c.link.IsConnected()
}

// Status returns a snapshot of the connection.
func (c *Commander) Status() Status {
	return Status{
		Port:       c.cfg.Port,
		Connected:  c.link.IsConnected(),
		Stats:      c.link.Statistics(),
		Pending:    c.table.len(),
		ErrorCount: len(c.tracker.History()),
	}
}

// ErrorSummary digests the error notifications observed so far.
func (c *Commander) ErrorSummary() ErrorSummary {
	return c.tracker.Summary()
}

// SetUplinkHandler registers the consumer for sensor-data uplinks. It may
// be called before or after Connect.
func (c *Commander) SetUplinkHandler(h UplinkHandler) {
	c.uplinkMu.Lock()
	defer c.uplinkMu.Unlock()
	c.onUplink = h
}

// handleUplink feeds parameter-information uplinks to any waiter
// registered for the device, then forwards everything to the user handler.
func (c *Commander) handleUplink(n *protocol.UplinkNotification) {
	if n.IsParameterInfo() {
		c.uplinkMu.Lock()
		waiter := c.paramWaiters[n.DeviceID]
		delete(c.paramWaiters, n.DeviceID)
		c.uplinkMu.Unlock()
		if waiter != nil {
			waiter <- n
			return
		}
	}

	c.uplinkMu.Lock()
	h := c.onUplink
	c.uplinkMu.Unlock()
	if h != nil {
		h(n)
	}
}

// WaitForParameterInfo blocks until the module's parameter-information
// uplink (sensor_id 0x0000) arrives or the timeout fires. GET_PARAMETER
// delivers its payload this way rather than in the Downlink response.
func (c *Commander) WaitForParameterInfo(deviceID uint64, timeout time.Duration) (*protocol.UplinkNotification, error) {
	waiter := make(chan *protocol.UplinkNotification, 1)

	c.uplinkMu.Lock()
	if _, exists := c.paramWaiters[deviceID]; exists {
		c.uplinkMu.Unlock()
		return nil, fmt.Errorf("%w: parameter info for %016X", ErrRequestPending, deviceID)
	}
	c.paramWaiters[deviceID] = waiter
	c.uplinkMu.Unlock()

	select {
	case n := <-waiter:
		return n, nil
	case <-time.After(timeout):
		c.uplinkMu.Lock()
		delete(c.paramWaiters, deviceID)
		c.uplinkMu.Unlock()
		return nil, fmt.Errorf("%w: parameter info for %016X after %s", ErrTimeout, deviceID, timeout)
	}
}

// JigInfo issues one router-addressed command and returns its response.
func (c *Commander) JigInfo(cmd byte) (*protocol.JigInfoResponse, error) {
	pkt, err := c.engine.Execute(protocol.EncodeJigInfoRequest(cmd), jigInfoKey(cmd), c.cfg.CommandTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", protocol.CmdName(cmd), err)
	}
	resp, ok := pkt.(*protocol.JigInfoResponse)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected response type %T", protocol.CmdName(cmd), pkt)
	}
	return resp, nil
}

// jigInfoAck issues an ack-style command and interprets the success byte.
func (c *Commander) jigInfoAck(cmd byte) (bool, error) {
	resp, err := c.JigInfo(cmd)
	if err != nil {
		return false, err
	}
	ack, ok := resp.Ack()
	if !ok {
		return false, fmt.Errorf("%s: response carries no ack byte", protocol.CmdName(cmd))
	}
	return ack, nil
}

// RouterStart starts uplink scanning on the router.
func (c *Commander) RouterStart() (bool, error) {
	return c.jigInfoAck(protocol.CmdRouterStart)
}

// RouterStop stops uplink scanning on the router.
func (c *Commander) RouterStop() (bool, error) {
	return c.jigInfoAck(protocol.CmdRouterStop)
}

// RouterVersion queries the router firmware version.
func (c *Commander) RouterVersion() (protocol.Version, error) {
	resp, err := c.JigInfo(protocol.CmdGetVersion)
	if err != nil {
		return protocol.Version{}, err
	}
	v, ok := resp.Version()
	if !ok {
		return protocol.Version{}, fmt.Errorf("GET_VERSION: malformed payload (%d bytes)", len(resp.Data))
	}
	return v, nil
}

// DeviceID reads one slot of the router's device ID table.
func (c *Commander) DeviceID(index int) (protocol.DeviceEntry, error) {
	cmd, err := protocol.CmdForDeviceIndex(index)
	if err != nil {
		return protocol.DeviceEntry{}, err
	}
	resp, err := c.JigInfo(cmd)
	if err != nil {
		return protocol.DeviceEntry{}, err
	}
	entry, ok := resp.DeviceEntry()
	if !ok {
		return protocol.DeviceEntry{}, fmt.Errorf("GET_DEVICE_ID index %d: malformed payload", index)
	}
	return entry, nil
}

// DeviceIDs reads the router's whole device ID table.
func (c *Commander) DeviceIDs() ([]protocol.DeviceEntry, error) {
	resp, err := c.JigInfo(protocol.CmdGetDeviceIDAll)
	if err != nil {
		return nil, err
	}
	entries, ok := resp.DeviceList()
	if !ok {
		return nil, fmt.Errorf("GET_DEVICE_ID_ALL: malformed payload")
	}
	return entries, nil
}

// ScanMode queries the router's current scan mode.
func (c *Commander) ScanMode() (byte, error) {
	resp, err := c.JigInfo(protocol.CmdGetScanMode)
	if err != nil {
		return 0, err
	}
	mode, ok := resp.ScanMode()
	if !ok {
		return 0, fmt.Errorf("GET_SCAN_MODE: malformed payload")
	}
	return mode, nil
}

// SetScanMode selects Long Range (0) or Legacy (1) scanning.
func (c *Commander) SetScanMode(mode int) (bool, error) {
	cmd, err := protocol.CmdForScanMode(mode)
	if err != nil {
		return false, err
	}
	return c.jigInfoAck(cmd)
}

// RemoveDeviceID removes one slot from the router's device ID table.
func (c *Commander) RemoveDeviceID(index int) (bool, error) {
	cmd, err := protocol.CmdForRemoveDeviceIndex(index)
	if err != nil {
		return false, err
	}
	return c.jigInfoAck(cmd)
}

// RemoveAllDeviceIDs clears the router's device ID table.
func (c *Commander) RemoveAllDeviceIDs() (bool, error) {
	return c.jigInfoAck(protocol.CmdRemoveDeviceIDAll)
}

// KeepAlive pings the router.
func (c *Commander) KeepAlive() (bool, error) {
	return c.jigInfoAck(protocol.CmdKeepAlive)
}

// Downlink sends one module-addressed command and waits for its response.
// A non-zero result code is returned as a DeviceError alongside the
// decoded response.
func (c *Commander) Downlink(deviceID uint64, sensorID uint16, cmd byte, data []byte, timeout time.Duration) (*protocol.DownlinkResponse, error) {
	if timeout == 0 {
		timeout = c.cfg.CommandTimeout
	}
	order := c.takeOrder()
	request := protocol.EncodeDownlinkRequest(deviceID, sensorID, cmd, order, data)

	pkt, err := c.engine.Execute(request, downlinkKey(deviceID, sensorID), timeout)
	if err != nil {
		return nil, fmt.Errorf("%s to %016X: %w", protocol.ModuleCmdName(cmd), deviceID, err)
	}
	resp, ok := pkt.(*protocol.DownlinkResponse)
	if !ok {
		return nil, fmt.Errorf("%s to %016X: unexpected response type %T", protocol.ModuleCmdName(cmd), deviceID, pkt)
	}
	if !resp.Success() {
		return resp, &DeviceError{Cmd: cmd, Result: resp.Result}
	}
	return resp, nil
}

// takeOrder hands out downlink sequence numbers. Plain commands use a
// wrapping counter; the sensor DFU engine supplies its own block sequence
// numbers via DownlinkWithOrder.
func (c *Commander) takeOrder() uint16 {
	c.orderMu.Lock()
	defer c.orderMu.Unlock()
	order := c.nextOrder
	c.nextOrder++
	return order
}

// DownlinkWithOrder is Downlink with an explicit sequence number in the
// order field. The sensor DFU protocol encodes block roles there.
func (c *Commander) DownlinkWithOrder(deviceID uint64, sensorID uint16, cmd byte, order uint16, data []byte, timeout time.Duration) (*protocol.DownlinkResponse, error) {
	if timeout == 0 {
		timeout = c.cfg.CommandTimeout
	}
	request := protocol.EncodeDownlinkRequest(deviceID, sensorID, cmd, order, data)

	pkt, err := c.engine.Execute(request, downlinkKey(deviceID, sensorID), timeout)
	if err != nil {
		return nil, fmt.Errorf("%s to %016X (seq 0x%04X): %w", protocol.ModuleCmdName(cmd), deviceID, order, err)
	}
	resp, ok := pkt.(*protocol.DownlinkResponse)
	if !ok {
		return nil, fmt.Errorf("%s to %016X: unexpected response type %T", protocol.ModuleCmdName(cmd), deviceID, pkt)
	}
	if !resp.Success() {
		return resp, &DeviceError{Cmd: cmd, Result: resp.Result}
	}
	return resp, nil
}

// Tracker exposes the connection's error tracker to the DFU engines.
func (c *Commander) Tracker() *ErrorTracker {
	return c.tracker
}
