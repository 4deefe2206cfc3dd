package module

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bravejig/bjig/internal/core"
	"github.com/bravejig/bjig/internal/logging"
	"github.com/bravejig/bjig/internal/protocol"
)

// parameterInfoTimeout bounds the wait for the parameter-information
// uplink that follows an accepted GET_PARAMETER.
const parameterInfoTimeout = 10 * time.Second

// Conn is the slice of the core commander the module commands need.
type Conn interface {
	Downlink(deviceID uint64, sensorID uint16, cmd byte, data []byte, timeout time.Duration) (*protocol.DownlinkResponse, error)
	DownlinkWithOrder(deviceID uint64, sensorID uint16, cmd byte, order uint16, data []byte, timeout time.Duration) (*protocol.DownlinkResponse, error)
	WaitForParameterInfo(deviceID uint64, timeout time.Duration) (*protocol.UplinkNotification, error)
	Tracker() *core.ErrorTracker
}

// Client issues module-addressed commands over one connection.
type Client struct {
	conn   Conn
	logger *zap.Logger
}

func NewClient(conn Conn, logger *zap.Logger) *Client {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Client{conn: conn, logger: logger}
}

// InstantUplink asks the module to transmit its sensor data immediately
// instead of waiting for its uplink interval.
func (c *Client) InstantUplink(deviceID uint64, sensorID uint16) error {
	_, err := c.conn.Downlink(deviceID, sensorID, protocol.ModuleCmdInstantUplink, nil, 0)
	return err
}

// Restart reboots the module's main unit.
func (c *Client) Restart(deviceID uint64) error {
	_, err := c.conn.Downlink(deviceID, protocol.SensorMainUnit, protocol.ModuleCmdRestart, nil, 0)
	return err
}

// SetParameter writes an encoded parameter blob to the module's main
// unit. The blob layout is sensor-type specific; see ParameterCodec.
func (c *Client) SetParameter(deviceID uint64, blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("set parameter: empty parameter blob")
	}
	_, err := c.conn.Downlink(deviceID, protocol.SensorMainUnit, protocol.ModuleCmdSetParameter, blob, 0)
	return err
}

// GetParameter reads the module's current parameter blob. The module
// acknowledges the Downlink request first and delivers the blob in a
// separate parameter-information uplink, which this call waits for.
func (c *Client) GetParameter(deviceID uint64) ([]byte, error) {
	if _, err := c.conn.Downlink(deviceID, protocol.SensorMainUnit, protocol.ModuleCmdGetParameter, nil, 0); err != nil {
		return nil, err
	}
	n, err := c.conn.WaitForParameterInfo(deviceID, parameterInfoTimeout)
	if err != nil {
		return nil, fmt.Errorf("get parameter: %w", err)
	}
	c.logger.Debug("Parameter info received",
		zap.String("device_id", fmt.Sprintf("%016X", deviceID)),
		zap.Int("length", len(n.Data)),
	)
	return n.Data, nil
}
