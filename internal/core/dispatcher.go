package core

import (
	"sync"

	"go.uber.org/zap"

	"github.com/bravejig/bjig/internal/protocol"
)

// UplinkHandler receives unsolicited uplink notifications. Invoked from
// the transport's callback workers, never from the caller's goroutine.
type UplinkHandler func(n *protocol.UplinkNotification)

// Dispatcher routes decoded inbound frames: command responses resolve
// their pending correlation entry, uplinks go to the registered handler,
// error notifications feed the tracker and fall back onto the single
// outstanding request when one exists.
type Dispatcher struct {
	table   *pendingTable
	tracker *ErrorTracker
	logger  *zap.Logger

	mu       sync.Mutex
	onUplink UplinkHandler
}

func newDispatcher(table *pendingTable, tracker *ErrorTracker, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{table: table, tracker: tracker, logger: logger}
}

// SetUplinkHandler registers the consumer for uplink notifications.
func (d *Dispatcher) SetUplinkHandler(h UplinkHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onUplink = h
}

// HandleFrame classifies and routes one inbound frame. Malformed frames
// are logged and dropped; they must never take the link down.
func (d *Dispatcher) HandleFrame(frame []byte) {
	pkt, err := protocol.ClassifyAndDecode(frame)
	if err != nil {
		d.logger.Debug("Dropping undecodable frame",
			zap.Int("length", len(frame)),
			zap.Error(err),
		)
		return
	}

	switch p := pkt.(type) {
	case *protocol.UplinkNotification:
		d.mu.Lock()
		h := d.onUplink
		d.mu.Unlock()
		if h != nil {
			h(p)
		}

	case *protocol.JigInfoResponse:
		key := jigInfoKey(p.Cmd)
		if !d.table.resolve(key, p) {
			d.logger.Debug("Unmatched JIG Info response",
				zap.String("cmd", protocol.CmdName(p.Cmd)),
			)
		}

	case *protocol.DownlinkResponse:
		key := downlinkKey(p.DeviceID, p.SensorID)
		if !d.table.resolve(key, p) {
			d.logger.Debug("Unmatched Downlink response",
				zap.Uint64("device_id", p.DeviceID),
				zap.Uint16("sensor_id", p.SensorID),
			)
		}

	case *protocol.DfuResponse:
		if !d.table.resolve(dfuKey, p) {
			d.logger.Debug("Unmatched DFU response", zap.Uint8("result", p.Result))
		}

	case *protocol.ErrorNotification:
		d.tracker.Track(p)
		// The notification does not echo a correlation key. When exactly
		// one request is outstanding it must be the one the router is
		// complaining about; otherwise attribution is impossible and the
		// affected caller times out instead.
		if key, ok := d.table.soleKey(); ok {
			d.table.fail(key, &RouterError{Reason: p.Reason})
		}
	}
}
