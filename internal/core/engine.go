package core

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bravejig/bjig/internal/protocol"
	"github.com/bravejig/bjig/internal/transport"
)

// DefaultCommandTimeout bounds ordinary JIG Info and Downlink commands.
const DefaultCommandTimeout = 5 * time.Second

// Link is the slice of the transport the command engine and commander
// need. transport.Monitor satisfies it; tests substitute a scripted fake.
type Link interface {
	Connect() error
	Disconnect() error
	StartMonitoring() error
	StopMonitoring()
	IsConnected() bool
	Send(frame []byte) bool
	SetDataCallback(cb transport.DataCallback)
	SetErrorCallback(cb transport.ErrorCallback)
	SetConnectionCallback(cb transport.ConnectionCallback)
	Statistics() transport.Stats
}

// Engine turns the asynchronous request/response link into synchronous
// calls: encode, register a correlation entry, send, block until the
// dispatcher resolves the entry or the timeout fires.
type Engine struct {
	link   Link
	table  *pendingTable
	logger *zap.Logger
}

func newEngine(link Link, table *pendingTable, logger *zap.Logger) *Engine {
	return &Engine{link: link, table: table, logger: logger}
}

// Execute sends request and blocks until the response correlated under key
// arrives, the timeout fires, or the link drops. No retries: retry policy
// belongs to callers who know whether their command is idempotent.
func (e *Engine) Execute(request []byte, key string, timeout time.Duration) (protocol.Packet, error) {
	if !e.link.IsConnected() {
		return nil, ErrNotConnected
	}

	pr, err := e.table.add(key)
	if err != nil {
		return nil, err
	}

	if !e.link.Send(request) {
		e.table.remove(key)
		return nil, fmt.Errorf("%w: %s", ErrSendFailed, key)
	}

	e.logger.Debug("Request sent",
		zap.String("key", key),
		zap.Int("length", len(request)),
		zap.Duration("timeout", timeout),
	)

	select {
	case out := <-pr.result:
		return out.pkt, out.err
	case <-time.After(timeout):
	}

	// The entry may have been resolved in the instant the timer fired; in
	// that case the buffered result wins over the timeout.
	if !e.table.remove(key) {
		out := <-pr.result
		return out.pkt, out.err
	}
	e.logger.Warn("Request timed out", zap.String("key", key))
	return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, key, timeout)
}

// cancelAll fails every outstanding request, typically with
// ErrDisconnected.
func (e *Engine) cancelAll(err error) {
	if n := e.table.failAll(err); n > 0 {
		e.logger.Info("Cancelled pending requests", zap.Int("count", n), zap.Error(err))
	}
}
