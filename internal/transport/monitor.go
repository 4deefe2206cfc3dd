package transport

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"github.com/bravejig/bjig/internal/logging"
)

const (
	// DefaultBaudRate is the fixed line speed of the JIG router USB CDC port.
	DefaultBaudRate = 38400

	// defaultReadTimeout bounds each blocking Read so the reader loop can
	// observe shutdown promptly.
	defaultReadTimeout = 100 * time.Millisecond

	// callbackWorkers is the number of goroutines delivering received frames
	// to the data callback. Bounded so a slow consumer cannot spawn
	// unbounded goroutines while frames keep arriving.
	callbackWorkers = 4

	// sendQueueDepth is the number of outbound frames that may be queued
	// before Send blocks.
	sendQueueDepth = 32

	// readBufferSize is larger than any single protocol frame (the biggest
	// is a router firmware chunk: 2 + 1024 bytes).
	readBufferSize = 2048
)

// Config holds the serial link parameters.
type Config struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

// Stats is a snapshot of link counters since Connect.
type Stats struct {
	FramesReceived uint64
	FramesSent     uint64
	BytesReceived  uint64
	BytesSent      uint64
	ReadErrors     uint64
	WriteErrors    uint64
	ConnectedAt    time.Time
}

// DataCallback receives one complete frame read from the port. The slice is
// owned by the callback and is never reused by the monitor.
type DataCallback func(frame []byte)

// ErrorCallback receives read or write failures from the background loops.
type ErrorCallback func(err error)

// ConnectionCallback is invoked with false when the link drops and the
// monitor stops itself.
type ConnectionCallback func(connected bool)

// openPort is swapped out in tests to avoid touching real hardware.
type openPort func(name string, mode *serial.Mode) (serial.Port, error)

// Monitor owns a serial port and runs the reader, writer and callback
// delivery goroutines. All exported methods are safe for concurrent use.
type Monitor struct {
	cfg    Config
	logger *zap.Logger
	open   openPort

	mu         sync.Mutex
	port       serial.Port
	monitoring bool
	stop       chan struct{}
	sendQ      chan []byte
	jobs       chan []byte
	wg         sync.WaitGroup

	onData       DataCallback
	onError      ErrorCallback
	onConnChange ConnectionCallback

	statsMu sync.Mutex
	stats   Stats
}

// NewMonitor creates a monitor for the given port. The link is not opened
// until Connect.
func NewMonitor(cfg Config, logger *zap.Logger) *Monitor {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Monitor{
		cfg:    cfg,
		logger: logger,
		open:   serial.Open,
	}
}

// SetDataCallback registers the receiver for inbound frames. Must be called
// before StartMonitoring.
func (m *Monitor) SetDataCallback(cb DataCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onData = cb
}

// SetErrorCallback registers the receiver for background loop failures.
func (m *Monitor) SetErrorCallback(cb ErrorCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = cb
}

// SetConnectionCallback registers the receiver for link state changes.
func (m *Monitor) SetConnectionCallback(cb ConnectionCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnChange = cb
}

// Connect opens the serial port. It does not start the background loops;
// call StartMonitoring after registering callbacks.
func (m *Monitor) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.port != nil {
		return fmt.Errorf("transport: already connected to %s", m.cfg.Port)
	}

	mode := &serial.Mode{
		BaudRate: m.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := m.open(m.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("transport: failed to open %s: %w", m.cfg.Port, err)
	}
	if err := port.SetReadTimeout(m.cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return fmt.Errorf("transport: failed to set read timeout on %s: %w", m.cfg.Port, err)
	}
	_ = port.ResetInputBuffer()

	m.port = port
	m.statsMu.Lock()
	m.stats = Stats{ConnectedAt: time.Now()}
	m.statsMu.Unlock()

	m.logger.Info("Serial port opened",
		zap.String("port", m.cfg.Port),
		zap.Int("baud_rate", m.cfg.BaudRate),
	)
	return nil
}

// StartMonitoring launches the reader, writer and callback worker
// goroutines.
func (m *Monitor) StartMonitoring() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.port == nil {
		return fmt.Errorf("transport: not connected")
	}
	if m.monitoring {
		return fmt.Errorf("transport: already monitoring")
	}

	m.stop = make(chan struct{})
	m.sendQ = make(chan []byte, sendQueueDepth)
	m.jobs = make(chan []byte, sendQueueDepth)
	m.monitoring = true

	for i := 0; i < callbackWorkers; i++ {
		m.wg.Add(1)
		go m.callbackWorker()
	}
	m.wg.Add(2)
	go m.readLoop()
	go m.writeLoop()

	m.logger.Debug("Monitoring started", zap.String("port", m.cfg.Port))
	return nil
}

// StopMonitoring stops the background loops and waits for them to drain.
// The port stays open; call Disconnect to close it.
func (m *Monitor) StopMonitoring() {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}
	m.monitoring = false
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Debug("Monitoring stopped", zap.String("port", m.cfg.Port))
}

// Disconnect stops monitoring and closes the port.
func (m *Monitor) Disconnect() error {
	m.StopMonitoring()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.port == nil {
		return nil
	}
	err := m.port.Close()
	m.port = nil
	if err != nil {
		return fmt.Errorf("transport: close %s: %w", m.cfg.Port, err)
	}
	m.logger.Info("Serial port closed", zap.String("port", m.cfg.Port))
	return nil
}

// IsConnected reports whether the port is open.
func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port != nil
}

// Send queues a frame for transmission in FIFO order. It blocks while the
// queue is full and returns false once monitoring has stopped.
func (m *Monitor) Send(frame []byte) bool {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return false
	}
	sendQ := m.sendQ
	stop := m.stop
	m.mu.Unlock()

	select {
	case sendQ <- frame:
		return true
	case <-stop:
		return false
	}
}

// Statistics returns a snapshot of the link counters.
func (m *Monitor) Statistics() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

// PortInfo describes one serial device on this host.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// ListPorts enumerates serial devices on this host with USB metadata where
// the platform provides it.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("transport: enumerate ports: %w", err)
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}

// readLoop reads frames off the port until stop or a hard read error.
// A USB CDC transfer delivers each router packet as one unit, so every
// non-empty Read is treated as a complete frame.
func (m *Monitor) readLoop() {
	defer m.wg.Done()
	defer close(m.jobs)

	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-m.stop:
			return
		default:
		}

		n, err := m.port.Read(buf)
		if err != nil {
			select {
			case <-m.stop:
				// Expected: Close unblocks the pending Read during shutdown.
				return
			default:
			}
			m.statsMu.Lock()
			m.stats.ReadErrors++
			m.statsMu.Unlock()
			m.logger.Error("Serial read failed", zap.Error(err))
			m.reportError(fmt.Errorf("transport: read: %w", err))
			m.reportConnChange(false)
			return
		}
		if n == 0 {
			// Read timeout with no data, poll again.
			continue
		}

		frame := make([]byte, n)
		copy(frame, buf[:n])

		m.statsMu.Lock()
		m.stats.FramesReceived++
		m.stats.BytesReceived += uint64(n)
		m.statsMu.Unlock()

		logging.LogFrame("rx", frame)

		select {
		case m.jobs <- frame:
		case <-m.stop:
			return
		}
	}
}

// writeLoop drains the send queue onto the port one frame at a time so
// concurrent senders cannot interleave bytes.
func (m *Monitor) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stop:
			return
		case frame := <-m.sendQ:
			n, err := m.port.Write(frame)
			if err != nil {
				m.statsMu.Lock()
				m.stats.WriteErrors++
				m.statsMu.Unlock()
				m.logger.Error("Serial write failed", zap.Error(err))
				m.reportError(fmt.Errorf("transport: write: %w", err))
				continue
			}
			// Each frame is flushed to the device before the next is sent;
			// the router treats one USB transfer as one packet.
			if err := m.port.Drain(); err != nil {
				m.logger.Warn("Serial drain failed", zap.Error(err))
			}
			m.statsMu.Lock()
			m.stats.FramesSent++
			m.stats.BytesSent += uint64(n)
			m.statsMu.Unlock()
			logging.LogFrame("tx", frame)
		}
	}
}

func (m *Monitor) callbackWorker() {
	defer m.wg.Done()
	for frame := range m.jobs {
		m.mu.Lock()
		cb := m.onData
		m.mu.Unlock()
		if cb != nil {
			cb(frame)
		}
	}
}

func (m *Monitor) reportError(err error) {
	m.mu.Lock()
	cb := m.onError
	m.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (m *Monitor) reportConnChange(connected bool) {
	m.mu.Lock()
	cb := m.onConnChange
	m.mu.Unlock()
	if cb != nil {
		cb(connected)
	}
}
