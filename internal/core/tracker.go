package core

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bravejig/bjig/internal/protocol"
)

// trackerHistoryLimit caps the retained error history per connection.
const trackerHistoryLimit = 256

// ErrorRecord is one observed error notification with its interpreted
// reason.
type ErrorRecord struct {
	Timestamp  time.Time
	PacketType byte
	Reason     byte
	ReasonText string
}

// ErrorSummary is a point-in-time digest of the tracker's history.
type ErrorSummary struct {
	Total    int
	ByReason map[string]int
	Recent   []ErrorRecord
}

// ErrorTracker is a passive sink for error notifications. While a DFU
// session is active it mirrors records into a session-scoped list so the
// DFU engines can detect failures the router reports asynchronously rather
// than in a block response.
type ErrorTracker struct {
	mu        sync.Mutex
	history   []ErrorRecord
	dfuActive bool
	dfuErrors []ErrorRecord
	logger    *zap.Logger
}

func NewErrorTracker(logger *zap.Logger) *ErrorTracker {
	return &ErrorTracker{logger: logger}
}

// Track appends one notification to the history. Never fails.
func (t *ErrorTracker) Track(n *protocol.ErrorNotification) {
	rec := ErrorRecord{
		Timestamp:  time.Now(),
		PacketType: n.PacketType,
		Reason:     n.Reason,
		ReasonText: n.ReasonText(),
	}

	t.mu.Lock()
	t.history = append(t.history, rec)
	if len(t.history) > trackerHistoryLimit {
		t.history = t.history[len(t.history)-trackerHistoryLimit:]
	}
	if t.dfuActive {
		t.dfuErrors = append(t.dfuErrors, rec)
	}
	t.mu.Unlock()

	t.logger.Warn("Error notification",
		zap.String("reason", rec.ReasonText),
		zap.Uint8("code", rec.Reason),
	)
}

// History returns a copy of the retained error records, oldest first.
func (t *ErrorTracker) History() []ErrorRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ErrorRecord(nil), t.history...)
}

// Summary digests the history into totals, per-reason counts and the most
// recent records.
func (t *ErrorTracker) Summary() ErrorSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	byReason := make(map[string]int)
	for _, rec := range t.history {
		byReason[rec.ReasonText]++
	}
	recent := t.history
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	return ErrorSummary{
		Total:    len(t.history),
		ByReason: byReason,
		Recent:   append([]ErrorRecord(nil), recent...),
	}
}

// StartDfuTracking begins mirroring notifications into the DFU-scoped
// list, clearing any previous session's records.
func (t *ErrorTracker) StartDfuTracking() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dfuActive = true
	t.dfuErrors = nil
}

// DfuErrors returns the records mirrored since StartDfuTracking.
func (t *ErrorTracker) DfuErrors() []ErrorRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ErrorRecord(nil), t.dfuErrors...)
}

// StopDfuTracking ends the session and returns its accumulated records.
func (t *ErrorTracker) StopDfuTracking() []ErrorRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dfuActive = false
	records := t.dfuErrors
	t.dfuErrors = nil
	return records
}
