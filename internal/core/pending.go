package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/bravejig/bjig/internal/protocol"
)

// Correlation keys. One outstanding request maps to exactly one key; the
// router itself processes one request at a time, so the key space mirrors
// the hardware's own constraint.
const dfuKey = "dfu_response"

func jigInfoKey(cmd byte) string {
	return fmt.Sprintf("jig_info_%02X", cmd)
}

func downlinkKey(deviceID uint64, sensorID uint16) string {
	return fmt.Sprintf("downlink_%016X_%04X", deviceID, sensorID)
}

type outcome struct {
	pkt protocol.Packet
	err error
}

type pendingRequest struct {
	key       string
	result    chan outcome // size 1, written exactly once
	createdAt time.Time
}

// pendingTable is the correlation table. It is the only structure in the
// engine touched from both the caller's goroutine and the dispatcher.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingRequest
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*pendingRequest)}
}

// add registers a new pending request, failing fast if the key is already
// occupied.
func (t *pendingTable) add(key string) (*pendingRequest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRequestPending, key)
	}
	pr := &pendingRequest{
		key:       key,
		result:    make(chan outcome, 1),
		createdAt: time.Now(),
	}
	t.entries[key] = pr
	return pr, nil
}

// remove unregisters the key. It reports whether the entry was still
// present; false means the dispatcher already consumed it.
func (t *pendingTable) remove(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[key]; !exists {
		return false
	}
	delete(t.entries, key)
	return true
}

// resolve completes the request for key with a decoded packet. Unmatched
// responses (late arrivals after a timeout removed the entry) return false
// and are dropped by the caller.
func (t *pendingTable) resolve(key string, pkt protocol.Packet) bool {
	return t.complete(key, outcome{pkt: pkt})
}

// fail completes the request for key with an error.
func (t *pendingTable) fail(key string, err error) bool {
	return t.complete(key, outcome{err: err})
}

func (t *pendingTable) complete(key string, out outcome) bool {
	t.mu.Lock()
	pr, exists := t.entries[key]
	if exists {
		delete(t.entries, key)
	}
	t.mu.Unlock()
	if !exists {
		return false
	}
	pr.result <- out
	return true
}

// failAll completes every pending request with err and empties the table.
func (t *pendingTable) failAll(err error) int {
	t.mu.Lock()
	pending := make([]*pendingRequest, 0, len(t.entries))
	for _, pr := range t.entries {
		pending = append(pending, pr)
	}
	t.entries = make(map[string]*pendingRequest)
	t.mu.Unlock()

	for _, pr := range pending {
		pr.result <- outcome{err: err}
	}
	return len(pending)
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// soleKey returns the key of the only pending request, if exactly one is
// outstanding. Error notifications carry no correlation information, so
// this is the best attribution available.
func (t *pendingTable) soleKey() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) != 1 {
		return "", false
	}
	for key := range t.entries {
		return key, true
	}
	return "", false
}
