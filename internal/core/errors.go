package core

import (
	"errors"
	"fmt"

	"github.com/bravejig/bjig/internal/protocol"
)

// Sentinel errors for connection and correlation failures.
var (
	ErrNotConnected   = errors.New("not connected")
	ErrDisconnected   = errors.New("disconnected")
	ErrTimeout        = errors.New("request timed out")
	ErrRequestPending = errors.New("request already pending")
	ErrSendFailed     = errors.New("send queue rejected frame")
)

// DeviceError is a non-zero result code returned by a module in a Downlink
// response.
type DeviceError struct {
	Cmd    byte
	Result byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s failed: %s (0x%02X)",
		protocol.ModuleCmdName(e.Cmd), protocol.ResultText(e.Result), e.Result)
}

// RouterError is an asynchronous error notification attributed to an
// outstanding request.
type RouterError struct {
	Reason byte
}

func (e *RouterError) Error() string {
	return fmt.Sprintf("router error: %s (0x%02X)", protocol.ErrorReasonText(e.Reason), e.Reason)
}

// DfuError is a firmware transfer failure. BlocksCompleted counts the
// chunks or blocks fully acknowledged before the abort.
type DfuError struct {
	Phase           string
	BlocksCompleted int
	TotalBlocks     int
	Err             error
}

func (e *DfuError) Error() string {
	return fmt.Sprintf("dfu %s failed after %d/%d blocks: %v",
		e.Phase, e.BlocksCompleted, e.TotalBlocks, e.Err)
}

func (e *DfuError) Unwrap() error { return e.Err }
