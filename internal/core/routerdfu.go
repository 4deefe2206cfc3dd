package core

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bravejig/bjig/internal/firmware"
	"github.com/bravejig/bjig/internal/protocol"
)

const (
	// dfuInitTimeout covers the router's erase cycle before it accepts the
	// transfer.
	dfuInitTimeout = 10 * time.Second

	// dfuChunkAckTimeout bounds the wait for each chunk acknowledgment.
	dfuChunkAckTimeout = 5 * time.Second
)

// dfuFinalWait gives the router time to verify and commit the image after
// the last chunk. Variable so tests can shorten the quiet window.
var dfuFinalWait = 2 * time.Second

// RouterDfuProgress reports transfer state after each accepted chunk.
type RouterDfuProgress struct {
	Phase            string
	ChunksCompleted  int
	TotalChunks      int
	BytesTransferred int
	TotalBytes       int
}

// RouterDfuProgressFunc receives progress updates during a router
// firmware transfer. May be nil.
type RouterDfuProgressFunc func(p RouterDfuProgress)

// UpdateRouterFirmware runs the two-phase router DFU protocol: an
// initiation request announcing the total image size, then the image in
// 1024-byte chunks on a raw sub-protocol, one chunk outstanding at a
// time. The first failed chunk aborts the transfer; there is no resume.
func (c *Commander) UpdateRouterFirmware(img *firmware.Image, progress RouterDfuProgressFunc) error {
	totalChunks := firmware.RouterChunkCount(img.Size())
	c.logger.Info("Starting router firmware update",
		zap.String("file", img.Path),
		zap.Int("size", img.Size()),
		zap.Int("chunks", totalChunks),
	)

	report := func(phase string, done, sent int) {
		if progress != nil {
			progress(RouterDfuProgress{
				Phase:            phase,
				ChunksCompleted:  done,
				TotalChunks:      totalChunks,
				BytesTransferred: sent,
				TotalBytes:       img.Size(),
			})
		}
	}

	c.tracker.StartDfuTracking()
	defer c.tracker.StopDfuTracking()

	// Phase 1: initiation.
	report("initiate", 0, 0)
	pkt, err := c.engine.Execute(protocol.EncodeDfuRequest(uint32(img.Size())), dfuKey, dfuInitTimeout)
	if err != nil {
		return &DfuError{Phase: "initiate", TotalBlocks: totalChunks, Err: err}
	}
	resp, ok := pkt.(*protocol.DfuResponse)
	if !ok {
		return &DfuError{Phase: "initiate", TotalBlocks: totalChunks,
			Err: fmt.Errorf("unexpected response type %T", pkt)}
	}
	if !resp.Ready() {
		return &DfuError{Phase: "initiate", TotalBlocks: totalChunks,
			Err: fmt.Errorf("router rejected update: result 0x%02X", resp.Result)}
	}

	// Phase 2: chunk transfer. Chunks ride a raw [size u16][data]
	// sub-protocol with no envelope; each waits for its acknowledgment
	// slot before the next is sent.
	sent := 0
	for i := 0; i < totalChunks; i++ {
		end := sent + protocol.RouterDfuChunkSize
		if end > img.Size() {
			end = img.Size()
		}
		chunk := protocol.EncodeDfuChunk(img.Data[sent:end])

		if err := c.sendChunk(chunk, i); err != nil {
			return &DfuError{Phase: "transfer", BlocksCompleted: i, TotalBlocks: totalChunks, Err: err}
		}
		if recs := c.tracker.DfuErrors(); len(recs) > 0 {
			return &DfuError{Phase: "transfer", BlocksCompleted: i, TotalBlocks: totalChunks,
				Err: &RouterError{Reason: recs[0].Reason}}
		}

		sent = end
		report("transfer", i+1, sent)
	}

	// Completion: the router verifies the image and restarts itself; give
	// it a quiet window and treat a trailing error notification as
	// failure.
	time.Sleep(dfuFinalWait)
	if recs := c.tracker.DfuErrors(); len(recs) > 0 {
		return &DfuError{Phase: "complete", BlocksCompleted: totalChunks, TotalBlocks: totalChunks,
			Err: &RouterError{Reason: recs[0].Reason}}
	}

	report("complete", totalChunks, img.Size())
	c.logger.Info("Router firmware update complete", zap.Int("chunks", totalChunks))
	return nil
}

// sendChunk writes one chunk and waits for its acknowledgment. Routers
// running older firmware acknowledge lazily, so a missing ack is only
// fatal when accompanied by an error notification.
func (c *Commander) sendChunk(chunk []byte, index int) error {
	pr, err := c.table.add(dfuKey)
	if err != nil {
		return err
	}
	if !c.link.Send(chunk) {
		c.table.remove(dfuKey)
		return fmt.Errorf("chunk %d: %w", index, ErrSendFailed)
	}

	pkt, err := c.awaitPending(pr, dfuChunkAckTimeout)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			c.logger.Debug("No ack for chunk, continuing", zap.Int("chunk", index))
			return nil
		}
		return fmt.Errorf("chunk %d: %w", index, err)
	}
	if resp, ok := pkt.(*protocol.DfuResponse); ok && !resp.Ready() {
		return fmt.Errorf("chunk %d rejected: result 0x%02X", index, resp.Result)
	}
	return nil
}

// awaitPending blocks on an already-registered pending request.
func (c *Commander) awaitPending(pr *pendingRequest, timeout time.Duration) (protocol.Packet, error) {
	select {
	case out := <-pr.result:
		return out.pkt, out.err
	case <-time.After(timeout):
	}
	if !c.table.remove(pr.key) {
		out := <-pr.result
		return out.pkt, out.err
	}
	return nil, ErrTimeout
}
