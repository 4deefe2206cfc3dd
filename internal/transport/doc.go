// Package transport manages the serial link to the JIG router.
//
// A Monitor owns the port and runs three kinds of goroutines once
// StartMonitoring is called:
//
//   - a reader loop that turns each USB CDC transfer into one frame
//   - a writer loop that drains a FIFO send queue so concurrent senders
//     never interleave bytes on the wire
//   - a small fixed pool of workers that deliver received frames to the
//     registered data callback
//
// The monitor knows nothing about packet contents; classification and
// decoding live in the protocol package, routing in the core package.
package transport
