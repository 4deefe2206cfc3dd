// Package protocol implements the BraveJIG binary wire protocol.
//
// This package handles encoding and decoding of every packet kind exchanged
// with a BraveJIG router over its serial/USB link. It is pure codec: no I/O,
// no state, plain functions over byte slices. All multi-byte integers are
// little-endian.
//
// # Wire Envelope
//
// Every packet starts with a 2-byte envelope:
//   - Byte 0: protocol version, always 0x01 (other versions are rejected)
//   - Byte 1: packet type
//
// Packet types:
//   - 0x00: uplink notification (inbound) / downlink request (outbound)
//   - 0x01: downlink response
//   - 0x02: JIG Info response (reused for downlink responses on some paths)
//   - 0x03: DFU request/response (reused for uplink on some firmware)
//   - 0x04, 0xFF: error notification (legacy / current)
//
// The type byte alone does not identify a packet. ClassifyAndDecode applies
// the length-based disambiguation observed on real hardware and returns a
// typed Packet; dispatchers should switch on the concrete decoded type.
//
// # Command Families
//
//   - JIG Info: commands addressed to the router itself (start/stop,
//     version, scan mode, device ID table, keep-alive).
//   - Downlink: commands addressed to a module, identified by
//     (device_id, sensor_id). sensor_id 0x0000 targets the module main unit.
//   - Uplink: unsolicited module notifications carrying sensor data, or
//     parameter information when sensor_id is 0x0000.
//   - DFU: router firmware update initiation plus the raw in-session chunk
//     sub-protocol. Sensor module firmware updates ride on Downlink cmd
//     0x12 instead; see the module package.
//
// # Error Handling
//
// Decode failures return typed errors (ShortPacketError, BadVersionError,
// BadLengthError, UnknownTypeError) and never panic. Malformed frames are
// expected on a live link; callers log them and keep scanning.
package protocol
