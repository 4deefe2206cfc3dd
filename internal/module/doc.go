// Package module implements the commands addressed to end devices over
// Downlink: instant uplink, parameter get/set, restart, and the 4-block
// sensor firmware update protocol.
//
// Parameter payloads are opaque blobs whose bit layout differs per sensor
// type; a ParameterCodec translates them at the edge and a hex passthrough
// codec ships as the default.
package module
