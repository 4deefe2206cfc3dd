// Package core multiplexes synchronous commands over the asynchronous
// serial link.
//
// A Commander owns one connection end to end: the transport monitor, the
// correlation table of pending requests, the dispatcher that routes
// decoded inbound frames, and the error tracker. Command calls block the
// caller until the dispatcher resolves their correlation entry, a timeout
// fires, or the link drops. At most one request may be outstanding per
// correlation key; the router hardware itself processes one request at a
// time.
//
// The router firmware update engine also lives here since its chunk
// sub-protocol needs direct access to the send path and the pending
// table. The sensor module update engine, which is ordinary Downlink
// traffic, lives in the module package.
package core
