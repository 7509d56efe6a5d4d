// Package server is the transport side of the relay: HTTP routes, websocket
// upgrades, per-connection read and write pumps, and the Hub goroutine that
// serializes every connection event and inbound frame into the relay core.
//
// Configuration, origin checks, the hub, clients, handlers and the HTTP server
// wrapper live in separate files.
package server
