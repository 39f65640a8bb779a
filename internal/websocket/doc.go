// Package websocket pushes ledger refresh notifications to browser clients.
//
// A Hub owns the client set in a single goroutine. Each Client runs a write
// pump that forwards hub messages and pings, and a read pump that only
// detects disconnects. Handler upgrades /ws requests and registers clients.
package websocket
