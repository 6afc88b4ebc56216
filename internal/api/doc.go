// Package api implements the HTTP REST API and WebSocket feed for the gadget
// inventory.
//
// This package provides:
//   - Gadget endpoints: list, get, create, update, decommission, self-destruct
//   - Registration and login returning bearer tokens
//   - A bearer-token guard on every mutating gadget route and on the audit trail
//   - A WebSocket hub broadcasting committed lifecycle events
//   - Prometheus metrics and a health endpoint
//
// # Errors
//
// Every failure answers {"error": ..., "code": ...}. Domain errors are mapped
// with errors.Is in errors.go; anything unrecognised is logged with the
// request id and answered with a generic 500.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Audit entries are written asynchronously through a bounded channel and
// flushed on Close.
package api
