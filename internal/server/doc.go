// Package server implements the Castwire broadcast relay: a WebSocket hub
// that fans chat messages out to every connected client, tracks presence,
// and replays a bounded rolling history to new joiners.
//
// The implementation is organized into specialized files for configuration,
// the hub event loop, protocol dispatch, clients, routing, and HTTP handlers
// to keep the codebase maintainable and testable as the project grows.
package server
