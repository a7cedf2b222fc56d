// Package server implements the signaling relay core: WebSocket transport,
// the hub event loop, and the registries that track connections, rooms, and
// login sessions.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, registries, routing, and HTTP handlers to keep the
// codebase maintainable and testable as the project grows.
package server
