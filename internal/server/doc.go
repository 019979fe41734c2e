// Package server implements the transport layer of the room chat service.
//
// The implementation is organized into specialized files for configuration,
// the TCP accept loop, the WebSocket gateway, origin validation, and HTTP
// lifecycle helpers to keep the codebase maintainable and testable as the
// project grows.
package server
