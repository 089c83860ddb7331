// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and conversions
// between cache models and lightweight wire representations. Reuse these types
// when adding new RPC endpoints to keep the protocol stable for existing
// command implementations.
package ipc
