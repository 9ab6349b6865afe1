// Package internal contains the core implementation packages for packhouse.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing all
// the functionality behind the packhouse CLI and server.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - archive: zip export of package directory contents
//   - config: configuration loading and validation
//   - errors: typed scan error taxonomy with repository/package context
//   - logging: structured logging setup
//   - manager: named repository set, scan fan-out, cross-repository lookups
//   - metadata: field-extraction rule engine for metadata text
//   - queue: pending-work queue between traversal and processing
//   - repository: one scanned directory tree with its package index
//   - scanner: per-candidate package walk (read, extract, list)
//   - server: HTTP retrieval/export surface and websocket event stream
//   - types: shared types (packages, lifecycle events)
//   - version: build information
//   - watcher: filesystem monitoring with debouncing
package internal
