// Package feedsync provides the client engine for bidirectional paginated
// live lists and the tooling around it.

// The code is organized into subpackages:

// - internal/feed: the list engine (store, controller, live binder, mutator)
// - internal/api: typed REST client and adapters into the engine
// - internal/realtime: shared WebSocket push connection
// - internal/offline: sqlite snapshot cache for instant reopen
// - internal/mockapi: in-memory API server for development and tests
// - internal/config: environment configuration
// - internal/errors: shared error taxonomy
// - internal/logger: structured logging setup
// - internal/telemetry: OpenTelemetry tracing

// Binaries live under cmd/: feedctl is the CLI, mockd runs the mock server.
package feedsync
