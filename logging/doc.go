// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug
// any structured logger. It also offers a richer RelayLogger with contextual
// helpers (call id, provider) and domain specific helpers for provider
// attempts and failover decisions, so tests can capture dispatch events
// deterministically instead of relying on ambient process-level logging.
package logging
