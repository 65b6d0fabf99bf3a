// Package core contains the shared leaf types of llmrelay: provider
// identities, chat messages, per-call options and status snapshots. It is
// imported by every other package and stays dependency free so provider
// adapters, the registry and the dispatcher never form cycles.
package core
