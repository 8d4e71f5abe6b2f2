// Package sqliteback implements the journal backend contract on SQLite.
//
// Records live in the journal table keyed by (stream_id, seq), so range
// replays are ordered index scans. Confirmation marks live in a separate
// confirmations table keyed by (stream_id, seq, channel_id).
//
// The database runs in WAL mode with a single writer connection, which is
// how SQLite behaves best under the journal's one-writer access pattern.
package sqliteback
