// Package pebbleback implements the journal backend contract on Pebble.
//
// # Keyspace
//
// Keys are lexicographically ordered so replay is one bounded range scan:
//   - js/{stream}/e/{seq_be8}            (records)
//   - js/{stream}/c/{channel}/{seq_be8}  (confirmation marks)
//
// Records are stored as: flags(1B) | varint senderLen | sender | payload |
// crc32c(flags|sender|payload). The deleted flag lives in the value, so a
// non-permanent delete rewrites the value in place and the record keeps its
// position in replay's sequence accounting.
//
// Batch writes commit as a single Pebble batch, which is what makes the
// all-or-nothing contract hold.
package pebbleback
