// Package pebblestore wraps a Pebble database with scribe's durability
// policy and a few helpers for batches and range scans.
//
// The wrapper exists so backends never touch Pebble's sync options
// directly: the fsync mode chosen at open time (always, interval
// group-commit, or never) applies to every committed batch.
package pebblestore
