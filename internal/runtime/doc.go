// Package runtime wires storage, notification, and the journal front end
// into a single-node instance driven by config.
package runtime
