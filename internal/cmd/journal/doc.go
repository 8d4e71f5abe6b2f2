// Package journalcmd contains Cobra CLI commands for operating on a local
// journal store: writing, reading, trimming, confirming, and stats.
package journalcmd
