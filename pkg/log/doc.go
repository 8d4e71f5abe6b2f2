// Package log provides the structured logging system used by scribe
// components.
//
// Loggers are constructed explicitly and passed by dependency injection;
// there is no package-level default. Components tag their logger once and
// attach per-event fields at the call site:
//
//	logger := log.NewLogger(log.WithLevel(log.InfoLevel)).With(log.Component("journal"))
//	logger.Info("write settled", log.F("stream", rec.StreamID), log.F("seq", n))
//
// Output format is text (console friendly) or JSON, selected via Config or
// the constructor options. RedirectStdLog routes stdlib log traffic (for
// example Pebble's internal logger) through a Logger so the whole process
// emits one format.
package log
