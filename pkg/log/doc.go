/*
Package log provides structured logging for Share using zerolog.

A global zerolog instance, JSON or console output, and
component-scoped child loggers.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│  Global Logger (zerolog.Logger, set by log.Init)         │
	│        │                                                  │
	│        ├─ WithComponent("coordinator"|"channel"|"proxy")  │
	│        ├─ WithEntry(name)                                 │
	│        └─ WithRequest(replyID)                            │
	└────────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	coordLog := log.WithComponent("coordinator")
	coordLog.Info().Str("entry", "counter").Msg("applied SET")

JSON output is the default for coordinator processes; console output
(human-readable, colorized) is meant for interactive CLI use via
`sharecoordinator run --log-json=false`.
*/
package log
