/*
Package metrics provides Prometheus metrics collection and exposition
for a Share coordinator.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                  │          │
	│  │                                              │          │
	│  │  Coordinator: commands, queue depth, latency│          │
	│  │  Source of Truth: entry count, global version│         │
	│  │  Reconnect: entries updated per pass         │          │
	│  │  Proxy: barrier wait time                    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint               │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

share_coordinator_commands_total{tag, outcome}:
  - Type: Counter
  - Description: Commands applied, by tag (SET/GET/CALL/...) and outcome (ok/exception/marker)

share_coordinator_command_duration_seconds{tag}:
  - Type: Histogram
  - Description: Time to apply one command, by tag

share_coordinator_queue_depth:
  - Type: Gauge
  - Description: Commands currently buffered on the command channel

share_sot_entries:
  - Type: Gauge
  - Description: Number of entries currently held in the Source of Truth

share_sot_global_version:
  - Type: Gauge
  - Description: Highest version number assigned to any entry

share_reconnects_total:
  - Type: Counter
  - Description: Entries updated by a RECONNECT_ALL pass

share_proxy_barrier_wait_seconds:
  - Type: Histogram
  - Description: Time a proxy spent polling for its own prior write to become visible

# Usage

	timer := metrics.NewTimer()
	co.applyCall(cmd)
	timer.ObserveDurationVec(metrics.CommandDuration, string(cmd.Tag))

	http.Handle("/metrics", metrics.Handler())

# Collector

Collector polls a sot.Store on an interval and republishes
share_sot_entries / share_sot_global_version, since those two gauges
only change on a write and a ticker is cheaper than hooking every
coordinator write path.

# Health

health.go layers a small component registry and /health, /ready,
/live handlers on top of the metrics package: a sharecoordinator
process registers "coordinator" and "rpc" as it brings each up, and
readiness fails until both report healthy.
*/
package metrics
