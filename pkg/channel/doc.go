/*
Package channel implements Share's command channel: the multi-producer,
single-consumer queue that carries command records from any
participant to the coordinator, plus the per-request reply channels
for synchronous commands.

# Architecture

	┌──────────────────── COMMAND CHANNEL ─────────────────────┐
	│                                                            │
	│  participant A ─┐                                         │
	│  participant B ─┼──► commands chan (buffer: Capacity) ──┐  │
	│  participant N ─┘                                       │  │
	│                                                          ▼  │
	│                                              ┌────────────┐│
	│                                              │ Coordinator ││
	│                                              │  Receive()  ││
	│                                              └──────┬─────┘│
	│                                                      │      │
	│                              reply(cmd, result) ◄────┘      │
	│                                     │                       │
	│                                     ▼                       │
	│                         per-request reply channel           │
	│                         (keyed by ReplyID, one reader)      │
	└────────────────────────────────────────────────────────────┘

Send preserves FIFO order per sending goroutine; across goroutines the
order is arrival order at the buffered channel, which is exactly the
total order the coordinator applies (invariant 3 in the data model).
SendAndWait additionally blocks on a reply channel created per request
and torn down once read or timed out.

A Channel backed by this package's in-process implementation only
spans goroutines within one OS process. pkg/rpc adapts the same
Channel interface onto a gRPC connection over a Unix domain socket so a
worker started as a separate OS process can reach the same
coordinator.
*/
package channel
