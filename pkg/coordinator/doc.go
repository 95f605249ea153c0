/*
Package coordinator implements Share's coordinator: the dedicated
consumer that owns every write to the Source of Truth, applies
commands in channel-dequeue order, and replies to synchronous callers.

Modeled on a manager/FSM split, with lifecycle management and command
dispatch collapsed into one type because Share has exactly one
coordinator per container rather than a Raft quorum electing a leader
among many.

# Architecture

	┌─────────────────────── COORDINATOR ───────────────────────┐
	│                                                              │
	│   channel.Receive() ──► apply(cmd) ──► sot.Store.Put/Delete │
	│        ▲                    │                                │
	│        │                    ▼                                │
	│        │            channel.Reply(cmd, result)               │
	│        │                                                     │
	│   one goroutine, one command at a time: argument decoding,   │
	│   method invocation, and re-encoding never interleave with   │
	│   another command's processing.                              │
	└──────────────────────────────────────────────────────────────┘

Because Go has no dynamic attribute interception, CALL dispatch uses
reflection keyed by a per-entry type registry populated from SET: the
coordinator remembers which concrete Go type backs each entry name so
it can decode that entry's bytes into a real value and invoke named
methods on it via reflect.Value.MethodByName. A method's trailing
error return value is Share's rendering of "user exceptions": a
non-nil error there becomes a protocol.ReplyException reply instead of
a crash, and the coordinator itself never dies because of it.
*/
package coordinator
