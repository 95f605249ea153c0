// Package protocol defines the wire records exchanged between Share
// participants and the coordinator: command tags, attribute paths,
// metadata declarations, and reply markers.
package protocol

import "time"

// Tag identifies the kind of operation a Command carries.
type Tag string

const (
	TagSet          Tag = "SET"
	TagDelete       Tag = "DELETE"
	TagCall         Tag = "CALL"
	TagGet          Tag = "GET"
	TagReconnectAll Tag = "RECONNECT_ALL"
	TagClear        Tag = "CLEAR"
	TagShutdown     Tag = "SHUTDOWN"
)

// WriteSet describes which attribute paths a CALL touches. A nil Paths
// with Whole true means "writes the entire entry"; a nil Paths with
// Whole false means "writes nothing".
type WriteSet struct {
	Whole bool
	Paths []Path
}

// AnyWrites reports whether the write set is non-empty.
func (w WriteSet) AnyWrites() bool {
	return w.Whole || len(w.Paths) > 0
}

// Path is an ordered sequence of attribute steps rooted at an entry,
// e.g. Path{"config", "limit"} addresses config.limit on the entry.
type Path []string

// Command is the record carried on the command channel, in the layout
// described by the on-the-wire format: a tag, a target entry name, an
// optional path, method name and encoded arguments for CALL, the
// write set declared (or synthesized) for the call, an opaque
// reply-channel id for synchronous tags, and a sequence number the
// channel assigns on Send, used only for diagnostics.
type Command struct {
	Tag          Tag
	Name         string
	Path         Path
	MethodName   string
	EncodedArgs  []byte
	Writes       WriteSet
	ReplyID      string
	Sequence     uint64
	Sender       string
	SubmittedAt  time.Time
}

// ReplyKind distinguishes a successful payload from an exception or a
// structural marker.
type ReplyKind string

const (
	ReplyOK        ReplyKind = "OK"
	ReplyException ReplyKind = "EXCEPTION"
	ReplyMarker    ReplyKind = "MARKER"
)

// Marker enumerates the structural failure conditions the coordinator
// or channel can report instead of a decoded value.
type Marker string

const (
	MarkerMissingEntry            Marker = "MissingEntry"
	MarkerCoordinatorError        Marker = "CoordinatorError"
	MarkerChannelTimeout          Marker = "ChannelTimeout"
	MarkerUnsupportedShareType    Marker = "UnsupportedShareType"
	MarkerSharedStateCorrupt      Marker = "SharedStateCorrupt"
	MarkerCoordinatorUnavailable  Marker = "CoordinatorUnavailable"
	MarkerInvalidShareName        Marker = "InvalidShareName"
)

// Reply is what the coordinator posts back for a synchronous command.
type Reply struct {
	Kind    ReplyKind
	Payload []byte // valid when Kind == ReplyOK or ReplyException
	Marker  Marker // valid when Kind == ReplyMarker
	Version uint64 // version of the target entry after the command applied, if any
}

// ReconnectResult is the payload of a RECONNECT_ALL reply: which
// entries had a placeholder successfully replaced with a live object.
type ReconnectResult struct {
	Updated []string
}
