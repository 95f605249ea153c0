// Package share implements the Share container: the user-visible
// surface of a transparent cross-process shared-object store. A Share
// owns a Source of Truth, a command channel and a coordinator
// goroutine; it hands out proxy.Proxy handles for non-primitive
// entries and fast-paths primitive reads straight from the Source of
// Truth.
//
// New builds a container, Start spawns its coordinator. Recovery after
// a coordinator crash discards the old Source of Truth and spawns a
// fresh, empty one on the next Start - there is no salvage of
// in-flight state.
package share
