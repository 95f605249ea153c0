// Package serializer defines the external object-encoding contract
// Share consumes (encode/decode, live-resource reconnectors, and
// non-shareable type detection) and ships a default implementation.
//
// Share treats the object serializer as an external collaborator: it
// calls Encode/Decode as a black box and never inspects the encoded
// bytes itself. Everything in this package beyond the Serializer
// interface is one concrete, swappable implementation, not part of
// Share's core contract.
package serializer

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Reconnectable is implemented by live-resource values (open
// connections, file handles, anything that cannot cross a process
// boundary as plain bytes). Disconnect yields a Reconnector
// placeholder; Reconnect later resolves the placeholder back into a
// live value given authentication data. JSONSerializer.Encode does not
// call Disconnect: a value is stored as a placeholder only when a Slot
// field already holds its Reconnector.
type Reconnectable interface {
	// Disconnect returns a placeholder that stands in for this value
	// until Reconnect is called on it.
	Disconnect() *Reconnector
}

// Reconnector is the serializer-produced placeholder for a live
// resource. It is itself a plain, encodable value.
type Reconnector struct {
	Kind string // identifies which reconnect logic applies, e.g. "db.Conn"
	Ref  string // opaque resource reference the Kind's resolver understands
}

// Reconnect resolves a Reconnector into a live value using auth. The
// zero-value resolver registry returns an error; callers that actually
// use live resources register a resolver via RegisterResolver.
func (r *Reconnector) Reconnect(auth map[string]string) (any, error) {
	resolver, ok := resolvers[r.Kind]
	if !ok {
		return nil, fmt.Errorf("serializer: no resolver registered for reconnector kind %q", r.Kind)
	}
	return resolver(r.Ref, auth)
}

// Resolver turns a Reconnector's Ref plus auth data into a live value.
type Resolver func(ref string, auth map[string]string) (any, error)

var resolvers = map[string]Resolver{}

// RegisterResolver installs the resolver used for a reconnector kind.
// Intended to be called once at program startup by whatever package
// owns the live-resource type.
func RegisterResolver(kind string, r Resolver) {
	resolvers[kind] = r
}

// Slot is the wire-safe container a struct field uses to hold
// something that is sometimes a live resource and sometimes a
// Reconnector placeholder. A plain `any` field can't make this trip:
// generic JSON decode into an empty interface always produces a map,
// never a concrete *Reconnector, so RECONNECT_ALL would have nothing
// reliable to find. Slot's own (Un)MarshalJSON decide which of the two
// it is by shape.
type Slot struct {
	Live        any
	Reconnector *Reconnector
}

// MarshalJSON encodes whichever of Live or Reconnector is set.
func (s Slot) MarshalJSON() ([]byte, error) {
	if s.Reconnector != nil {
		return json.Marshal(s.Reconnector)
	}
	return json.Marshal(s.Live)
}

// UnmarshalJSON recognizes the Reconnector shape (a "kind" field) and
// otherwise leaves Live as the generic decode Go's json package would
// have produced anyway.
func (s *Slot) UnmarshalJSON(data []byte) error {
	var probe struct {
		Kind string
		Ref  string
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.Kind != "" {
		s.Reconnector = &Reconnector{Kind: probe.Kind, Ref: probe.Ref}
		s.Live = nil
		return nil
	}
	s.Reconnector = nil
	return json.Unmarshal(data, &s.Live)
}

// Serializer is the contract Share consumes from the external object
// encoder.
type Serializer interface {
	// Encode produces a self-contained byte string for obj.
	Encode(obj any) ([]byte, error)

	// Decode is the inverse of Encode, idempotent on pure data.
	Decode(data []byte, out any) error

	// Shareable reports whether typ may be assigned into a Share
	// container. Process-local IPC primitives and similar
	// non-transportable types must return false here so the proxy
	// layer can reject them at the assignment call site.
	Shareable(typ reflect.Type) bool
}
