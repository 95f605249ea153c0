// Package metaspec implements Share's metadata contract: per-class
// declarations of which attribute paths each method reads and writes,
// and which attribute paths each property reads. Share consumes
// metadata if a class provides it; otherwise it synthesizes the
// conservative default.
package metaspec

import (
	"reflect"
	"sync"

	"github.com/cuemby/share/pkg/protocol"
)

// MethodMeta describes one method's declared read/write footprint.
type MethodMeta struct {
	ReadsWhole  bool
	Reads       []protocol.Path
	WritesWhole bool
	Writes      []protocol.Path
}

// WriteSet converts this method's declared writes into a protocol.WriteSet.
func (m MethodMeta) WriteSet() protocol.WriteSet {
	return protocol.WriteSet{Whole: m.WritesWhole, Paths: m.Writes}
}

// PropertyMeta describes a property's declared read footprint. A
// property never writes: a property read routes through the
// coordinator like a zero-arg method with an empty write set.
type PropertyMeta struct {
	ReadsWhole bool
	Reads      []protocol.Path
}

// ClassMeta is the full per-class declaration: one MethodMeta per
// method name, one PropertyMeta per property name.
type ClassMeta struct {
	Methods    map[string]MethodMeta
	Properties map[string]PropertyMeta
}

// Provider is implemented by user classes that declare their own
// metadata explicitly, the Go analogue of a class-level
// "_shared_meta" dictionary.
type Provider interface {
	ShareMeta() ClassMeta
}

var (
	cacheMu sync.RWMutex
	cache   = map[reflect.Type]ClassMeta{}
)

// conservativeWhole is the synthesized default for any method/property
// Share has no explicit metadata for: assume a method writes every
// attribute it can reach.
var conservativeWhole = MethodMeta{ReadsWhole: true, WritesWhole: true}

// For resolves the metadata for obj's type: the explicit Provider
// metadata if obj implements it, otherwise a cached conservative
// synthesis. The cache is populated once per concrete type and never
// mutated after.
func For(obj any) ClassMeta {
	typ := reflect.TypeOf(obj)
	if typ == nil {
		return ClassMeta{}
	}

	cacheMu.RLock()
	meta, ok := cache[typ]
	cacheMu.RUnlock()
	if ok {
		return meta
	}

	if p, ok := obj.(Provider); ok {
		meta = p.ShareMeta()
	} else {
		meta = synthesize(typ)
	}
	cacheMu.Lock()
	cache[typ] = meta
	cacheMu.Unlock()
	return meta
}

// MethodFor returns the metadata for a single named method, falling
// back to the conservative default if the class declared no metadata
// for that name specifically (metadata may be partial).
func MethodFor(obj any, method string) MethodMeta {
	meta := For(obj)
	if m, ok := meta.Methods[method]; ok {
		return m
	}
	return conservativeWhole
}

// PropertyFor returns the metadata for a single named property.
func PropertyFor(obj any, property string) PropertyMeta {
	meta := For(obj)
	if p, ok := meta.Properties[property]; ok {
		return p
	}
	return PropertyMeta{ReadsWhole: true}
}

// synthesize inspects typ once and builds the conservative default:
// every exported method reads and writes the whole entry. Go has no
// runtime concept of "property" distinct from "method", so without an
// explicit Provider every exported method is synthesized as a method,
// never a property; classes that want property semantics must
// implement Provider and say so.
func synthesize(typ reflect.Type) ClassMeta {
	meta := ClassMeta{
		Methods:    map[string]MethodMeta{},
		Properties: map[string]PropertyMeta{},
	}

	t := typ
	if t.Kind() != reflect.Ptr {
		t = reflect.PointerTo(t)
	}

	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		meta.Methods[m.Name] = conservativeWhole
	}

	return meta
}
