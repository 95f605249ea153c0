// Package typeregistry maps a stable type name to a Go reflect.Type
// and back. Share needs it because, unlike a dynamically-typed
// language, Go cannot decode arbitrary bytes into "whatever type that
// was" without being told which type: assignment registers the
// concrete type under its name, and the coordinator looks the name
// back up to decode CALL/GET targets.
package typeregistry

import (
	"fmt"
	"reflect"
	"sync"
)

var (
	mu        sync.RWMutex
	byName    = map[string]reflect.Type{}
	byType    = map[reflect.Type]string{}
)

// Register associates typ with name. Re-registering the same name with
// a different type panics: that would silently corrupt every entry
// already stored under the old type.
func Register(name string, typ reflect.Type) {
	mu.Lock()
	defer mu.Unlock()
	if existing, ok := byName[name]; ok && existing != typ {
		panic(fmt.Sprintf("typeregistry: name %q already registered to a different type", name))
	}
	byName[name] = typ
	byType[typ] = name
}

// NameFor returns the registered name for typ, registering it under
// its package-qualified name if this is the first time typ is seen.
func NameFor(typ reflect.Type) string {
	mu.RLock()
	name, ok := byType[typ]
	mu.RUnlock()
	if ok {
		return name
	}

	name = typ.String()
	Register(name, typ)
	return name
}

// Lookup returns the reflect.Type registered under name, if any.
func Lookup(name string) (reflect.Type, bool) {
	mu.RLock()
	defer mu.RUnlock()
	t, ok := byName[name]
	return t, ok
}
