package serializer

import (
	"fmt"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

var defaultAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONSerializer is Share's default Serializer, backed by
// json-iterator/go rather than encoding/json: it is wire-compatible
// with the standard library's JSON while avoiding the reflection
// overhead that would otherwise sit on every SET/CALL round trip
// through the coordinator.
type JSONSerializer struct{}

// NewJSON returns the default Serializer.
func NewJSON() *JSONSerializer {
	return &JSONSerializer{}
}

func (JSONSerializer) Encode(obj any) ([]byte, error) {
	b, err := defaultAPI.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("serializer: encode: %w", err)
	}
	return b, nil
}

func (JSONSerializer) Decode(data []byte, out any) error {
	if err := defaultAPI.Unmarshal(data, out); err != nil {
		return fmt.Errorf("serializer: decode: %w", err)
	}
	return nil
}

// unshareableKinds are reflect.Kinds that can never survive a
// round trip through encode/decode and must be rejected at
// assignment rather than silently proxied.
var unshareableKinds = map[reflect.Kind]bool{
	reflect.Chan:          true,
	reflect.Func:          true,
	reflect.UnsafePointer: true,
}

func (JSONSerializer) Shareable(typ reflect.Type) bool {
	t := typ
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if unshareableKinds[t.Kind()] {
		return false
	}
	switch t.String() {
	case "net.Conn", "net.Listener", "os.File", "sync.Mutex", "sync.RWMutex":
		return false
	}
	return true
}
