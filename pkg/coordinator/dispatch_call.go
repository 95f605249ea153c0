package coordinator

import (
	"fmt"
	"reflect"

	jsoniter "github.com/json-iterator/go"

	"github.com/cuemby/share/pkg/metaspec"
	"github.com/cuemby/share/pkg/protocol"
)

var argsAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// applyCall is the CALL handler: decode the entry, traverse to the
// target sub-object, decode arguments against the method's declared
// signature, invoke it, and - only if its metadata says it writes
// anything - re-encode and persist the mutated entry. A method's
// trailing error return is Share's rendering of a raised exception:
// non-nil becomes a ReplyException instead of crashing the loop.
func (c *Coordinator) applyCall(cmd *protocol.Command) {
	typ, ok := c.entryType(cmd.Name)
	if !ok {
		c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerMissingEntry})
		return
	}

	raw, _, err := c.store.Get(cmd.Name)
	if err != nil {
		c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerMissingEntry})
		return
	}

	root := reflect.New(typ) // *typ
	if err := c.serializer.Decode(raw, root.Interface()); err != nil {
		c.logger.Error().Err(err).Str("name", cmd.Name).Msg("decode failed on CALL")
		c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerSharedStateCorrupt})
		return
	}

	var resultVal any
	var callErr error

	if cmd.MethodName == syntheticSetterMethod {
		// A plain attribute write (spec 4.4.4) - cmd.Path is the full
		// path to the attribute itself, not a method receiver; there is
		// no Go method to invoke, just a field to set.
		if len(cmd.Path) == 0 {
			c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerCoordinatorError})
			return
		}
		parent, err := traverse(root, cmd.Path[:len(cmd.Path)-1])
		if err != nil {
			c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerMissingEntry})
			return
		}
		field := parent.FieldByName(cmd.Path[len(cmd.Path)-1])
		if !field.IsValid() || !field.CanSet() {
			c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerMissingEntry})
			return
		}
		var args []jsoniter.RawMessage
		if err := argsAPI.Unmarshal(cmd.EncodedArgs, &args); err != nil || len(args) != 1 {
			c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerCoordinatorError})
			return
		}
		valuePtr := reflect.New(field.Type())
		if err := argsAPI.Unmarshal(args[0], valuePtr.Interface()); err != nil {
			c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerCoordinatorError})
			return
		}
		field.Set(valuePtr.Elem())
	} else {
		target, err := traverse(root, cmd.Path)
		if err != nil {
			c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerMissingEntry})
			return
		}

		method := target.MethodByName(cmd.MethodName)
		if !method.IsValid() {
			c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerMissingEntry})
			return
		}

		args, err := decodeArgs(method.Type(), cmd.EncodedArgs)
		if err != nil {
			c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerCoordinatorError})
			return
		}

		results := method.Call(args)
		resultVal, callErr = splitResults(results)
	}

	meta := metaspec.MethodFor(root.Interface(), cmd.MethodName)
	writes := meta.WriteSet()
	// Metadata absence already resolved to conservative (whole) writes
	// by metaspec.MethodFor; an explicit Writes on the command (set by
	// a synthetic setter call, see proxy attribute-write path) takes
	// precedence over the method's own declared metadata.
	if cmd.Writes.AnyWrites() || cmd.MethodName == syntheticSetterMethod {
		writes = cmd.Writes
	}

	if writes.AnyWrites() {
		encoded, encErr := c.serializer.Encode(root.Interface())
		if encErr != nil {
			c.logger.Error().Err(encErr).Str("name", cmd.Name).Msg("re-encode failed after CALL")
			c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerCoordinatorError})
			return
		}
		if _, err := c.store.Put(cmd.Name, encoded); err != nil {
			c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerCoordinatorError})
			return
		}
	}

	version := c.store.VersionOf(cmd.Name)

	if cmd.ReplyID == "" {
		return // asynchronous call, no one is waiting
	}

	if callErr != nil {
		payload, _ := argsAPI.Marshal(map[string]string{"message": callErr.Error()})
		c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyException, Payload: payload, Version: version})
		return
	}

	payload, err := argsAPI.Marshal(resultVal)
	if err != nil {
		c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerCoordinatorError})
		return
	}
	c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyOK, Payload: payload, Version: version})
}

// syntheticSetterMethod is the MethodName the proxy sends for a plain
// attribute write (spec 4.4.4: "equivalent to calling a synthetic
// setter method whose writes is {path_to_attr}").
const syntheticSetterMethod = "__set__"

// applyGet decodes the entry, traverses to path, and replies with the
// encoded leaf value without invoking any method and without writing
// back - used when the metadata for a read declares no writes
// downstream but the value still must be evaluated inside the
// coordinator for consistency.
func (c *Coordinator) applyGet(cmd *protocol.Command) {
	typ, ok := c.entryType(cmd.Name)
	if !ok {
		c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerMissingEntry})
		return
	}

	raw, version, err := c.store.Get(cmd.Name)
	if err != nil {
		c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerMissingEntry})
		return
	}

	root := reflect.New(typ)
	if err := c.serializer.Decode(raw, root.Interface()); err != nil {
		c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerSharedStateCorrupt})
		return
	}

	leaf, err := traverse(root, cmd.Path)
	if err != nil {
		c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerMissingEntry})
		return
	}

	payload, err := argsAPI.Marshal(leaf.Interface())
	if err != nil {
		c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerCoordinatorError})
		return
	}
	c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyOK, Payload: payload, Version: version})
}

// traverse walks path from root (a pointer to the decoded entry),
// following exported struct fields one step at a time.
func traverse(root reflect.Value, path protocol.Path) (reflect.Value, error) {
	v := root
	for _, step := range path {
		for v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}, fmt.Errorf("coordinator: nil pointer traversing path at %q", step)
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("coordinator: cannot traverse into non-struct at %q", step)
		}
		next := v.FieldByName(step)
		if !next.IsValid() {
			return reflect.Value{}, fmt.Errorf("coordinator: no field %q", step)
		}
		v = next
	}
	return v, nil
}

// decodeArgs unmarshals a JSON array of arguments into values matching
// method's declared parameter types.
func decodeArgs(methodType reflect.Type, encoded []byte) ([]reflect.Value, error) {
	n := methodType.NumIn()
	if n == 0 {
		return nil, nil
	}

	var raw []jsoniter.RawMessage
	if len(encoded) > 0 {
		if err := argsAPI.Unmarshal(encoded, &raw); err != nil {
			return nil, fmt.Errorf("coordinator: decode args: %w", err)
		}
	}
	if len(raw) != n {
		return nil, fmt.Errorf("coordinator: method expects %d args, got %d", n, len(raw))
	}

	args := make([]reflect.Value, n)
	for i := 0; i < n; i++ {
		paramType := methodType.In(i)
		ptr := reflect.New(paramType)
		if err := argsAPI.Unmarshal(raw[i], ptr.Interface()); err != nil {
			return nil, fmt.Errorf("coordinator: decode arg %d: %w", i, err)
		}
		args[i] = ptr.Elem()
	}
	return args, nil
}

// splitResults separates a method's trailing error return (if any)
// from the value result it should reply with.
func splitResults(results []reflect.Value) (value any, err error) {
	if len(results) == 0 {
		return nil, nil
	}

	errType := reflect.TypeOf((*error)(nil)).Elem()
	last := results[len(results)-1]
	if last.Type().Implements(errType) {
		if !last.IsNil() {
			err = last.Interface().(error)
		}
		results = results[:len(results)-1]
	}

	switch len(results) {
	case 0:
		return nil, err
	case 1:
		return results[0].Interface(), err
	default:
		vals := make([]any, len(results))
		for i, r := range results {
			vals[i] = r.Interface()
		}
		return vals, err
	}
}
