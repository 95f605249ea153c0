package coordinator

import (
	"reflect"

	"github.com/cuemby/share/pkg/protocol"
	"github.com/cuemby/share/pkg/serializer"
)

var slotType = reflect.TypeOf(serializer.Slot{})

// applyReconnectAll walks every entry in stable name order, looking
// for serializer.Slot fields holding a Reconnector placeholder left
// behind by a process that shared a live resource it could not itself
// serialize (spec 4.6: sockets, file handles, database connections).
// Each placeholder found is resolved and spliced back into the
// decoded value; entries
// that changed are re-encoded and persisted. The reply lists which
// entry names were actually touched, so a caller can tell a no-op
// RECONNECT_ALL from one that repaired live resources.
func (c *Coordinator) applyReconnectAll(cmd *protocol.Command) {
	var auth map[string]string
	if len(cmd.EncodedArgs) > 0 {
		if err := argsAPI.Unmarshal(cmd.EncodedArgs, &auth); err != nil {
			c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerCoordinatorError})
			return
		}
	}

	names := c.store.SnapshotNames()
	var updated []string

	for _, name := range names {
		typ, ok := c.entryType(name)
		if !ok {
			continue // no registered type, e.g. a primitive entry - nothing to reconnect
		}

		raw, _, err := c.store.Get(name)
		if err != nil {
			continue // deleted concurrently with the snapshot; skip it
		}

		root := reflect.New(typ)
		if err := c.serializer.Decode(raw, root.Interface()); err != nil {
			c.logger.Error().Err(err).Str("name", name).Msg("decode failed during RECONNECT_ALL")
			continue
		}

		changed, err := reconnectValue(root, auth)
		if err != nil {
			c.logger.Error().Err(err).Str("name", name).Msg("reconnect failed")
			continue
		}
		if !changed {
			continue
		}

		encoded, err := c.serializer.Encode(root.Interface())
		if err != nil {
			c.logger.Error().Err(err).Str("name", name).Msg("re-encode failed during RECONNECT_ALL")
			continue
		}
		if _, err := c.store.Put(name, encoded); err != nil {
			c.logger.Error().Err(err).Str("name", name).Msg("put failed during RECONNECT_ALL")
			continue
		}
		updated = append(updated, name)
	}

	payload, err := argsAPI.Marshal(protocol.ReconnectResult{Updated: updated})
	if err != nil {
		c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerCoordinatorError})
		return
	}
	c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyOK, Payload: payload})
}

// reconnectValue recursively walks root's exported fields looking for
// serializer.Slot values carrying a Reconnector placeholder, resolving
// each in place. It reports whether anything changed.
func reconnectValue(v reflect.Value, auth map[string]string) (bool, error) {
	changed := false

	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return false, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return false, nil
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}
		fv := v.Field(i)

		if fv.Type() == slotType {
			slot := fv.Interface().(serializer.Slot)
			if slot.Reconnector == nil {
				continue
			}
			resolved, err := slot.Reconnector.Reconnect(auth)
			if err != nil {
				return changed, err
			}
			if fv.CanSet() {
				fv.Set(reflect.ValueOf(serializer.Slot{Live: resolved}))
				changed = true
			}
			continue
		}

		switch fv.Kind() {
		case reflect.Struct, reflect.Ptr:
			if fv.CanAddr() || fv.Kind() == reflect.Ptr {
				sub, err := reconnectValue(addrOf(fv), auth)
				if err != nil {
					return changed, err
				}
				changed = changed || sub
			}
		}
	}

	return changed, nil
}

func addrOf(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Ptr {
		return v
	}
	if v.CanAddr() {
		return v.Addr()
	}
	return v
}
