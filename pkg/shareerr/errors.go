// Package shareerr defines Share's structural error taxonomy: the
// well-typed errors callers can distinguish with errors.Is/errors.As,
// independent of whatever a user method itself raised. Both pkg/proxy
// and pkg/share depend on this package rather than on each other, so
// a marker reply can be turned into the right Go error without an
// import cycle between the two.
package shareerr

import (
	"errors"
	"fmt"

	"github.com/cuemby/share/pkg/protocol"
)

// Sentinel errors for the structural taxonomy: errors a caller
// distinguishes from a user-method exception. Wrap these with
// fmt.Errorf("...: %w", ...) to attach the entry name.
var (
	ErrCoordinatorUnavailable = errors.New("share: coordinator unavailable")
	ErrChannelTimeout         = errors.New("share: channel timeout")
	ErrSharedStateCorrupt     = errors.New("share: shared state corrupt")
	ErrUnsupportedShareType   = errors.New("share: unsupported share type")
	ErrInvalidShareName       = errors.New("share: invalid share name")
	ErrMissingEntry           = errors.New("share: missing entry")
	ErrCoordinatorError       = errors.New("share: coordinator error")
)

// NamedError pairs a sentinel with the entry name it happened on, so
// errors.Is(err, shareerr.ErrMissingEntry) still works after wrapping.
type NamedError struct {
	Sentinel error
	Name     string
}

func (e *NamedError) Error() string {
	if e.Name == "" {
		return e.Sentinel.Error()
	}
	return fmt.Sprintf("%s: %s", e.Sentinel.Error(), e.Name)
}

func (e *NamedError) Unwrap() error { return e.Sentinel }

// Named builds a NamedError for sentinel scoped to name.
func Named(sentinel error, name string) error {
	return &NamedError{Sentinel: sentinel, Name: name}
}

// FromMarker translates a protocol.Marker reply into the matching
// shareerr sentinel, wrapped with the entry name it concerns.
func FromMarker(marker protocol.Marker, name string) error {
	switch marker {
	case protocol.MarkerMissingEntry:
		return Named(ErrMissingEntry, name)
	case protocol.MarkerCoordinatorError:
		return Named(ErrCoordinatorError, name)
	case protocol.MarkerChannelTimeout:
		return Named(ErrChannelTimeout, name)
	case protocol.MarkerUnsupportedShareType:
		return Named(ErrUnsupportedShareType, name)
	case protocol.MarkerSharedStateCorrupt:
		return Named(ErrSharedStateCorrupt, name)
	case protocol.MarkerCoordinatorUnavailable:
		return Named(ErrCoordinatorUnavailable, name)
	case protocol.MarkerInvalidShareName:
		return Named(ErrInvalidShareName, name)
	default:
		return fmt.Errorf("share: unrecognized marker %q for %q", marker, name)
	}
}
