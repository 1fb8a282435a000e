package core

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectivity: the signaling channel could not connect or authenticate.
	ErrConnectivity = errors.New("signaling connectivity")
	// ErrDevice: capture permission denied or the device is unavailable.
	ErrDevice = errors.New("capture device unavailable")
	// ErrNegotiationTimeout: an acknowledgment never arrived.
	ErrNegotiationTimeout = errors.New("negotiation timed out")
	// ErrUnknownCorrelation: an acknowledgment matched no outstanding request.
	ErrUnknownCorrelation = errors.New("unknown correlation id")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrBusy               = errors.New("busy")
	ErrNotJoined          = errors.New("not joined to a meeting")
	ErrPreviewMode        = errors.New("media unavailable in preview mode")
	ErrClosed             = errors.New("closed")
)

// CapabilityError reports that the server could not provide a usable media
// capability set. It is not fatal: the session falls back to preview mode.
type CapabilityError struct {
	Reason string
	Err    error
}

func (e *CapabilityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("media capabilities unavailable: %s: %v", e.Reason, e.Err)
	}
	return "media capabilities unavailable: " + e.Reason
}

func (e *CapabilityError) Unwrap() error { return e.Err }

func IsCapabilityError(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce)
}
