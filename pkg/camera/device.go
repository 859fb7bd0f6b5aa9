package camera

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/teslashibe/go-moodcam/pkg/perception"
)

// Sentinel errors.
var (
	// ErrDeviceUnavailable means the capture device could not be acquired
	// (denied, missing or busy). The manager reverts to Off and does not retry.
	ErrDeviceUnavailable = errors.New("camera: device unavailable")

	// ErrAlreadyActive is returned by Start when a session is starting or on.
	ErrAlreadyActive = errors.New("camera: already active")

	// ErrNotActive is returned by Stop when there is nothing to stop.
	ErrNotActive = errors.New("camera: not active")

	// ErrStartCancelled is returned by Start when Stop arrived while the
	// device was still being acquired.
	ErrStartCancelled = errors.New("camera: start cancelled by stop")

	// ErrStreamEnded is returned by Stream.Read once the source stopped playing.
	ErrStreamEnded = errors.New("camera: stream ended")
)

// DeviceError wraps a device failure. It matches ErrDeviceUnavailable.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("camera: device %q unavailable: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDeviceUnavailable) true.
func (e *DeviceError) Is(target error) bool {
	return target == ErrDeviceUnavailable
}

// Device acquires a live video stream.
type Device interface {
	Acquire(ctx context.Context, cfg Config) (Stream, error)
}

// Stream is an acquired video source.
type Stream interface {
	// Read returns the next frame. It blocks until one is available.
	Read(ctx context.Context) (perception.Frame, error)
	// Playing reports whether the source is still producing frames.
	Playing() bool
	// Size returns the native resolution of the source.
	Size() (width, height int)
	// Close releases every track of the stream.
	Close() error
}

// Session is the active camera session. At most one exists at a time.
type Session struct {
	ID         uuid.UUID
	Generation uint64
	Stream     Stream
}

// DeviceFunc adapts a function to Device.
type DeviceFunc func(ctx context.Context, cfg Config) (Stream, error)

// Acquire calls f.
func (f DeviceFunc) Acquire(ctx context.Context, cfg Config) (Stream, error) {
	return f(ctx, cfg)
}
