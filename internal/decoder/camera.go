package decoder

import (
	"context"
	"errors"
	"image"
)

// Facing is the preferred camera direction
type Facing string

const (
	// FacingEnvironment is the rear camera, pointed away from the user
	FacingEnvironment Facing = "environment"
	// FacingUser is the front camera
	FacingUser Facing = "user"
)

// Constraints are the media constraints requested when opening a camera
type Constraints struct {
	Facing Facing
}

var (
	// ErrPermissionDenied is returned when the camera cannot be accessed for lack of permission
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrStreamEnded is returned by Stream.Frame once the device stops producing frames
	ErrStreamEnded = errors.New("camera stream ended")
)

// Camera acquires a frame stream from a capture device
type Camera interface {
	// Open acquires the device and starts streaming
	Open(ctx context.Context, constraints Constraints) (Stream, error)
}

// Stream is a live sequence of frames from an opened camera
type Stream interface {
	// Frame returns the most recent frame
	Frame(ctx context.Context) (image.Image, error)
	// Close releases the device
	Close() error
}
