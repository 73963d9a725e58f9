package camera

import "errors"

// ErrClosed is returned after the device is gone.
var ErrClosed = errors.New("camera closed")
