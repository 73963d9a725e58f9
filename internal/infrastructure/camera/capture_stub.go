//go:build !gocv
// +build !gocv

package camera

import "blister-inspector/internal/domain/entity"

// Capture is unavailable without the gocv build tag.
type Capture struct{}

// Open returns entity.ErrVisionUnavailable in builds without OpenCV.
func Open(device string) (*Capture, error) {
	_ = device
	return nil, entity.ErrVisionUnavailable
}

// Read always fails.
func (c *Capture) Read() (*entity.Frame, error) {
	return nil, ErrClosed
}

// Close does nothing.
func (c *Capture) Close() error {
	return nil
}
