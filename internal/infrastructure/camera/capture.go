//go:build gocv
// +build gocv

package camera

import (
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"blister-inspector/internal/domain/entity"
)

// Capture reads BGR frames from an OpenCV video device.
type Capture struct {
	mu     sync.Mutex
	dev    *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

// Open opens a camera by index ("0") or by path/URL.
func Open(device string) (*Capture, error) {
	var id interface{} = device
	if n, err := strconv.Atoi(device); err == nil {
		id = n
	}

	dev, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("open camera %s: %w", device, err)
	}
	if !dev.IsOpened() {
		dev.Close()
		return nil, fmt.Errorf("open camera %s: device not opened", device)
	}

	return &Capture{dev: dev, mat: gocv.NewMat()}, nil
}

// Read grabs the next frame and copies it out of OpenCV memory.
func (c *Capture) Read() (*entity.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if ok := c.dev.Read(&c.mat); !ok {
		return nil, ErrClosed
	}
	if c.mat.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	if c.mat.Channels() != 3 {
		return nil, fmt.Errorf("unexpected channel count %d", c.mat.Channels())
	}

	return &entity.Frame{
		Width:  c.mat.Cols(),
		Height: c.mat.Rows(),
		Pix:    c.mat.ToBytes(),
	}, nil
}

// Close releases the device.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.mat.Close()
	return c.dev.Close()
}
