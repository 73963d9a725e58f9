package camera

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
	"blister-inspector/internal/infrastructure/mailbox"
	"blister-inspector/internal/log"
)

// Reader reads one frame from a device, blocking until it is available.
type Reader interface {
	Read() (*entity.Frame, error)
}

// Grabber drains a Reader on its own goroutine and keeps only the newest
// frame, so a slow control tick never works on a stale buffered image.
type Grabber struct {
	reader Reader
	latest *mailbox.Slot[*entity.Frame]
	seq    atomic.Uint64
	err    atomic.Pointer[error]
}

// NewGrabber wraps a device reader.
func NewGrabber(reader Reader) *Grabber {
	return &Grabber{
		reader: reader,
		latest: mailbox.New[*entity.Frame](),
	}
}

// Run reads frames until ctx is done or the reader fails permanently.
func (g *Grabber) Run(ctx context.Context) {
	defer g.latest.Close()

	failures := 0
	for ctx.Err() == nil {
		frame, err := g.reader.Read()
		if err != nil {
			failures++
			if failures == 1 || failures%30 == 0 {
				log.Warn("camera read failed", "failures", failures, "error", err)
			}
			if errors.Is(err, ErrClosed) {
				g.err.Store(&err)
				return
			}
			select {
			case <-ctx.Done():
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}
		failures = 0

		frame.Seq = g.seq.Add(1)
		if frame.CapturedAt.IsZero() {
			frame.CapturedAt = time.Now()
		}
		g.latest.Put(frame)
	}
}

// Next returns the newest frame not yet handed out.
func (g *Grabber) Next(ctx context.Context) (*entity.Frame, error) {
	frame, ok := g.latest.Wait()
	if !ok {
		if errp := g.err.Load(); errp != nil {
			return nil, *errp
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrClosed
	}
	return frame, nil
}

// Dropped returns how many frames were skipped because the consumer was busy.
func (g *Grabber) Dropped() uint64 {
	return g.latest.Dropped()
}

var _ port.FrameSource = (*Grabber)(nil)
