package actuator

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
	"blister-inspector/internal/infrastructure/mailbox"
	"blister-inspector/internal/log"
)

// Link sends the latest actuator command over a byte stream at a fixed cadence.
type Link struct {
	w        io.Writer
	tokens   entity.CommandTokens
	interval time.Duration
	pending  *mailbox.Slot[entity.Command]

	sent     atomic.Uint64
	failures atomic.Uint64
}

// NewLink creates a link writing newline-terminated tokens to w.
func NewLink(w io.Writer, tokens entity.CommandTokens, interval time.Duration) *Link {
	return &Link{
		w:        w,
		tokens:   tokens,
		interval: interval,
		pending:  mailbox.New[entity.Command](),
	}
}

// SetCommand replaces the pending command. It never blocks.
func (l *Link) SetCommand(cmd entity.Command) {
	if cmd == entity.CommandNone {
		return
	}
	l.pending.Put(cmd)
}

// Current returns the latest command set, CommandNone before the first one.
func (l *Link) Current() entity.Command {
	cmd, _, ok := l.pending.Latest()
	if !ok {
		return entity.CommandNone
	}
	return cmd
}

// Run transmits the latest command every interval until ctx is done. The last
// command is re-sent when nothing new was set, so a dropped line heals itself.
func (l *Link) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	var (
		current entity.Command
		have    bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		fresh := false
		if cmd, ok := l.pending.Take(); ok {
			current, have, fresh = cmd, true, true
		}
		if !have {
			continue
		}
		if err := l.send(current); err != nil {
			if n := l.failures.Add(1); n == 1 || n%100 == 0 {
				log.Warn("actuator write failed", "command", current, "failures", n, "error", err)
			}
			continue
		}
		if fresh {
			// commands replaced before any tick picked them up
			log.Debug("actuator command sent", "command", current, "superseded", l.pending.Dropped())
		}
	}
}

// Superseded returns how many commands were replaced before being sent.
func (l *Link) Superseded() uint64 {
	return l.pending.Dropped()
}

func (l *Link) send(cmd entity.Command) error {
	token, ok := l.tokens[cmd]
	if !ok {
		return fmt.Errorf("%w: no token for command %s", entity.ErrActuatorTransmit, cmd)
	}
	if _, err := io.WriteString(l.w, token+"\n"); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrActuatorTransmit, err)
	}
	l.sent.Add(1)
	return nil
}

// Stats returns the number of successful and failed writes.
func (l *Link) Stats() (sent, failed uint64) {
	return l.sent.Load(), l.failures.Load()
}

var _ port.Actuator = (*Link)(nil)
