package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
	"blister-inspector/internal/log"
)

// Status is a snapshot of the controller for the dashboard and the bot.
type Status struct {
	State       entity.ProcessState    `json:"state"`
	Cycles      uint64                 `json:"cycles"`
	Frames      uint64                 `json:"frames"`
	Skipped     uint64                 `json:"skipped"`
	Triggers    uint64                 `json:"triggers"`
	Unavailable uint64                 `json:"unavailable"`
	Detection   entity.DetectionResult `json:"detection"`
	ParamsError string                 `json:"params_error,omitempty"`
	Last        *entity.Inspection     `json:"last,omitempty"`
	Params      entity.DetectionParams `json:"params"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Controller runs the inspection cycle: detect, trigger, classify, actuate.
// Run owns the process; Status may be called from any goroutine.
type Controller struct {
	frames     port.FrameSource
	params     port.ParamSource
	detector   port.AlignmentDetector
	classifier port.Classifier
	actuator   port.Actuator
	notifier   port.Notifier
	timing     entity.Timing

	now   func() time.Time
	newID func() string

	process     entity.Process
	captured    *entity.Frame
	detection   entity.DetectionResult // at capture time
	unavailable bool
	paramsErr   string

	mu     sync.Mutex
	status Status
}

// NewController wires the cycle to its collaborators.
func NewController(
	frames port.FrameSource,
	params port.ParamSource,
	detector port.AlignmentDetector,
	classifier port.Classifier,
	actuator port.Actuator,
	notifier port.Notifier,
	timing entity.Timing,
) *Controller {
	p := entity.NewProcess()
	return &Controller{
		frames:     frames,
		params:     params,
		detector:   detector,
		classifier: classifier,
		actuator:   actuator,
		notifier:   notifier,
		timing:     timing,
		now:        time.Now,
		newID:      uuid.NewString,
		process:    p,
		status:     Status{State: p.State},
	}
}

// Run ticks once per frame until ctx is done or the frame source fails.
func (c *Controller) Run(ctx context.Context) error {
	log.Info("controller started", "settle", c.timing.Settle, "cooldown", c.timing.Cooldown)
	defer func() { log.Info("controller stopped", "cycles", c.process.Cycles) }()

	for {
		frame, err := c.frames.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("next frame: %w", err)
		}
		c.tick(ctx, frame)
	}
}

// Status returns the latest snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.status
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	return s
}

func (c *Controller) tick(ctx context.Context, frame *entity.Frame) {
	params := c.params.Current()
	if err := params.Validate(); err != nil {
		c.skip(err)
		return
	}
	if c.paramsErr != "" {
		log.Info("detection parameters valid again")
		c.paramsErr = ""
	}

	det := c.detector.Detect(frame, params)
	now := c.now()

	prev := c.process
	next, out := prev.Step(entity.TickEvent{Now: now, Detection: det}, c.timing)
	c.process = next
	c.actuator.SetCommand(out.Command)

	if prev.State == entity.StateIdle && next.State == entity.StateTriggered {
		log.Info("pack centered, cycle triggered",
			"seq", frame.Seq, "distance", det.Distance, "area", det.Area)
		c.update(func(s *Status) { s.Triggers++ })
	}

	var inspection *entity.Inspection
	switch out.Effect {
	case entity.EffectClassify:
		c.classify(ctx, frame, det)
	case entity.EffectNotify:
		i := c.inspection(out.Command, now)
		inspection = &i
		c.notifier.Notify(i)
	}

	c.update(func(s *Status) {
		s.State = c.process.State
		s.Cycles = c.process.Cycles
		s.Frames++
		s.Detection = det
		s.ParamsError = ""
		s.Params = params
		s.UpdatedAt = now
		if inspection != nil {
			last := *inspection
			last.Frame = nil
			s.Last = &last
		}
	})
}

// classify blocks the loop for at most the classifier timeout. The actuator
// keeps re-sending Advance meanwhile.
func (c *Controller) classify(ctx context.Context, frame *entity.Frame, det entity.DetectionResult) {
	c.captured = frame
	c.detection = det

	start := time.Now()
	v, err := c.classifier.Classify(ctx, frame)
	c.unavailable = err != nil
	if err != nil {
		v = entity.NoVerdict()
		log.Warn("classification unavailable", "seq", frame.Seq, "error", err)
		c.update(func(s *Status) { s.Unavailable++ })
	} else {
		log.Info("verdict received",
			"seq", frame.Seq, "verdict", v.Class, "confidence", v.Confidence, "elapsed", time.Since(start))
	}

	c.process, _ = c.process.Step(entity.VerdictEvent{Verdict: v}, c.timing)
}

func (c *Controller) inspection(cmd entity.Command, now time.Time) entity.Inspection {
	v := entity.NoVerdict()
	if c.process.Verdict != nil {
		v = *c.process.Verdict
	}
	i := entity.Inspection{
		ID:          c.newID(),
		Verdict:     v,
		Command:     cmd,
		Unavailable: c.unavailable,
		Detection:   c.detection,
		Frame:       c.captured,
		TriggeredAt: c.process.TriggeredAt,
		DecidedAt:   now,
	}
	if c.captured != nil {
		i.Seq = c.captured.Seq
	}
	log.Info("pack actuated", "id", i.ID, "verdict", v.Class, "command", cmd, "unavailable", i.Unavailable)

	c.captured = nil
	c.unavailable = false
	return i
}

// skip leaves the process and the actuator untouched for this tick.
func (c *Controller) skip(err error) {
	msg := err.Error()
	if msg != c.paramsErr {
		log.Error("invalid detection parameters, skipping ticks", "error", err)
		c.paramsErr = msg
	}
	c.update(func(s *Status) {
		s.Skipped++
		s.ParamsError = msg
	})
}

func (c *Controller) update(fn func(*Status)) {
	c.mu.Lock()
	fn(&c.status)
	c.mu.Unlock()
}
