package entity

import "time"

// ProcessState is the state of the inspection cycle
type ProcessState string

const (
	StateIdle      ProcessState = "idle"      // waiting for a centered pack
	StateTriggered ProcessState = "triggered" // pack centered, settling before capture
	StateActuate   ProcessState = "actuate"   // verdict known, command pending
	StateCooldown  ProcessState = "cooldown"  // trigger suppressed for the same pack
)

// Timing holds the wall-clock delays of the cycle.
type Timing struct {
	Settle   time.Duration // wait after trigger before capture
	Cooldown time.Duration // wait after actuation before re-arming
}

// DefaultTiming returns the delays used on the line.
func DefaultTiming() Timing {
	return Timing{Settle: 3 * time.Second, Cooldown: time.Second}
}

// Effect is a side effect the owner of the Process has to perform.
type Effect int

const (
	EffectNone     Effect = iota
	EffectClassify        // capture the current frame and classify it
	EffectNotify          // publish the finished inspection
)

// Event drives the state machine.
type Event interface {
	event()
}

// TickEvent is fed once per camera frame.
type TickEvent struct {
	Now       time.Time
	Detection DetectionResult
}

// VerdictEvent delivers the classifier answer for the pending capture.
type VerdictEvent struct {
	Verdict Verdict
}

func (TickEvent) event()    {}
func (VerdictEvent) event() {}

// Output is what one Step asks for.
type Output struct {
	Command Command // CommandNone leaves the actuator unchanged
	Effect  Effect
}

// Process is the inspection cycle. Step never mutates the receiver.
type Process struct {
	State       ProcessState
	TriggeredAt time.Time
	CooldownAt  time.Time
	Capturing   bool     // classification requested, verdict pending
	Verdict     *Verdict // verdict of the current cycle
	Cycles      uint64   // completed returns to idle
}

// NewProcess returns a process in the initial state.
func NewProcess() Process {
	return Process{State: StateIdle}
}

// Step applies one event and returns the next process value.
func (p Process) Step(ev Event, timing Timing) (Process, Output) {
	switch e := ev.(type) {
	case TickEvent:
		return p.tick(e, timing)
	case VerdictEvent:
		return p.verdict(e)
	default:
		return p, Output{}
	}
}

func (p Process) tick(e TickEvent, timing Timing) (Process, Output) {
	switch p.State {
	case StateIdle:
		if e.Detection.Centered {
			p.State = StateTriggered
			p.TriggeredAt = e.Now
			p.Capturing = false
			p.Verdict = nil
		}
		return p, Output{Command: CommandHold}

	case StateTriggered:
		out := Output{Command: CommandAdvance}
		if !p.Capturing && e.Now.Sub(p.TriggeredAt) >= timing.Settle {
			p.Capturing = true
			out.Effect = EffectClassify
		}
		return p, out

	case StateActuate:
		v := NoVerdict()
		if p.Verdict != nil {
			v = *p.Verdict
		}
		p.State = StateCooldown
		p.CooldownAt = e.Now
		return p, Output{Command: CommandFor(v), Effect: EffectNotify}

	case StateCooldown:
		if e.Now.Sub(p.CooldownAt) >= timing.Cooldown {
			p.State = StateIdle
			p.Verdict = nil
			p.Cycles++
		}
		return p, Output{}
	}

	return p, Output{}
}

func (p Process) verdict(e VerdictEvent) (Process, Output) {
	if p.State != StateTriggered || !p.Capturing {
		return p, Output{}
	}
	v := e.Verdict
	p.State = StateActuate
	p.Capturing = false
	p.Verdict = &v
	return p, Output{}
}
