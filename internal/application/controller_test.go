package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/infrastructure/actuator"
)

type chanFrames chan *entity.Frame

func (c chanFrames) Next(ctx context.Context) (*entity.Frame, error) {
	select {
	case f, ok := <-c:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fixedParams struct{ p entity.DetectionParams }

func (f *fixedParams) Current() entity.DetectionParams { return f.p }

type scriptedDetector struct {
	result entity.DetectionResult
	calls  int
}

func (d *scriptedDetector) Detect(*entity.Frame, entity.DetectionParams) entity.DetectionResult {
	d.calls++
	return d.result
}

type fakeClassifier struct {
	verdict entity.Verdict
	err     error
	delay   time.Duration
	frames  []uint64
}

func (c *fakeClassifier) Classify(ctx context.Context, f *entity.Frame) (entity.Verdict, error) {
	c.frames = append(c.frames, f.Seq)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
		}
	}
	if c.err != nil {
		return entity.NoVerdict(), c.err
	}
	return c.verdict, nil
}

type recordingActuator struct{ cmds []entity.Command }

func (a *recordingActuator) SetCommand(cmd entity.Command) {
	if cmd != entity.CommandNone {
		a.cmds = append(a.cmds, cmd)
	}
}

func (a *recordingActuator) last() entity.Command {
	if len(a.cmds) == 0 {
		return entity.CommandNone
	}
	return a.cmds[len(a.cmds)-1]
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []entity.Inspection
}

func (n *recordingNotifier) Notify(i entity.Inspection) {
	n.mu.Lock()
	n.sent = append(n.sent, i)
	n.mu.Unlock()
}

// centered is a 5000 px² pack 10 px from the target.
func centered() entity.DetectionResult {
	return entity.DetectionResult{
		Present:  true,
		Area:     5000,
		Centroid: image.Pt(663, 240),
		Distance: 10,
		Centered: true,
	}
}

type harness struct {
	c          *Controller
	params     *fixedParams
	detector   *scriptedDetector
	classifier *fakeClassifier
	actuator   *recordingActuator
	notifier   *recordingNotifier

	clock time.Time
	seq   uint64
}

func newHarness(cls *fakeClassifier) *harness {
	h := &harness{
		params:     &fixedParams{p: entity.DefaultDetectionParams()},
		detector:   &scriptedDetector{result: centered()},
		classifier: cls,
		actuator:   &recordingActuator{},
		notifier:   &recordingNotifier{},
		clock:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	h.c = NewController(nil, h.params, h.detector, h.classifier, h.actuator, h.notifier, entity.DefaultTiming())
	h.c.now = func() time.Time { return h.clock }
	id := 0
	h.c.newID = func() string {
		id++
		return fmt.Sprintf("insp-%d", id)
	}
	return h
}

// tickAt advances the clock by d and feeds one frame.
func (h *harness) tickAt(d time.Duration) {
	h.clock = h.clock.Add(d)
	h.seq++
	h.c.tick(context.Background(), &entity.Frame{Seq: h.seq, Width: 1, Height: 1, Pix: []byte{0, 0, 0}})
}

func TestController_CenteredPackTriggers(t *testing.T) {
	h := newHarness(&fakeClassifier{})

	h.tickAt(0)

	st := h.c.Status()
	require.Equal(t, entity.StateTriggered, st.State)
	require.Equal(t, uint64(1), st.Triggers)
	require.Equal(t, uint64(1), st.Frames)
	require.True(t, st.Detection.Centered)
	require.Equal(t, entity.CommandHold, h.actuator.last())

	h.tickAt(time.Second)
	require.Equal(t, entity.CommandAdvance, h.actuator.last())
	require.Empty(t, h.classifier.frames, "no capture before the settle delay")
}

func TestController_IdleHoldsWithoutPack(t *testing.T) {
	h := newHarness(&fakeClassifier{})
	h.detector.result = entity.NotPresent()

	for i := 0; i < 5; i++ {
		h.tickAt(time.Second)
	}
	require.Equal(t, entity.StateIdle, h.c.Status().State)
	require.Equal(t, []entity.Command{
		entity.CommandHold, entity.CommandHold, entity.CommandHold, entity.CommandHold, entity.CommandHold,
	}, h.actuator.cmds)
}

func TestController_BadVerdictRejectsAndNotifies(t *testing.T) {
	h := newHarness(&fakeClassifier{verdict: entity.Verdict{Class: entity.VerdictBad, Confidence: 0.92}})

	h.tickAt(0)               // trigger
	h.tickAt(time.Second)     // settling
	h.tickAt(2 * time.Second) // settle elapsed, classify frame 3
	require.Equal(t, []uint64{3}, h.classifier.frames)
	require.Equal(t, entity.StateActuate, h.c.Status().State)
	require.Empty(t, h.notifier.sent)

	h.tickAt(10 * time.Millisecond)
	require.Equal(t, entity.CommandReject, h.actuator.last())
	require.Equal(t, entity.StateCooldown, h.c.Status().State)

	require.Len(t, h.notifier.sent, 1)
	i := h.notifier.sent[0]
	require.Equal(t, "insp-1", i.ID)
	require.Equal(t, uint64(3), i.Seq)
	require.Equal(t, entity.VerdictBad, i.Verdict.Class)
	require.InDelta(t, 0.92, i.Verdict.Confidence, 1e-9)
	require.Equal(t, entity.CommandReject, i.Command)
	require.False(t, i.Unavailable)
	require.NotNil(t, i.Frame)
	require.Equal(t, 3*time.Second+10*time.Millisecond, i.DecidedAt.Sub(i.TriggeredAt))

	st := h.c.Status()
	require.NotNil(t, st.Last)
	require.Equal(t, "insp-1", st.Last.ID)
	require.Nil(t, st.Last.Frame)

	// cooldown suppresses a new trigger for the same pack
	h.tickAt(500 * time.Millisecond)
	require.Equal(t, entity.StateCooldown, h.c.Status().State)
	h.tickAt(600 * time.Millisecond)
	require.Equal(t, entity.StateIdle, h.c.Status().State)
	require.Equal(t, uint64(1), h.c.Status().Cycles)
	require.Len(t, h.notifier.sent, 1)
}

func TestController_GoodVerdictAccepts(t *testing.T) {
	h := newHarness(&fakeClassifier{verdict: entity.Verdict{Class: entity.VerdictGood, Confidence: 1}})

	h.tickAt(0)
	h.tickAt(3 * time.Second)
	h.tickAt(time.Millisecond)

	require.Equal(t, entity.CommandAccept, h.actuator.last())
	require.Len(t, h.notifier.sent, 1)
	require.False(t, h.notifier.sent[0].Alert())
}

func TestController_ClassifierTimeoutRejects(t *testing.T) {
	timeout := 100 * time.Millisecond
	h := newHarness(&fakeClassifier{
		delay: timeout,
		err:   fmt.Errorf("%w: no reply within %s", entity.ErrClassificationUnavailable, timeout),
	})

	h.tickAt(0)
	start := time.Now()
	h.tickAt(3 * time.Second)
	require.Less(t, time.Since(start), timeout+500*time.Millisecond)

	h.tickAt(time.Millisecond)
	require.Equal(t, entity.CommandReject, h.actuator.last())

	require.Len(t, h.notifier.sent, 1)
	i := h.notifier.sent[0]
	require.True(t, i.Unavailable)
	require.Equal(t, entity.NoVerdict(), i.Verdict)
	require.Equal(t, uint64(1), h.c.Status().Unavailable)

	// the next cycle starts clean
	h.tickAt(time.Second)
	h.tickAt(time.Millisecond)
	h.classifier.err = nil
	h.classifier.delay = 0
	h.classifier.verdict = entity.Verdict{Class: entity.VerdictGood, Confidence: 1}
	h.tickAt(3 * time.Second)
	h.tickAt(time.Millisecond)
	require.Len(t, h.notifier.sent, 2)
	require.False(t, h.notifier.sent[1].Unavailable)
	require.Equal(t, entity.CommandAccept, h.actuator.last())
}

func TestController_InvalidParamsSkipTick(t *testing.T) {
	h := newHarness(&fakeClassifier{})
	h.params.p.BlurKernel = 4

	h.tickAt(0)
	h.tickAt(time.Second)

	st := h.c.Status()
	require.Equal(t, uint64(2), st.Skipped)
	require.Equal(t, uint64(0), st.Frames)
	require.Contains(t, st.ParamsError, "blur kernel")
	require.Equal(t, entity.StateIdle, st.State)
	require.Zero(t, h.detector.calls)
	require.Empty(t, h.actuator.cmds)

	h.params.p = entity.DefaultDetectionParams()
	h.tickAt(time.Second)
	st = h.c.Status()
	require.Empty(t, st.ParamsError)
	require.Equal(t, entity.StateTriggered, st.State)
}

func TestController_Run(t *testing.T) {
	frames := make(chanFrames, 3)
	h := newHarness(&fakeClassifier{})
	h.c.frames = frames
	h.detector.result = entity.NotPresent()

	for i := 1; i <= 3; i++ {
		frames <- &entity.Frame{Seq: uint64(i), Width: 1, Height: 1, Pix: []byte{0, 0, 0}}
	}
	close(frames)

	err := h.c.Run(context.Background())
	require.True(t, errors.Is(err, io.EOF))
	require.Equal(t, uint64(3), h.c.Status().Frames)
}

func TestController_RunStopsOnCancel(t *testing.T) {
	h := newHarness(&fakeClassifier{})
	h.c.frames = make(chanFrames)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.c.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

// serialLines collects tokens written to the actuator line.
type serialLines struct {
	mu    sync.Mutex
	lines []string
}

func (s *serialLines) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range strings.Split(strings.TrimSuffix(string(p), "\n"), "\n") {
		s.lines = append(s.lines, l)
	}
	return len(p), nil
}

func (s *serialLines) count(token string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		if l == token {
			n++
		}
	}
	return n
}

// slowClassifier counts Advance tokens written to the line while it blocks.
type slowClassifier struct {
	line    *serialLines
	delay   time.Duration
	verdict entity.Verdict

	advancesWhileBlocked int
}

func (c *slowClassifier) Classify(ctx context.Context, _ *entity.Frame) (entity.Verdict, error) {
	before := c.line.count("3")
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
		return entity.NoVerdict(), ctx.Err()
	}
	c.advancesWhileBlocked = c.line.count("3") - before
	return c.verdict, nil
}

func TestController_ActuatorKeepsAdvancingWhileClassifying(t *testing.T) {
	line := &serialLines{}
	link := actuator.NewLink(line, entity.DefaultCommandTokens(), time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		link.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	cls := &slowClassifier{
		line:    line,
		delay:   200 * time.Millisecond,
		verdict: entity.Verdict{Class: entity.VerdictBad, Confidence: 0.9},
	}
	h := newHarness(&fakeClassifier{})
	h.c.classifier = cls
	h.c.actuator = link

	h.tickAt(0)               // trigger
	h.tickAt(3 * time.Second) // settle elapsed, blocks in Classify
	require.Equal(t, entity.StateActuate, h.c.Status().State)
	require.GreaterOrEqual(t, cls.advancesWhileBlocked, 5, "advance must be re-sent during classification")
	require.Zero(t, line.count("5"), "reject goes out only on the next tick")

	h.tickAt(10 * time.Millisecond)
	require.Equal(t, entity.CommandReject, link.Current())
	require.Eventually(t, func() bool { return line.count("5") > 0 }, time.Second, time.Millisecond)
}
