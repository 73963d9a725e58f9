package actuator

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"blister-inspector/internal/domain/entity"
)

// lineRecorder is a concurrency-safe io.Writer that remembers written lines.
type lineRecorder struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	fail  bool
	calls int
}

func (r *lineRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail {
		return 0, errors.New("device unplugged")
	}
	return r.buf.Write(p)
}

func (r *lineRecorder) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Split(strings.TrimSuffix(r.buf.String(), "\n"), "\n")
}

func (r *lineRecorder) last() string {
	l := r.lines()
	return l[len(l)-1]
}

func (r *lineRecorder) setFail(fail bool) {
	r.mu.Lock()
	r.fail = fail
	r.mu.Unlock()
}

func (r *lineRecorder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func startLink(t *testing.T, w *lineRecorder) *Link {
	t.Helper()
	l := NewLink(w, entity.DefaultCommandTokens(), time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func TestLink_SendsNothingBeforeFirstCommand(t *testing.T) {
	w := &lineRecorder{}
	startLink(t, w)
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, w.callCount())
}

func TestLink_LatestCommandWins(t *testing.T) {
	w := &lineRecorder{}
	l := startLink(t, w)

	l.SetCommand(entity.CommandHold)
	l.SetCommand(entity.CommandAdvance)
	l.SetCommand(entity.CommandReject)
	require.Equal(t, entity.CommandReject, l.Current())

	require.Eventually(t, func() bool {
		return w.callCount() > 0 && w.last() == "5"
	}, time.Second, time.Millisecond)

	// the command keeps being re-sent
	n := w.callCount()
	require.Eventually(t, func() bool { return w.callCount() > n+3 }, time.Second, time.Millisecond)
	for _, line := range w.lines() {
		require.Contains(t, []string{"2", "3", "5"}, line)
	}
}

func TestLink_SupersededCountsOnlyUnsentCommands(t *testing.T) {
	w := &lineRecorder{}
	l := NewLink(w, entity.DefaultCommandTokens(), time.Millisecond)

	// queued before the link runs, only the last one reaches the line
	l.SetCommand(entity.CommandHold)
	l.SetCommand(entity.CommandAdvance)
	l.SetCommand(entity.CommandReject)
	require.EqualValues(t, 2, l.Superseded())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool { return w.callCount() > 5 }, time.Second, time.Millisecond)
	require.Equal(t, "5", w.lines()[0])

	// re-sends of an already sent command are not superseded ones
	l.SetCommand(entity.CommandAccept)
	require.Eventually(t, func() bool { return w.last() == "4" }, time.Second, time.Millisecond)
	require.EqualValues(t, 2, l.Superseded())
}

func TestLink_SetCommandNeverBlocks(t *testing.T) {
	w := &lineRecorder{}
	l := startLink(t, w)

	var wg sync.WaitGroup
	done := make(chan struct{})
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				l.SetCommand(entity.CommandHold)
				l.SetCommand(entity.CommandAdvance)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("SetCommand blocked")
	}

	l.SetCommand(entity.CommandAccept)
	require.Eventually(t, func() bool { return w.callCount() > 0 && w.last() == "4" }, time.Second, time.Millisecond)
}

func TestLink_KeepsRunningAfterWriteFailures(t *testing.T) {
	w := &lineRecorder{fail: true}
	l := startLink(t, w)

	l.SetCommand(entity.CommandHold)
	require.Eventually(t, func() bool {
		_, failed := l.Stats()
		return failed >= 3
	}, time.Second, time.Millisecond)

	w.setFail(false)
	l.SetCommand(entity.CommandAdvance)
	require.Eventually(t, func() bool {
		sent, _ := l.Stats()
		return sent > 0 && w.last() == "3"
	}, time.Second, time.Millisecond)
}

func TestLink_UnknownTokenIsTransmitFailure(t *testing.T) {
	l := NewLink(&lineRecorder{}, entity.CommandTokens{}, time.Millisecond)
	err := l.send(entity.CommandHold)
	require.True(t, errors.Is(err, entity.ErrActuatorTransmit))
}

func TestLogWriter_ReportsChangesOnly(t *testing.T) {
	var logged []string
	w := &LogWriter{Logf: func(format string, args ...any) { logged = append(logged, format) }}
	for _, tok := range []string{"2\n", "2\n", "2\n", "3\n"} {
		n, err := w.Write([]byte(tok))
		require.NoError(t, err)
		require.Equal(t, len(tok), n)
	}
	require.Len(t, logged, 2)
}
