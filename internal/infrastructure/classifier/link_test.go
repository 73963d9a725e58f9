package classifier

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/infrastructure/imaging"
)

// remoteClassifier plays the scorer side of the protocol.
type remoteClassifier struct {
	conn     *websocket.Conn
	requests chan string
}

func dialClassifier(t *testing.T, srv *httptest.Server, reply func(req string) (string, bool)) *remoteClassifier {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	rc := &remoteClassifier{conn: conn, requests: make(chan string, 16)}
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				close(rc.requests)
				return
			}
			rc.requests <- string(msg)
			if answer, ok := reply(string(msg)); ok {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(answer)); err != nil {
					return
				}
			}
		}
	}()
	t.Cleanup(func() { conn.Close() })
	return rc
}

func newLink(t *testing.T, timeout time.Duration) (*Link, *httptest.Server) {
	t.Helper()
	l := NewLink(imaging.NewEncoder(224, 80), timeout)
	srv := httptest.NewServer(l)
	t.Cleanup(func() {
		l.Close()
		srv.Close()
	})
	return l, srv
}

func testFrame() *entity.Frame {
	return &entity.Frame{Seq: 7, Width: 32, Height: 24, Pix: make([]byte, 32*24*3)}
}

func TestLink_NoPeer(t *testing.T) {
	l, _ := newLink(t, time.Second)

	v, err := l.Classify(context.Background(), testFrame())
	require.Equal(t, entity.NoVerdict(), v)
	require.True(t, errors.Is(err, entity.ErrClassificationUnavailable))
	require.True(t, errors.Is(err, entity.ErrNoPeer))
}

func TestLink_BadVerdictWithConfidence(t *testing.T) {
	l, srv := newLink(t, 2*time.Second)
	rc := dialClassifier(t, srv, func(string) (string, bool) { return "1 0.92", true })
	require.Eventually(t, l.Connected, time.Second, 5*time.Millisecond)

	v, err := l.Classify(context.Background(), testFrame())
	require.NoError(t, err)
	require.Equal(t, entity.VerdictBad, v.Class)
	require.InDelta(t, 0.92, v.Confidence, 1e-9)

	// the request is a base64 224x224 JPEG
	req := <-rc.requests
	img, err := imaging.Decode(req)
	require.NoError(t, err)
	require.Equal(t, 224, img.Bounds().Dx())
	require.Equal(t, 224, img.Bounds().Dy())
}

func TestLink_StrictRequestResponsePairing(t *testing.T) {
	l, srv := newLink(t, 2*time.Second)
	answers := []string{"0", "2", "1 0.5"}
	i := 0
	dialClassifier(t, srv, func(string) (string, bool) {
		a := answers[i%len(answers)]
		i++
		return a, true
	})
	require.Eventually(t, l.Connected, time.Second, 5*time.Millisecond)

	want := []entity.Verdict{
		{Class: entity.VerdictGood, Confidence: 1},
		{Class: entity.VerdictNone, Confidence: 1},
		{Class: entity.VerdictBad, Confidence: 0.5},
	}
	for _, w := range want {
		v, err := l.Classify(context.Background(), testFrame())
		require.NoError(t, err)
		require.Equal(t, w, v)
	}
}

func TestLink_TimeoutYieldsNoneAndDropsPeer(t *testing.T) {
	timeout := 150 * time.Millisecond
	l, srv := newLink(t, timeout)
	dialClassifier(t, srv, func(string) (string, bool) { return "", false })
	require.Eventually(t, l.Connected, time.Second, 5*time.Millisecond)

	start := time.Now()
	v, err := l.Classify(context.Background(), testFrame())
	elapsed := time.Since(start)

	require.Equal(t, entity.NoVerdict(), v)
	require.True(t, errors.Is(err, entity.ErrClassificationUnavailable))
	require.GreaterOrEqual(t, elapsed, timeout-10*time.Millisecond)
	require.Less(t, elapsed, timeout+500*time.Millisecond)
	require.False(t, l.Connected(), "a timed out peer must reconnect before the next trigger")
}

func TestLink_MalformedReply(t *testing.T) {
	l, srv := newLink(t, time.Second)
	dialClassifier(t, srv, func(string) (string, bool) { return "bueno", true })
	require.Eventually(t, l.Connected, time.Second, 5*time.Millisecond)

	v, err := l.Classify(context.Background(), testFrame())
	require.Equal(t, entity.NoVerdict(), v)
	require.True(t, errors.Is(err, entity.ErrClassificationUnavailable))
}

func TestLink_NewPeerReplacesOld(t *testing.T) {
	l, srv := newLink(t, time.Second)
	first := dialClassifier(t, srv, func(string) (string, bool) { return "1", true })
	require.Eventually(t, l.Connected, time.Second, 5*time.Millisecond)

	dialClassifier(t, srv, func(string) (string, bool) { return "0", true })

	// the first connection is closed by the link
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-first.requests:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, l.Connected, time.Second, 5*time.Millisecond)
	v, err := l.Classify(context.Background(), testFrame())
	require.NoError(t, err)
	require.Equal(t, entity.VerdictGood, v.Class)
}

func TestLink_ContextCancel(t *testing.T) {
	l, srv := newLink(t, 5*time.Second)
	dialClassifier(t, srv, func(string) (string, bool) { return "", false })
	require.Eventually(t, l.Connected, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	v, err := l.Classify(ctx, testFrame())
	require.Equal(t, entity.NoVerdict(), v)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.True(t, errors.Is(err, entity.ErrClassificationUnavailable))
}

func TestLink_NaNConfidenceIsUnavailable(t *testing.T) {
	l, srv := newLink(t, time.Second)
	dialClassifier(t, srv, func(string) (string, bool) { return "1 NaN", true })
	require.Eventually(t, l.Connected, time.Second, 5*time.Millisecond)

	v, err := l.Classify(context.Background(), testFrame())
	require.Equal(t, entity.NoVerdict(), v)
	require.True(t, errors.Is(err, entity.ErrClassificationUnavailable))
}
