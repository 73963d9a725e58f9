package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
	"blister-inspector/internal/infrastructure/imaging"
	"blister-inspector/internal/log"
)

const (
	// writeWait bounds control frame writes
	writeWait = 5 * time.Second

	// pongWait is how long a silent peer is kept
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxReplySize is generous for a "<index> <confidence>" token
	maxReplySize = 512
)

// Link is the controller end of the classifier connection. The classifier
// dials in; a newer connection replaces the older one.
type Link struct {
	encoder  *imaging.Encoder
	timeout  time.Duration
	upgrader websocket.Upgrader

	reqMu sync.Mutex // one outstanding request

	mu   sync.Mutex
	peer *peer
}

// peer is one classifier connection.
type peer struct {
	conn      *websocket.Conn
	remote    string
	replies   chan string // single-item reply slot
	done      chan struct{}
	closeOnce sync.Once
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

// NewLink creates a link that waits at most timeout for each verdict.
func NewLink(encoder *imaging.Encoder, timeout time.Duration) *Link {
	return &Link{
		encoder: encoder,
		timeout: timeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the classifier connection and reads its replies until it drops.
func (l *Link) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("classifier upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	p := &peer{
		conn:    conn,
		remote:  r.RemoteAddr,
		replies: make(chan string, 1),
		done:    make(chan struct{}),
	}

	l.mu.Lock()
	old := l.peer
	l.peer = p
	l.mu.Unlock()
	if old != nil {
		log.Info("classifier replaced", "old", old.remote, "new", p.remote)
		old.close()
	}
	log.Info("classifier connected", "remote", p.remote)

	go l.pingLoop(p)
	l.readPump(p)
}

// readPump is the only reader of the connection.
func (l *Link) readPump(p *peer) {
	defer func() {
		l.drop(p, "disconnected")
	}()

	p.conn.SetReadLimit(maxReplySize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("classifier read failed", "remote", p.remote, "error", err)
			}
			return
		}
		p.conn.SetReadDeadline(time.Now().Add(pongWait))

		select {
		case p.replies <- string(msg):
		default:
			log.Warn("unsolicited classifier reply dropped", "remote", p.remote, "reply", string(msg))
		}
	}
}

func (l *Link) pingLoop(p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				l.drop(p, "ping failed")
				return
			}
		}
	}
}

// drop closes p and forgets it if it is still the active peer.
func (l *Link) drop(p *peer, reason string) {
	l.mu.Lock()
	if l.peer == p {
		l.peer = nil
	}
	l.mu.Unlock()

	select {
	case <-p.done:
		return
	default:
	}
	log.Info("classifier connection closed", "remote", p.remote, "reason", reason)
	p.close()
}

func (l *Link) current() *peer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peer
}

// Connected reports whether a classifier is attached.
func (l *Link) Connected() bool {
	return l.current() != nil
}

// Classify sends the frame and blocks until the verdict, a timeout or a
// connection failure. The connection is dropped on timeout so a late reply
// can never be taken for the answer to the next request.
func (l *Link) Classify(ctx context.Context, frame *entity.Frame) (entity.Verdict, error) {
	l.reqMu.Lock()
	defer l.reqMu.Unlock()

	p := l.current()
	if p == nil {
		return entity.NoVerdict(), unavailable(entity.ErrNoPeer)
	}

	payload, err := l.encoder.Base64(frame)
	if err != nil {
		return entity.NoVerdict(), unavailable(err)
	}

	// a reply nobody asked for must not answer this request
	select {
	case stale := <-p.replies:
		log.Warn("stale classifier reply discarded", "reply", stale)
	default:
	}

	deadline := time.Now().Add(l.timeout)
	p.conn.SetWriteDeadline(deadline)
	if err := p.conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		l.drop(p, "write failed")
		return entity.NoVerdict(), unavailable(fmt.Errorf("send frame: %w", err))
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case reply := <-p.replies:
		v, err := entity.ParseVerdict(reply)
		if err != nil {
			l.drop(p, "protocol error")
			return entity.NoVerdict(), unavailable(err)
		}
		return v, nil

	case <-p.done:
		return entity.NoVerdict(), unavailable(errors.New("connection closed while waiting"))

	case <-timer.C:
		l.drop(p, "timeout")
		return entity.NoVerdict(), unavailable(fmt.Errorf("no reply within %s", l.timeout))

	case <-ctx.Done():
		l.drop(p, "cancelled")
		return entity.NoVerdict(), unavailable(ctx.Err())
	}
}

// Close drops the current classifier connection.
func (l *Link) Close() {
	if p := l.current(); p != nil {
		l.drop(p, "shutdown")
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", entity.ErrClassificationUnavailable, err)
}

var _ port.Classifier = (*Link)(nil)
