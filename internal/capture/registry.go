package capture

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"debatecoach/agent/internal/types"

	ws "nhooyr.io/websocket"
)

const outboxSize = 32

type peer struct {
	conn *ws.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (p *peer) stop() { p.once.Do(func() { close(p.done) }) }

func (p *peer) writeLoop() {
	for {
		select {
		case <-p.done:
			return
		case b := <-p.out:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := p.conn.Write(ctx, ws.MessageText, b)
			cancel()
			if err != nil {
				p.stop()
				return
			}
		}
	}
}

// Registry keeps at most one capture connection per session. It is also an
// orchestrator.Sink: session events are queued to the live connection.
type Registry struct {
	mu    sync.Mutex
	peers map[string]*peer
}

func NewRegistry() *Registry { return &Registry{peers: make(map[string]*peer)} }

// Replace sets the connection for a session and closes the previous one if present.
func (r *Registry) Replace(sessionID string, c *ws.Conn) (prevClosed bool) {
	p := &peer{conn: c, out: make(chan []byte, outboxSize), done: make(chan struct{})}
	r.mu.Lock()
	old := r.peers[sessionID]
	r.peers[sessionID] = p
	r.mu.Unlock()
	go p.writeLoop()
	if old != nil {
		old.stop()
		_ = old.conn.Close(ws.StatusNormalClosure, "replaced")
		return true
	}
	gaugeConnections.Inc()
	return false
}

func (r *Registry) Get(sessionID string) *ws.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.peers[sessionID]; p != nil {
		return p.conn
	}
	return nil
}

// Remove forgets c if it is still the session's connection. A connection
// that was already replaced leaves its successor alone.
func (r *Registry) Remove(sessionID string, c *ws.Conn) bool {
	r.mu.Lock()
	p := r.peers[sessionID]
	if p == nil || p.conn != c {
		r.mu.Unlock()
		return false
	}
	delete(r.peers, sessionID)
	r.mu.Unlock()
	p.stop()
	gaugeConnections.Dec()
	return true
}

// SendJSON writes v to the session's connection, if any.
func (r *Registry) SendJSON(ctx context.Context, sessionID string, v any) error {
	c := r.Get(sessionID)
	if c == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Write(ctx, ws.MessageText, b)
}

// Publish queues a session event for the capture client. It never blocks;
// events for a slow client are dropped.
func (r *Registry) Publish(sessionID string, ev types.Event) {
	r.mu.Lock()
	p := r.peers[sessionID]
	r.mu.Unlock()
	if p == nil {
		return
	}
	b, err := json.Marshal(Outbound{Type: "event", Event: &ev})
	if err != nil {
		return
	}
	select {
	case p.out <- b:
	case <-p.done:
	default:
		metricEventsDropped.Inc()
	}
}
