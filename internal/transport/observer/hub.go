package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pipeworks/internal/protocol"
	"pipeworks/internal/sim/model"
)

const (
	defaultRadius = 32
	maxRadius     = 256
	sessionQueue  = 1024
)

type Options struct {
	// LoopbackOnly rejects non-loopback peers.
	LoopbackOnly bool
	// OnSessions is called with the session count whenever it changes.
	OnSessions func(n int)
}

// Hub fans sync messages out to subscribed observer websockets.
type Hub struct {
	log  *zap.Logger
	opts Options

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	id  string
	out chan []byte

	mu     sync.Mutex
	center model.Vec3i
	radius int

	dropped atomic.Uint64
}

func (s *session) subscribe(sub protocol.SubscribeMsg) {
	s.mu.Lock()
	s.center = model.Vec3iFromArray(sub.Center)
	s.radius = sub.Radius
	s.mu.Unlock()
}

func (s *session) covers(pos model.Vec3i, radius int) bool {
	s.mu.Lock()
	d := model.Manhattan(s.center, pos)
	r := s.radius
	s.mu.Unlock()
	return d <= radius && d <= r
}

func NewHub(logger *zap.Logger, opts Options) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		log:  logger,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: map[string]*session{},
	}
}

func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Broadcast sends msg to every session subscribed within radius of pos. It
// never blocks: a session whose queue is full misses the message.
func (h *Hub) Broadcast(pos model.Vec3i, radius int, msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.log.Warn("marshal broadcast", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		if !s.covers(pos, radius) {
			continue
		}
		select {
		case s.out <- b:
		default:
			if s.dropped.Add(1) == 1 {
				h.log.Warn("observer queue full, dropping", zap.String("session", s.id))
			}
		}
	}
}

func (h *Hub) add(s *session) {
	h.mu.Lock()
	h.sessions[s.id] = s
	n := len(h.sessions)
	h.mu.Unlock()
	if h.opts.OnSessions != nil {
		h.opts.OnSessions(n)
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.sessions, id)
	n := len(h.sessions)
	h.mu.Unlock()
	if h.opts.OnSessions != nil {
		h.opts.OnSessions(n)
	}
}

func (h *Hub) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if h.opts.LoopbackOnly && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		s := &session{
			id:  fmt.Sprintf("O%d", h.nextID.Add(1)),
			out: make(chan []byte, sessionQueue),
		}
		s.subscribe(sub)
		h.add(s)
		defer h.remove(s.id)
		h.log.Info("observer joined",
			zap.String("session", s.id),
			zap.String("remote", r.RemoteAddr),
			zap.Ints("center", sub.Center[:]),
			zap.Int("radius", sub.Radius))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-s.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := decodeSubscribe(msg); ok {
				s.subscribe(sub)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		h.log.Info("observer left", zap.String("session", s.id), zap.Uint64("dropped", s.dropped.Load()))
	}
}

func decodeSubscribe(b []byte) (protocol.SubscribeMsg, bool) {
	var sub protocol.SubscribeMsg
	if err := json.Unmarshal(b, &sub); err != nil {
		return sub, false
	}
	if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
		return sub, false
	}
	normalizeSubscribe(&sub)
	return sub, true
}

func normalizeSubscribe(sub *protocol.SubscribeMsg) {
	if sub.Radius <= 0 {
		sub.Radius = defaultRadius
	}
	if sub.Radius > maxRadius {
		sub.Radius = maxRadius
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
