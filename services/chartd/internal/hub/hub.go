// Package hub fans chart engine messages out to websocket viewers. Each
// chart id is a room; a room with at least one viewer is attached.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/render/stream"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/telemetry"
)

const (
	defaultWriteTimeout = 5 * time.Second
	sendBuffer          = 64
	maxReadBytes        = 4096
)

type Options struct {
	WriteTimeout time.Duration
	Logger       *telemetry.Logger
	Counters     *telemetry.Counters
	// OnAttach runs after a viewer joins a room, outside the hub lock.
	OnAttach func(ctx context.Context, id string)
}

type Hub struct {
	opt      Options
	log      *telemetry.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	rooms  map[string]map[*viewer]struct{}
	closed bool
}

type viewer struct {
	ws   *websocket.Conn
	send chan []byte
	once sync.Once
}

func (v *viewer) close() {
	v.once.Do(func() { close(v.send) })
}

var _ stream.Sink = (*Hub)(nil)

func New(opt Options) *Hub {
	if opt.WriteTimeout <= 0 {
		opt.WriteTimeout = defaultWriteTimeout
	}
	log := opt.Logger
	if log == nil {
		log = telemetry.Nop()
	}
	return &Hub{
		opt:   opt,
		log:   log,
		rooms: map[string]map[*viewer]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Send queues m for every viewer of m.Target. Viewers whose buffer is full
// are dropped.
func (h *Hub) Send(_ context.Context, m stream.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return cerr.Wrap(cerr.RenderFailed, err, "encode message: "+err.Error())
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.rooms[m.Target] {
		select {
		case v.send <- b:
			h.count("hub_messages_sent")
		default:
			h.count("hub_viewers_dropped")
			h.removeLocked(m.Target, v)
		}
	}
	return nil
}

func (h *Hub) Attached(target string) bool {
	return h.Viewers(target) > 0
}

func (h *Hub) Viewers(target string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[target])
}

// Serve upgrades the request and keeps the viewer in room id until the
// connection closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, id string) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	v := &viewer{ws: ws, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ws.Close()
		return cerr.New(cerr.RenderDetached, "hub is closed")
	}
	if h.rooms[id] == nil {
		h.rooms[id] = map[*viewer]struct{}{}
	}
	h.rooms[id][v] = struct{}{}
	n := len(h.rooms[id])
	h.mu.Unlock()

	ctx := r.Context()
	h.log.Info(ctx, "hub.viewer_attached", map[string]any{"chart_id": id, "viewers": n})

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(v)
	}()

	if h.opt.OnAttach != nil {
		h.opt.OnAttach(context.WithoutCancel(ctx), id)
	}

	h.readLoop(v)

	h.mu.Lock()
	h.removeLocked(id, v)
	h.mu.Unlock()
	<-done
	ws.Close()
	h.log.Info(ctx, "hub.viewer_detached", map[string]any{"chart_id": id})
	return nil
}

// readLoop discards inbound frames until the peer goes away.
func (h *Hub) readLoop(v *viewer) {
	v.ws.SetReadLimit(maxReadBytes)
	for {
		if _, _, err := v.ws.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(v *viewer) {
	for b := range v.send {
		_ = v.ws.SetWriteDeadline(time.Now().Add(h.opt.WriteTimeout))
		if err := v.ws.WriteMessage(websocket.TextMessage, b); err != nil {
			// unblock readLoop
			v.ws.Close()
			for range v.send {
			}
			return
		}
	}
	_ = v.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(h.opt.WriteTimeout))
	v.ws.Close()
}

func (h *Hub) removeLocked(id string, v *viewer) {
	room := h.rooms[id]
	if _, ok := room[v]; !ok {
		return
	}
	delete(room, v)
	if len(room) == 0 {
		delete(h.rooms, id)
	}
	v.close()
}

// Drop disconnects every viewer of id.
func (h *Hub) Drop(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.rooms[id] {
		h.removeLocked(id, v)
	}
}

// Close disconnects all viewers and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, room := range h.rooms {
		for v := range room {
			h.removeLocked(id, v)
		}
	}
}

func (h *Hub) count(name string) {
	if h.opt.Counters != nil {
		h.opt.Counters.Inc(name, nil)
	}
}
