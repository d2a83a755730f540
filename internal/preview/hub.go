// Package preview streams the frames sent to the strip to browser clients
// over a websocket, so an animation can be watched without hardware.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/neospi/internal/led"
)

const writeWait = 200 * time.Millisecond

type frame struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	RGB     []byte `json:"rgb"`
}

type hello struct {
	LEDs   int    `json:"leds"`
	Driver string `json:"driver"`
}

// client serializes the writes to one connection.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub fans the latest frame out to every connected client. Frames that
// arrive faster than they can be broadcast are dropped, never queued.
type Hub struct {
	leds      int
	driver    string
	startTime time.Time
	frameID   atomic.Uint64

	mu      sync.Mutex
	clients map[*websocket.Conn]*client

	latest   chan frame
	upgrader websocket.Upgrader
}

func NewHub(leds int, driver string) *Hub {
	return &Hub{
		leds:      leds,
		driver:    driver,
		startTime: time.Now(),
		clients:   map[*websocket.Conn]*client{},
		latest:    make(chan frame, 1),
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Publish hands a frame to the broadcaster. It takes no lock and never
// waits on a client, so it is safe to call from the strip's refresh hook.
func (h *Hub) Publish(frameID uint64, pixels []led.Pixel) {
	rgb := make([]byte, 0, len(pixels)*3)
	for _, p := range pixels {
		c := p.NRGBA()
		rgb = append(rgb, c.R, c.G, c.B)
	}
	h.frameID.Store(frameID)
	f := frame{T: time.Now().UnixNano(), FrameID: frameID, RGB: rgb}

	// drop the stale frame, if any, so the newest always fits
	select {
	case <-h.latest:
	default:
	}
	select {
	case h.latest <- f:
	default:
	}
}

// Clients is the number of connected preview clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler serves /ws and /health.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleFramesWS)
	mux.HandleFunc("/health", h.HandleHealth)
	return mux
}

func (h *Hub) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()

	b, _ := json.Marshal(hello{LEDs: h.leds, Driver: h.driver})
	if err := c.write(b); err != nil {
		h.drop(conn)
		return
	}

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"frame_id": h.frameID.Load(),
		"uptime_s": time.Since(h.startTime).Seconds(),
		"leds":     h.leds,
		"driver":   h.driver,
		"clients":  h.Clients(),
	})
}

// Run broadcasts published frames until ctx is done, then disconnects
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return
		case f := <-h.latest:
			h.broadcast(f)
		}
	}
}

func (h *Hub) broadcast(f frame) {
	b, err := json.Marshal(f)
	if err != nil {
		log.Debug().Err(err).Msg("encode frame")
		return
	}
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(b); err != nil {
			log.Debug().Err(err).Msg("write frame; dropping client")
			h.drop(c.conn)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// Serve runs the hub and an HTTP server on addr until ctx is done.
func Serve(ctx context.Context, addr string, h *Hub) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      withCORS(h.Handler()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go h.Run(ctx)
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Info().Str("addr", addr).Msg("preview server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
