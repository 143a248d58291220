package extchannel

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ClientStatus is the public state of one client slot
type ClientStatus struct {
	Slot     int    `json:"slot"`
	Name     string `json:"name"`
	Addr     string `json:"addr"`
	Admin    bool   `json:"admin"`
	Synced   bool   `json:"synced"`
	Packets  int    `json:"packets"`
	Messages int    `json:"messages"`
	BadSyncs int    `json:"bad_syncs"`
}

// A Status is a snapshot of the session, taken once per second
type Status struct {
	Uptime   float64        `json:"uptime"`
	Level    string         `json:"level"`
	Tick     float64        `json:"tick"`
	Sequence uint32         `json:"sequence"`
	Paused   bool           `json:"paused"`
	Entities int            `json:"entities"`
	Clients  []ClientStatus `json:"clients"`
}

type statusBoard struct {
	mu     sync.RWMutex
	status Status
	srv    *http.Server
}

func (b *statusBoard) set(st Status) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status = st
}

func (b *statusBoard) get() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.status
}

func (b *statusBoard) close() {
	b.mu.Lock()
	srv := b.srv
	b.srv = nil
	b.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// updateStatus runs on the tick loop, the feed only reads the copy
func (s *Server) updateStatus() {
	st := Status{
		Uptime:   Uptime(),
		Level:    s.world.Level(),
		Tick:     s.world.Time(),
		Sequence: s.seq,
		Paused:   s.paused,
		Entities: s.world.Count(),
	}

	for _, c := range s.l.Conns() {
		slot := &s.slots[c.Slot()]
		st.Clients = append(st.Clients, ClientStatus{
			Slot:     c.Slot(),
			Name:     c.Name(),
			Addr:     c.Addr().String(),
			Admin:    c.IsAdmin(),
			Synced:   slot.synced,
			Packets:  slot.flood.Packets,
			Messages: slot.flood.Messages,
			BadSyncs: slot.sync.BadSyncs,
		})
	}

	s.status.set(st)
}

// Status returns the latest snapshot
func (s *Server) Status() Status { return s.status.get() }

// StatusHandler streams the snapshot as JSON over a websocket
// every second until the peer goes away
func (s *Server) StatusHandler() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// The feed is read only, reading just notices the close
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		t := time.NewTicker(time.Second)
		defer t.Stop()

		for {
			b, err := json.Marshal(s.Status())
			if err != nil {
				log.Print(err)
				return
			}

			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-s.done:
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				return
			case <-t.C:
			}
		}
	}
}

// ServeStatus serves the status feed at /status on addr
// until the Server is closed
func (s *Server) ServeStatus(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/status", s.StatusHandler())

	srv := &http.Server{Addr: addr, Handler: mux}

	s.status.mu.Lock()
	s.status.srv = srv
	s.status.mu.Unlock()

	log.Print("Status feed listening on " + addr)

	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
