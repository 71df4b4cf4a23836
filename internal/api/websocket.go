package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsPingPeriod   = 45 * time.Second
	wsReadDeadline = 90 * time.Second
	wsWriteWait    = 10 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type watchlistMsg struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// handleWatchlistWS pushes the current list on connect and every change
// afterwards. Clients never send anything meaningful; reads only serve to
// notice disconnects and pongs.
func (s *Server) handleWatchlistWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("api: ws upgrade: %v", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.Watchlist.Subscribe()
	defer unsubscribe()
	initial := s.Watchlist.Symbols(r.Context())

	done := make(chan struct{})

	// writer
	go func() {
		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		send := func(symbols []string) bool {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			return conn.WriteJSON(watchlistMsg{Type: "watchlist", Symbols: symbols}) == nil
		}
		if !send(initial) {
			return
		}
		for {
			select {
			case symbols := <-updates:
				if !send(symbols) {
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// reader
	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
}
