// internal/web/server.go
package web

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/sseevri/substation-monitor/internal/poller"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server exposes the latest meter records over HTTP and pushes live
// updates to websocket subscribers.
type Server struct {
	log logrus.FieldLogger

	latestMu sync.RWMutex
	latest   map[byte]poller.OutputRecord

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]bool
}

func NewServer(log logrus.FieldLogger) *Server {
	return &Server{
		log:     log,
		latest:  make(map[byte]poller.OutputRecord),
		clients: make(map[*websocket.Conn]bool),
	}
}

// Update stores the record as the meter's latest value and broadcasts
// it to every connected websocket client. Clients that fail the write
// are dropped.
func (s *Server) Update(rec poller.OutputRecord) {
	s.latestMu.Lock()
	s.latest[rec.MeterID] = rec
	s.latestMu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		s.log.WithError(err).Error("web: marshal record")
		return
	}

	s.clientsMu.Lock()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
	s.clientsMu.Unlock()
}

// Latest returns the most recent record per meter, ordered by meter id.
func (s *Server) Latest() []poller.OutputRecord {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()

	recs := make([]poller.OutputRecord, 0, len(s.latest))
	for _, rec := range s.latest {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].MeterID < recs[j].MeterID })
	return recs
}

// Handler wires the API and websocket routes into a mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/latest", s.handleLatest)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// ListenAndServe blocks serving the configured routes.
func (s *Server) ListenAndServe(addr string) error {
	s.log.WithField("listen", addr).Info("web: serving")
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Latest()); err != nil {
		s.log.WithError(err).Error("web: write latest")
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("web: websocket upgrade")
		return
	}

	// Snapshot first so a new subscriber sees every meter immediately.
	for _, rec := range s.Latest() {
		if data, err := json.Marshal(rec); err == nil {
			conn.WriteMessage(websocket.TextMessage, data)
		}
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.clientsMu.Lock()
			delete(s.clients, conn)
			s.clientsMu.Unlock()
			conn.Close()
			return
		}
	}
}
