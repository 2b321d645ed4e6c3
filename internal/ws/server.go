package ws

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/break-tracker/internal/signals"
)

// Submitter accepts signals without waiting for them to be processed.
type Submitter interface {
	Submit(sig signals.Signal) error
}

// Server accepts break signals from page-side collaborators over a websocket
// and pushes transitions back to them.
type Server struct {
	ingest         Submitter
	broadcaster    *Broadcaster
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	logger         *zap.Logger
}

func NewServer(ingest Submitter, broadcaster *Broadcaster, allowedOrigins []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ingest:         ingest,
		broadcaster:    broadcaster,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		logger:         logger,
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/signal", s.handleSignal)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade", zap.Error(err))
		return
	}

	s.logger.Debug("ws client connected", zap.String("remote", r.RemoteAddr))
	c := s.broadcaster.AddClient(conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			s.logger.Debug("ws client disconnected", zap.String("remote", r.RemoteAddr))
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := s.ingestMessage(data, signals.OriginWS); err != nil {
				s.broadcaster.sendTo(c, WSMessage{Type: MsgError, Payload: ErrorPayload{Message: err.Error()}})
			}
		}
	}()
}

// handleSignal accepts a single signal message by POST, for collaborators
// that cannot hold a websocket open (e.g. an unloading page's sendBeacon).
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.checkOrigin(r) {
		http.Error(w, "forbidden origin", http.StatusForbidden)
		return
	}
	var buf json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&buf); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.ingestMessage(buf, signals.OriginWS); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var payload SnapshotPayload
	if s.broadcaster.snapshot != nil {
		payload = s.broadcaster.snapshot()
	}
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) ingestMessage(data []byte, origin string) error {
	var msg signals.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	sig, err := msg.Signal(origin)
	if err != nil {
		return err
	}
	if err := s.ingest.Submit(sig); err != nil {
		s.logger.Warn("submit signal", zap.Stringer("signal", sig), zap.Error(err))
		return err
	}
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}
