package ws

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server upgrades HTTP requests to websocket sessions. Connections start
// anonymous; a user identity is bound by the first userOnline event.
type Server struct {
	hub      *Hub
	service  lifecycle
	relay    callRelay
	logger   *slog.Logger
	upgrader *websocket.Upgrader
}

func NewServer(hub *Hub, service lifecycle, relay callRelay, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:     hub,
		service: service,
		relay:   relay,
		logger:  logger,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}
}

func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := NewConnection(s.hub, s.service, s.relay, conn, uuid.NewString(), s.logger)
	if err := c.Handle(r.Context()); err != nil {
		s.logger.Debug("connection closed", "error", err)
	}
}
