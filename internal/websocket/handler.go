package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"paydash/internal/infrastructure"
)

// Handler upgrades HTTP requests and attaches the connection to a hub.
type Handler struct {
	hub            *Hub
	allowedOrigins []string
	upgrader       websocket.Upgrader
	logger         *slog.Logger
}

// NewHandler creates an upgrade handler. Requests without an Origin header and
// same-host origins are always accepted; other origins must be listed.
func NewHandler(hub *Hub, allowedOrigins []string, logger *slog.Logger) *Handler {
	h := &Handler{
		hub:            hub,
		allowedOrigins: allowedOrigins,
		logger:         infrastructure.WithComponent(logger, "websocket.handler"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.logger.WarnContext(r.Context(), "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			http.Error(w, http.StatusText(status), status)
		},
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied.
		return
	}

	client := NewClient(h.hub, conn, infrastructure.GetTraceID(r.Context()), h.logger)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(origin, allowed) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}

	h.logger.WarnContext(r.Context(), "WebSocket origin not allowed",
		slog.String("origin", origin),
		slog.Any("allowed_origins", h.allowedOrigins))
	return false
}
