package gateway

import (
	"context"
	"net/http"
	"slices"

	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to websocket sessions
type Handler struct {
	gateway    *Gateway
	dispatcher *Dispatcher
	settings   Settings
	upgrader   websocket.Upgrader
}

// NewHandler creates a websocket Handler
func NewHandler(gateway *Gateway, dispatcher *Dispatcher, settings Settings) *Handler {
	return &Handler{
		gateway:    gateway,
		dispatcher: dispatcher,
		settings:   settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(settings.AllowedOrigins),
		},
	}
}

// ServeWS handles GET /ws
func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already replied to the client
		utils.Warn("ServeWS: upgrade failed", map[string]any{"error": err.Error(), "remote": c.ClientIP()})
		return
	}

	client := NewClient(utils.GenerateID(), conn, h.gateway, h.dispatcher, h.settings)
	if err := h.gateway.Connect(client); err != nil {
		utils.Error("ServeWS: failed to register connection", map[string]any{"error": err.Error()})
		conn.Close()
		return
	}
	_ = client.Deliver(mustEncode(EventConnected, ConnectedPayload{ConnectionID: client.ID()}))

	utils.Info("ServeWS: client connected", map[string]any{"connection_id": client.ID(), "remote": c.ClientIP()})
	go client.Run(context.WithoutCancel(c.Request.Context()))
}

// originChecker allows every origin when none are configured or "*" is listed
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func mustEncode(event string, payload any) []byte {
	frame, err := encode(event, payload)
	if err != nil {
		panic(err)
	}
	return frame
}
