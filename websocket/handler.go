package websocket

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/CUknot/realty_crm/middleware"
	"github.com/CUknot/realty_crm/models"
)

// Inbox is the part of the inbox service reachable from a socket.
type Inbox interface {
	IsParticipant(ctx context.Context, actorID, threadID uint) bool
	PostMessage(ctx context.Context, actorID, threadID uint, body, channel string) (*models.Message, error)
	MarkRead(ctx context.Context, actorID, threadID uint) (time.Time, error)
}

// Handler upgrades authenticated requests and serves their frames.
type Handler struct {
	hub      *Hub
	inbox    Inbox
	upgrader websocket.Upgrader
}

// NewHandler builds a handler. Browser origins must appear in
// allowedOrigins; an empty list accepts any origin.
func NewHandler(hub *Hub, inbox Inbox, allowedOrigins []string) *Handler {
	return &Handler{
		hub:   hub,
		inbox: inbox,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// ServeWS godoc
// @Summary      Open realtime connection
// @Description  Upgrades to a websocket delivering inbox messages and referral events
// @Tags         realtime
// @Security     BearerAuth
// @Success      101
// @Failure      401  {object}  map[string]string
// @Router       /ws [get]
func (h *Handler) ServeWS(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("error upgrading connection: %v", err)
		return
	}

	client := &Client{
		hub:     h.hub,
		handler: h,
		conn:    conn,
		send:    make(chan []byte, 256),
		userID:  userID,
	}
	if !h.hub.addClient(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
