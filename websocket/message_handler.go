package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/CUknot/realty_crm/services"
)

// Client frame types
const (
	frameJoinThread  = "join_thread"
	frameLeaveThread = "leave_thread"
	frameMessage     = "message"
	frameMarkRead    = "mark_read"
)

const frameTimeout = 5 * time.Second

// incomingFrame is a client frame with its payload left undecoded
type incomingFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ThreadPayload is the payload of every client frame
type ThreadPayload struct {
	ThreadID uint   `json:"thread_id"`
	Body     string `json:"body,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

// ReadReceipt acknowledges mark_read
type ReadReceipt struct {
	ThreadID   uint      `json:"thread_id"`
	LastReadAt time.Time `json:"last_read_at"`
}

func (h *Handler) handleFrame(client *Client, raw []byte) {
	var frame incomingFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.sendError(client, "Malformed frame")
		return
	}
	switch frame.Type {
	case frameJoinThread, frameLeaveThread, frameMessage, frameMarkRead:
	default:
		h.sendError(client, "Unknown frame type")
		return
	}

	var payload ThreadPayload
	if len(frame.Payload) > 0 {
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			h.sendError(client, "Malformed payload")
			return
		}
	}
	if payload.ThreadID == 0 {
		h.sendError(client, "thread_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()

	switch frame.Type {
	case frameJoinThread:
		if !h.inbox.IsParticipant(ctx, client.userID, payload.ThreadID) {
			log.Printf("User %d attempted to join thread %d without being a participant",
				client.userID, payload.ThreadID)
			h.sendError(client, "thread not found")
			return
		}
		h.hub.joinThread(client, payload.ThreadID)
	case frameLeaveThread:
		h.hub.leaveThread(client, payload.ThreadID)
	case frameMessage:
		// the inbox service broadcasts the stored message to the thread room
		if _, err := h.inbox.PostMessage(ctx, client.userID, payload.ThreadID, payload.Body, payload.Channel); err != nil {
			h.sendError(client, errorMessage(err))
		}
	case frameMarkRead:
		readAt, err := h.inbox.MarkRead(ctx, client.userID, payload.ThreadID)
		if err != nil {
			h.sendError(client, errorMessage(err))
			return
		}
		h.send(client, "read", ReadReceipt{ThreadID: payload.ThreadID, LastReadAt: readAt})
	}
}

func (h *Handler) send(client *Client, frameType string, payload interface{}) {
	data, err := json.Marshal(Message{Type: frameType, Payload: payload})
	if err != nil {
		log.Printf("error marshaling message: %v", err)
		return
	}
	h.hub.sendTo(client, data)
}

func (h *Handler) sendError(client *Client, message string) {
	h.send(client, "error", map[string]string{"message": message})
}

func errorMessage(err error) string {
	var svcErr *services.Error
	if errors.As(err, &svcErr) && svcErr.Kind != services.KindUnexpected {
		return svcErr.Message
	}
	log.Printf("websocket frame failed: %v", err)
	return "Internal server error"
}
