package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CUknot/realty_crm/models"
	"github.com/CUknot/realty_crm/services"
)

// InboxService is the thread API the inbox handlers call.
type InboxService interface {
	CreateThread(ctx context.Context, actorID uint, in services.CreateThreadInput) (*models.Thread, error)
	ListThreads(ctx context.Context, actorID uint) ([]services.ThreadSummary, error)
	GetThread(ctx context.Context, actorID, threadID uint) (*services.ThreadDetail, error)
	PostMessage(ctx context.Context, actorID, threadID uint, body, channel string) (*models.Message, error)
	MarkRead(ctx context.Context, actorID, threadID uint) (time.Time, error)
	UnreadSummary(ctx context.Context, actorID uint) (services.UnreadSummary, error)
}

type CreateThreadInput struct {
	Subject        string `json:"subject" binding:"required,max=255"`
	ParticipantIDs []uint `json:"participant_ids" binding:"required,min=1"`
	ContactID      *uint  `json:"contact_id"`
	Body           string `json:"body"`
}

type ThreadMessageInput struct {
	Body    string `json:"body" binding:"required"`
	Channel string `json:"channel" binding:"omitempty,oneof=note email sms"`
}

type ThreadController struct {
	inbox InboxService
}

func NewThreadController(inbox InboxService) *ThreadController {
	return &ThreadController{inbox: inbox}
}

// ListThreads godoc
// @Summary List inbox threads
// @Description Threads the user participates in, most recent activity first, with unread counts
// @Tags inbox
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/inbox/threads [get]
func (tc *ThreadController) ListThreads(c *gin.Context) {
	threads, err := tc.inbox.ListThreads(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "threads": threads})
}

// CreateThread godoc
// @Summary Start a thread
// @Tags inbox
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param input body CreateThreadInput true "Thread details"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/inbox/threads [post]
func (tc *ThreadController) CreateThread(c *gin.Context) {
	var input CreateThreadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	thread, err := tc.inbox.CreateThread(c.Request.Context(), currentUser(c), services.CreateThreadInput{
		Subject:        input.Subject,
		ParticipantIDs: input.ParticipantIDs,
		ContactID:      input.ContactID,
		Body:           input.Body,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "thread": thread})
}

// GetThread godoc
// @Summary Get a thread
// @Description Returns the thread, its participants and its messages
// @Tags inbox
// @Security BearerAuth
// @Produce json
// @Param id path int true "Thread ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/inbox/threads/{id} [get]
func (tc *ThreadController) GetThread(c *gin.Context) {
	id, ok := parseID(c, "id", "thread")
	if !ok {
		return
	}

	detail, err := tc.inbox.GetThread(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"thread":       detail.Thread,
		"participants": detail.Participants,
		"messages":     detail.Messages,
		"lastReadAt":   detail.LastReadAt,
	})
}

// PostMessage godoc
// @Summary Post to a thread
// @Tags inbox
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Thread ID"
// @Param input body ThreadMessageInput true "Message"
// @Success 201 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/inbox/threads/{id}/messages [post]
func (tc *ThreadController) PostMessage(c *gin.Context) {
	id, ok := parseID(c, "id", "thread")
	if !ok {
		return
	}

	var input ThreadMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := tc.inbox.PostMessage(c.Request.Context(), currentUser(c), id, input.Body, input.Channel)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": message})
}

// MarkRead godoc
// @Summary Mark a thread read
// @Tags inbox
// @Security BearerAuth
// @Produce json
// @Param id path int true "Thread ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/inbox/threads/{id}/read [post]
func (tc *ThreadController) MarkRead(c *gin.Context) {
	id, ok := parseID(c, "id", "thread")
	if !ok {
		return
	}

	readAt, err := tc.inbox.MarkRead(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "lastReadAt": readAt})
}

// UnreadSummary godoc
// @Summary Unread counts
// @Description Number of unread threads and messages across the inbox
// @Tags inbox
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/inbox/unread [get]
func (tc *ThreadController) UnreadSummary(c *gin.Context) {
	summary, err := tc.inbox.UnreadSummary(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "unread": summary})
}
