package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CUknot/realty_crm/models"
	"github.com/CUknot/realty_crm/services"
)

// ContactService is the CRM API the contact and deal handlers call.
type ContactService interface {
	Create(ctx context.Context, ownerID uint, in services.ContactInput) (*models.Contact, error)
	List(ctx context.Context, ownerID uint, f services.ContactFilter) ([]models.Contact, error)
	Get(ctx context.Context, ownerID, id uint) (*models.Contact, error)
	Update(ctx context.Context, ownerID, id uint, in services.ContactUpdate) (*models.Contact, error)
	Delete(ctx context.Context, ownerID, id uint) error
	LogInteraction(ctx context.Context, ownerID, contactID uint, in services.InteractionInput) (*models.Interaction, error)
	Score(ctx context.Context, ownerID, contactID uint) (*services.ContactScore, error)
	CreateDeal(ctx context.Context, ownerID, contactID uint, in services.DealInput) (*models.Deal, error)
	ListDeals(ctx context.Context, ownerID, contactID uint) ([]models.Deal, error)
	UpdateDealStage(ctx context.Context, ownerID, dealID uint, stage string) (*models.Deal, error)
}

type ContactInput struct {
	Name           string `json:"name" binding:"required,max=255"`
	Email          string `json:"email" binding:"omitempty,email"`
	Phone          string `json:"phone" binding:"max=32"`
	Stage          string `json:"stage" binding:"omitempty,oneof=lead prospect client past_client sphere"`
	Source         string `json:"source" binding:"max=64"`
	ReferralsGiven int    `json:"referrals_given" binding:"gte=0"`
}

type UpdateContactInput struct {
	Name           *string `json:"name" binding:"omitempty,max=255"`
	Email          *string `json:"email" binding:"omitempty,email"`
	Phone          *string `json:"phone" binding:"omitempty,max=32"`
	Stage          *string `json:"stage" binding:"omitempty,oneof=lead prospect client past_client sphere"`
	Source         *string `json:"source" binding:"omitempty,max=64"`
	ReferralsGiven *int    `json:"referrals_given" binding:"omitempty,gte=0"`
}

type InteractionInput struct {
	Kind       string     `json:"kind" binding:"required,oneof=call email sms meeting note"`
	Notes      string     `json:"notes"`
	OccurredAt *time.Time `json:"occurred_at"`
}

type DealInput struct {
	Title      string `json:"title" binding:"required,max=255"`
	Stage      string `json:"stage" binding:"omitempty,oneof=prospecting under_contract closed_won closed_lost"`
	ValueCents int64  `json:"value_cents" binding:"gte=0"`
}

type DealStageInput struct {
	Stage string `json:"stage" binding:"required,oneof=prospecting under_contract closed_won closed_lost"`
}

type ContactController struct {
	contacts ContactService
}

func NewContactController(contacts ContactService) *ContactController {
	return &ContactController{contacts: contacts}
}

// ListContacts godoc
// @Summary List contacts
// @Tags contacts
// @Security BearerAuth
// @Produce json
// @Param q query string false "Search name or email"
// @Param stage query string false "Relationship stage"
// @Param sort query string false "score to order by relationship score"
// @Param limit query int false "Maximum number of results"
// @Success 200 {object} map[string]interface{}
// @Router /api/contacts [get]
func (cc *ContactController) ListContacts(c *gin.Context) {
	contacts, err := cc.contacts.List(c.Request.Context(), currentUser(c), services.ContactFilter{
		Query:   c.Query("q"),
		Stage:   c.Query("stage"),
		ByScore: c.Query("sort") == "score",
		Limit:   queryInt(c, "limit"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contacts": contacts})
}

// CreateContact godoc
// @Summary Create a contact
// @Tags contacts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param input body ContactInput true "Contact details"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/contacts [post]
func (cc *ContactController) CreateContact(c *gin.Context) {
	var input ContactInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := cc.contacts.Create(c.Request.Context(), currentUser(c), services.ContactInput{
		Name:           input.Name,
		Email:          input.Email,
		Phone:          input.Phone,
		Stage:          input.Stage,
		Source:         input.Source,
		ReferralsGiven: input.ReferralsGiven,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "contact": contact})
}

// GetContact godoc
// @Summary Get a contact
// @Tags contacts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Contact ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/contacts/{id} [get]
func (cc *ContactController) GetContact(c *gin.Context) {
	id, ok := parseID(c, "id", "contact")
	if !ok {
		return
	}

	contact, err := cc.contacts.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contact": contact})
}

// UpdateContact godoc
// @Summary Update a contact
// @Description Only the fields present in the body change; the score is recomputed
// @Tags contacts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Contact ID"
// @Param input body UpdateContactInput true "Fields to change"
// @Success 200 {object} map[string]interface{}
// @Router /api/contacts/{id} [put]
func (cc *ContactController) UpdateContact(c *gin.Context) {
	id, ok := parseID(c, "id", "contact")
	if !ok {
		return
	}

	var input UpdateContactInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := cc.contacts.Update(c.Request.Context(), currentUser(c), id, services.ContactUpdate{
		Name:           input.Name,
		Email:          input.Email,
		Phone:          input.Phone,
		Stage:          input.Stage,
		Source:         input.Source,
		ReferralsGiven: input.ReferralsGiven,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contact": contact})
}

// DeleteContact godoc
// @Summary Delete a contact
// @Description Removes the contact with its interactions and deals
// @Tags contacts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Contact ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/contacts/{id} [delete]
func (cc *ContactController) DeleteContact(c *gin.Context) {
	id, ok := parseID(c, "id", "contact")
	if !ok {
		return
	}

	if err := cc.contacts.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Contact deleted"})
}

// LogInteraction godoc
// @Summary Log an interaction
// @Tags contacts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Contact ID"
// @Param input body InteractionInput true "Interaction"
// @Success 201 {object} map[string]interface{}
// @Router /api/contacts/{id}/interactions [post]
func (cc *ContactController) LogInteraction(c *gin.Context) {
	id, ok := parseID(c, "id", "contact")
	if !ok {
		return
	}

	var input InteractionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	interaction, err := cc.contacts.LogInteraction(c.Request.Context(), currentUser(c), id, services.InteractionInput{
		Kind:       input.Kind,
		Notes:      input.Notes,
		OccurredAt: input.OccurredAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "interaction": interaction})
}

// GetScore godoc
// @Summary Relationship score
// @Description Recomputes the contact's score and returns its breakdown
// @Tags contacts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Contact ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/contacts/{id}/score [get]
func (cc *ContactController) GetScore(c *gin.Context) {
	id, ok := parseID(c, "id", "contact")
	if !ok {
		return
	}

	score, err := cc.contacts.Score(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contact": score.Contact, "score": score.Score})
}

// ListDeals godoc
// @Summary List a contact's deals
// @Tags deals
// @Security BearerAuth
// @Produce json
// @Param id path int true "Contact ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/contacts/{id}/deals [get]
func (cc *ContactController) ListDeals(c *gin.Context) {
	id, ok := parseID(c, "id", "contact")
	if !ok {
		return
	}

	deals, err := cc.contacts.ListDeals(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deals": deals})
}

// CreateDeal godoc
// @Summary Open a deal
// @Tags deals
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Contact ID"
// @Param input body DealInput true "Deal"
// @Success 201 {object} map[string]interface{}
// @Router /api/contacts/{id}/deals [post]
func (cc *ContactController) CreateDeal(c *gin.Context) {
	id, ok := parseID(c, "id", "contact")
	if !ok {
		return
	}

	var input DealInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deal, err := cc.contacts.CreateDeal(c.Request.Context(), currentUser(c), id, services.DealInput{
		Title:      input.Title,
		Stage:      input.Stage,
		ValueCents: input.ValueCents,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "deal": deal})
}

// UpdateDealStage godoc
// @Summary Move a deal to another stage
// @Description Closing stamps closed_at; a closed deal cannot move again
// @Tags deals
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Deal ID"
// @Param input body DealStageInput true "New stage"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/deals/{id}/stage [put]
func (cc *ContactController) UpdateDealStage(c *gin.Context) {
	id, ok := parseID(c, "id", "deal")
	if !ok {
		return
	}

	var input DealStageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deal, err := cc.contacts.UpdateDealStage(c.Request.Context(), currentUser(c), id, input.Stage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deal": deal})
}
