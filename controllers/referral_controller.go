package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CUknot/realty_crm/models"
	"github.com/CUknot/realty_crm/services"
)

// ReferralService is the marketplace API the referral handlers call.
type ReferralService interface {
	Create(ctx context.Context, actorID uint, in services.CreateReferralInput) (*models.Referral, error)
	List(ctx context.Context, f services.ReferralFilter) ([]models.Referral, error)
	Get(ctx context.Context, actorID, referralID uint) (*services.ReferralDetail, error)
	ListClaims(ctx context.Context, actorID, referralID uint) ([]models.Claim, error)
	Claim(ctx context.Context, actorID, referralID uint, note string) (*models.Claim, error)
	AcceptClaim(ctx context.Context, actorID, referralID, claimID uint) (*models.Claim, error)
	RejectClaim(ctx context.Context, actorID, referralID, claimID uint) (*models.Claim, error)
	Close(ctx context.Context, actorID, referralID uint) (*models.Referral, error)
	PostMessage(ctx context.Context, actorID, referralID uint, in services.PostReferralMessageInput) (*models.ReferralMessage, error)
	ListMessages(ctx context.Context, actorID, referralID uint) ([]models.ReferralMessage, error)
}

type CreateReferralInput struct {
	Title       string  `json:"title" binding:"required,max=255"`
	Description string  `json:"description"`
	Category    string  `json:"category" binding:"required,referral_category"`
	Location    string  `json:"location" binding:"max=255"`
	FeePercent  float64 `json:"fee_percent" binding:"gte=0,lte=100"`
}

type ClaimInput struct {
	Message string `json:"message" binding:"max=2000"`
}

type ReferralMessageInput struct {
	Body       string `json:"body" binding:"required"`
	Visibility string `json:"visibility" binding:"omitempty,oneof=public private"`
	ClaimID    *uint  `json:"claim_id"`
}

type ReferralController struct {
	referrals ReferralService
}

func NewReferralController(referrals ReferralService) *ReferralController {
	return &ReferralController{referrals: referrals}
}

// ListReferrals godoc
// @Summary List referrals
// @Description Lists referrals, newest first
// @Tags referrals
// @Security BearerAuth
// @Produce json
// @Param status query string false "open or closed"
// @Param category query string false "Referral category"
// @Param mine query bool false "Only referrals created by the current user"
// @Param limit query int false "Maximum number of results"
// @Success 200 {object} map[string]interface{}
// @Router /api/referrals [get]
func (rc *ReferralController) ListReferrals(c *gin.Context) {
	filter := services.ReferralFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Limit:    queryInt(c, "limit"),
	}
	if c.Query("mine") == "true" {
		filter.CreatorID = currentUser(c)
	}

	referrals, err := rc.referrals.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "referrals": referrals})
}

// CreateReferral godoc
// @Summary Post a referral
// @Tags referrals
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param input body CreateReferralInput true "Referral details"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/referrals [post]
func (rc *ReferralController) CreateReferral(c *gin.Context) {
	var input CreateReferralInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	referral, err := rc.referrals.Create(c.Request.Context(), currentUser(c), services.CreateReferralInput{
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Location:    input.Location,
		FeePercent:  input.FeePercent,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "referral": referral})
}

// GetReferral godoc
// @Summary Get a referral
// @Description Returns the referral with the claims and messages visible to the caller
// @Tags referrals
// @Security BearerAuth
// @Produce json
// @Param id path int true "Referral ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/referrals/{id} [get]
func (rc *ReferralController) GetReferral(c *gin.Context) {
	id, ok := parseID(c, "id", "referral")
	if !ok {
		return
	}

	detail, err := rc.referrals.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"referral": detail.Referral,
		"claims":   detail.Claims,
		"messages": detail.Messages,
	})
}

// ClaimReferral godoc
// @Summary Claim a referral
// @Tags referrals
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Referral ID"
// @Param input body ClaimInput false "Optional note to the creator"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/referrals/{id}/claim [post]
func (rc *ReferralController) ClaimReferral(c *gin.Context) {
	id, ok := parseID(c, "id", "referral")
	if !ok {
		return
	}

	// the body is optional
	var input ClaimInput
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claim, err := rc.referrals.Claim(c.Request.Context(), currentUser(c), id, input.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "claim": claim})
}

// ListClaims godoc
// @Summary List claims on a referral
// @Description The creator sees every claim; anyone else sees only their own
// @Tags referrals
// @Security BearerAuth
// @Produce json
// @Param id path int true "Referral ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/referrals/{id}/claims [get]
func (rc *ReferralController) ListClaims(c *gin.Context) {
	id, ok := parseID(c, "id", "referral")
	if !ok {
		return
	}

	claims, err := rc.referrals.ListClaims(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "claims": claims})
}

// AcceptClaim godoc
// @Summary Accept a claim
// @Tags referrals
// @Security BearerAuth
// @Produce json
// @Param id path int true "Referral ID"
// @Param claimId path int true "Claim ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/referrals/{id}/claims/{claimId}/accept [post]
func (rc *ReferralController) AcceptClaim(c *gin.Context) {
	rc.decide(c, rc.referrals.AcceptClaim)
}

// RejectClaim godoc
// @Summary Reject a claim
// @Tags referrals
// @Security BearerAuth
// @Produce json
// @Param id path int true "Referral ID"
// @Param claimId path int true "Claim ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/referrals/{id}/claims/{claimId}/reject [post]
func (rc *ReferralController) RejectClaim(c *gin.Context) {
	rc.decide(c, rc.referrals.RejectClaim)
}

func (rc *ReferralController) decide(c *gin.Context, action func(ctx context.Context, actorID, referralID, claimID uint) (*models.Claim, error)) {
	id, ok := parseID(c, "id", "referral")
	if !ok {
		return
	}
	claimID, ok := parseID(c, "claimId", "claim")
	if !ok {
		return
	}

	claim, err := action(c.Request.Context(), currentUser(c), id, claimID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "claim": claim})
}

// CloseReferral godoc
// @Summary Close a referral
// @Tags referrals
// @Security BearerAuth
// @Produce json
// @Param id path int true "Referral ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/referrals/{id}/close [post]
func (rc *ReferralController) CloseReferral(c *gin.Context) {
	id, ok := parseID(c, "id", "referral")
	if !ok {
		return
	}

	referral, err := rc.referrals.Close(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "referral": referral})
}

// ListReferralMessages godoc
// @Summary List referral messages
// @Tags referrals
// @Security BearerAuth
// @Produce json
// @Param id path int true "Referral ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/referrals/{id}/messages [get]
func (rc *ReferralController) ListReferralMessages(c *gin.Context) {
	id, ok := parseID(c, "id", "referral")
	if !ok {
		return
	}

	messages, err := rc.referrals.ListMessages(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": messages})
}

// PostReferralMessage godoc
// @Summary Post a referral message
// @Description Public messages are visible to everyone; private ones to the creator and one claimant
// @Tags referrals
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Referral ID"
// @Param input body ReferralMessageInput true "Message"
// @Success 201 {object} map[string]interface{}
// @Router /api/referrals/{id}/messages [post]
func (rc *ReferralController) PostReferralMessage(c *gin.Context) {
	id, ok := parseID(c, "id", "referral")
	if !ok {
		return
	}

	var input ReferralMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := rc.referrals.PostMessage(c.Request.Context(), currentUser(c), id, services.PostReferralMessageInput{
		Body:       input.Body,
		Visibility: input.Visibility,
		ClaimID:    input.ClaimID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": message})
}
