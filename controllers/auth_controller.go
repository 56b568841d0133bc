package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CUknot/realty_crm/middleware"
	"github.com/CUknot/realty_crm/models"
	"github.com/CUknot/realty_crm/services"
)

// AuthService is the account API the auth handlers call.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Logout(ctx context.Context, sessionID string) error
	Me(ctx context.Context, userID uint) (*models.User, error)
}

type RegisterInput struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"max=50"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthController struct {
	auth         AuthService
	sessionTTL   time.Duration
	cookieSecure bool
}

func NewAuthController(auth AuthService, sessionTTL time.Duration, cookieSecure bool) *AuthController {
	return &AuthController{auth: auth, sessionTTL: sessionTTL, cookieSecure: cookieSecure}
}

// Register godoc
// @Summary Register a new user
// @Description Creates an account, starts a session and returns a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param input body RegisterInput true "Registration details"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/register [post]
func (ac *AuthController) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := ac.auth.Register(c.Request.Context(), services.RegisterInput{
		Name:     input.Name,
		Email:    input.Email,
		Phone:    input.Phone,
		Password: input.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	ac.setSession(c, result.SessionID)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully",
		"user":    result.User,
		"token":   result.Token,
	})
}

// Login godoc
// @Summary Login
// @Description Authenticates with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param input body LoginInput true "Credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := ac.auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	ac.setSession(c, result.SessionID)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user":    result.User,
		"token":   result.Token,
	})
}

// Logout godoc
// @Summary Logout
// @Description Ends the cookie session
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/logout [post]
func (ac *AuthController) Logout(c *gin.Context) {
	if id, err := c.Cookie(middleware.SessionCookie); err == nil && id != "" {
		if err := ac.auth.Logout(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", ac.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/me [get]
func (ac *AuthController) Me(c *gin.Context) {
	user, err := ac.auth.Me(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (ac *AuthController) setSession(c *gin.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, sessionID, int(ac.sessionTTL.Seconds()), "/", "", ac.cookieSecure, true)
}
