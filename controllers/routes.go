package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Router groups the handlers and middleware mounted by RegisterRoutes.
type Router struct {
	Auth      *AuthController
	Referrals *ReferralController
	Threads   *ThreadController
	Contacts  *ContactController

	// RequireAuth resolves the caller; RateLimit throttles writes per user.
	RequireAuth gin.HandlerFunc
	RateLimit   gin.HandlerFunc

	// Realtime serves the websocket upgrade. Optional.
	Realtime gin.HandlerFunc
}

// RegisterRoutes mounts the JSON API under /api plus /ws and /health.
func RegisterRoutes(r *gin.Engine, rt Router) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Authentication routes
	public := r.Group("/api")
	{
		public.POST("/register", rt.Auth.Register)
		public.POST("/login", rt.Auth.Login)
		public.POST("/logout", rt.Auth.Logout)
	}

	// Protected routes
	api := r.Group("/api")
	api.Use(rt.RequireAuth)
	if rt.RateLimit != nil {
		api.Use(rt.RateLimit)
	}
	{
		api.GET("/me", rt.Auth.Me)

		// Referral marketplace
		api.GET("/referrals", rt.Referrals.ListReferrals)
		api.POST("/referrals", rt.Referrals.CreateReferral)
		api.GET("/referrals/:id", rt.Referrals.GetReferral)
		api.POST("/referrals/:id/claim", rt.Referrals.ClaimReferral)
		api.GET("/referrals/:id/claims", rt.Referrals.ListClaims)
		api.POST("/referrals/:id/claims/:claimId/accept", rt.Referrals.AcceptClaim)
		api.POST("/referrals/:id/claims/:claimId/reject", rt.Referrals.RejectClaim)
		api.POST("/referrals/:id/close", rt.Referrals.CloseReferral)
		api.GET("/referrals/:id/messages", rt.Referrals.ListReferralMessages)
		api.POST("/referrals/:id/messages", rt.Referrals.PostReferralMessage)

		// Inbox
		api.GET("/inbox/threads", rt.Threads.ListThreads)
		api.POST("/inbox/threads", rt.Threads.CreateThread)
		api.GET("/inbox/threads/:id", rt.Threads.GetThread)
		api.POST("/inbox/threads/:id/messages", rt.Threads.PostMessage)
		api.POST("/inbox/threads/:id/read", rt.Threads.MarkRead)
		api.GET("/inbox/unread", rt.Threads.UnreadSummary)

		// Contacts and deals
		api.GET("/contacts", rt.Contacts.ListContacts)
		api.POST("/contacts", rt.Contacts.CreateContact)
		api.GET("/contacts/:id", rt.Contacts.GetContact)
		api.PUT("/contacts/:id", rt.Contacts.UpdateContact)
		api.DELETE("/contacts/:id", rt.Contacts.DeleteContact)
		api.POST("/contacts/:id/interactions", rt.Contacts.LogInteraction)
		api.GET("/contacts/:id/score", rt.Contacts.GetScore)
		api.GET("/contacts/:id/deals", rt.Contacts.ListDeals)
		api.POST("/contacts/:id/deals", rt.Contacts.CreateDeal)
		api.PUT("/deals/:id/stage", rt.Contacts.UpdateDealStage)
	}

	// WebSocket route
	if rt.Realtime != nil {
		r.GET("/ws", rt.RequireAuth, rt.Realtime)
	}
}
