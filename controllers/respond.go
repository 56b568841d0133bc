package controllers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CUknot/realty_crm/middleware"
	"github.com/CUknot/realty_crm/services"
)

// statusFor maps a service error kind to its HTTP status.
func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindInvalidState, services.KindValidation:
		return http.StatusBadRequest
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": ...}. Unexpected errors are logged
// with their cause and only the summary is returned.
func respondError(c *gin.Context, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	status := statusFor(svcErr.Kind)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": svcErr.Message})
}

// parseID reads a numeric path parameter, answering 400 when it is not one.
func parseID(c *gin.Context, param, label string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + label + " ID"})
		return 0, false
	}
	return uint(id), true
}

func currentUser(c *gin.Context) uint {
	return middleware.CurrentUserID(c)
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
