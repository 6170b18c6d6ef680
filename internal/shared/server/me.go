package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wasteops-backend/internal/shared/server/middleware"
	"wasteops-backend/internal/shared/server/respond"
)

// registerMeRoutes attaches the /me endpoint.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

func meHandler(c *gin.Context) {
	staffID := middleware.StaffIDFromContext(c)
	if staffID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	response := gin.H{
		"staffId": staffID,
	}
	if name := middleware.StaffNameFromContext(c); name != "" {
		response["name"] = name
	}

	respond.JSON(c, http.StatusOK, response)
}
