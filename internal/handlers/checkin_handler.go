package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventpass/internal/middleware"
	"github.com/joshua-takyi/eventpass/internal/models"
	"github.com/joshua-takyi/eventpass/internal/services"
)

type checkInRequest struct {
	QRData string `json:"qr_data" binding:"required"`
}

func CheckIn(s *services.CheckInService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "qr_data is required")
			return
		}

		result, err := s.CheckIn(c.Request.Context(), req.QRData, middleware.GetCaller(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(result, "Check-in successful"))
	}
}
