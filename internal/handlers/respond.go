package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventpass/internal/middleware"
	"github.com/joshua-takyi/eventpass/internal/models"
	"github.com/joshua-takyi/eventpass/internal/services"
)

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindInvalidInput, services.KindSignatureInvalid:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindConflict:
		return http.StatusConflict
	case services.KindUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err using its kind. Internal errors are also
// attached to the context so ErrorHandler logs them.
func respondError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	if kind == services.KindInternal {
		_ = c.Error(err)
	}
	resp := models.ErrorResponse(string(kind), services.PublicMessage(err))
	resp.RequestID = middleware.GetRequestID(c)
	c.JSON(statusFor(kind), resp)
}

func badRequest(c *gin.Context, message string) {
	resp := models.ErrorResponse(string(services.KindInvalidInput), message)
	resp.RequestID = middleware.GetRequestID(c)
	c.JSON(http.StatusBadRequest, resp)
}
