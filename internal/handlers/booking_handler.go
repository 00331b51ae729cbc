package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventpass/internal/middleware"
	"github.com/joshua-takyi/eventpass/internal/models"
	"github.com/joshua-takyi/eventpass/internal/payment"
	"github.com/joshua-takyi/eventpass/internal/services"
)

// maxWebhookBody caps what the webhook endpoint reads.
const maxWebhookBody = 1 << 20

func CreateOrder(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.CreateOrderInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		order, err := b.CreateOrder(c.Request.Context(), input, middleware.GetCaller(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(order, "Order created successfully"))
	}
}

func VerifyPayment(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.VerifyPaymentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		result, err := b.VerifyPayment(c.Request.Context(), input, middleware.GetCaller(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(result, "Payment verified"))
	}
}

// PaymentWebhook needs the body exactly as sent; the signature covers the
// raw bytes.
func PaymentWebhook(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			badRequest(c, "failed to read request body")
			return
		}

		result, err := b.HandleWebhook(c.Request.Context(), body, c.GetHeader(payment.SignatureHeader))
		if err != nil {
			if errors.Is(err, services.ErrSignatureMismatch) {
				badRequest(c, "invalid signature")
				return
			}
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(result, ""))
	}
}

func RegisterFree(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.RegisterInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		result, err := b.RegisterFree(c.Request.Context(), input, middleware.GetCaller(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(result, "Registration successful"))
	}
}

func ResendPass(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.ResendInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		result, err := b.ResendPass(c.Request.Context(), input, middleware.GetCaller(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(result, "Pass sent"))
	}
}

// PreviewPass returns the stored pass image for display without mailing it.
func PreviewPass(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		preview, err := b.PreviewPass(c.Request.Context(), c.Param("id"), middleware.GetCaller(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(preview, ""))
	}
}

func ListBookings(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookings, err := b.ListBookings(c.Request.Context(), middleware.GetCaller(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(bookings, ""))
	}
}

func MyBookings(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookings, err := b.MyBookings(c.Request.Context(), middleware.GetCaller(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(bookings, ""))
	}
}
