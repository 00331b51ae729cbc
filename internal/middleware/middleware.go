package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventpass/internal/helpers"
	"github.com/joshua-takyi/eventpass/internal/models"
)

const (
	requestIDKey = "request_id"
	callerKey    = "caller"

	AccessTokenCookie = "access_token"
)

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// StructuredLogger provides structured logging middleware
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		attrs := []any{
			"request_id", GetRequestID(c),
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if caller := GetCaller(c); !caller.IsAnonymous() {
			attrs = append(attrs, "caller", caller.SubjectID)
		}
		logger.Info("HTTP Request", attrs...)
	}
}

// ErrorHandler provides centralized error handling for errors attached
// with c.Error by handlers that did not write a response.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()
		logger.Error("Request error",
			"request_id", GetRequestID(c),
			"error", err.Error(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		if c.Writer.Written() {
			return
		}
		resp := models.ErrorResponse("internal", "Internal server error")
		resp.RequestID = GetRequestID(c)
		c.JSON(http.StatusInternalServerError, resp)
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	token, err := c.Cookie(AccessTokenCookie)
	if err != nil {
		return ""
	}
	return token
}

func abortUnauthorized(c *gin.Context, message string) {
	resp := models.ErrorResponse("unauthorized", message)
	resp.RequestID = GetRequestID(c)
	c.AbortWithStatusJSON(http.StatusUnauthorized, resp)
}

// Authenticate resolves the caller from a bearer header or the
// access_token cookie. Requests without a token continue as anonymous;
// a token that fails validation is rejected.
func Authenticate(tokens *helpers.TokenValidator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			logger.Info("Rejected access token", "request_id", GetRequestID(c), "error", err)
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		c.Set(callerKey, &helpers.Caller{
			SubjectID: claims.Subject,
			Email:     claims.Email,
			Role:      claims.Role,
		})
		c.Next()
	}
}

// GetCaller returns the authenticated caller, or nil for anonymous
// requests. A nil *Caller is safe to call methods on.
func GetCaller(c *gin.Context) *helpers.Caller {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil
	}
	caller, _ := v.(*helpers.Caller)
	return caller
}

// RequireAuth rejects anonymous callers.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetCaller(c).IsAnonymous() {
			abortUnauthorized(c, "authentication required")
			return
		}
		c.Next()
	}
}

// RequireRole admits only callers holding one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := GetCaller(c)
		if caller.IsAnonymous() {
			abortUnauthorized(c, "authentication required")
			return
		}
		if !caller.HasRole(roles...) {
			resp := models.ErrorResponse("forbidden", "insufficient permissions")
			resp.RequestID = GetRequestID(c)
			c.AbortWithStatusJSON(http.StatusForbidden, resp)
			return
		}
		c.Next()
	}
}
