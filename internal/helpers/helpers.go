package helpers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/golang-jwt/jwt/v5"
)

const PassFolder = "passes"

type CustomClaims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenValidator checks bearer tokens either against a remote JWKS or a
// shared HS256 secret.
type TokenValidator struct {
	secret []byte
	jwks   *keyfunc.JWKS
}

func NewTokenValidator(secret, jwksURL string, logger *slog.Logger) (*TokenValidator, error) {
	v := &TokenValidator{secret: []byte(secret)}
	if jwksURL == "" {
		if len(v.secret) == 0 {
			return nil, errors.New("either a JWT secret or a JWKS URL is required")
		}
		return v, nil
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Error("JWKS refresh failed", "url", jwksURL, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", jwksURL, err)
	}
	v.jwks = jwks
	return v, nil
}

func (v *TokenValidator) keyFunc(token *jwt.Token) (interface{}, error) {
	if v.jwks != nil {
		return v.jwks.Keyfunc(token)
	}
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	return v.secret, nil
}

func (v *TokenValidator) Validate(tokenStr string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, v.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func (v *TokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CloudinaryHost uploads rendered passes so the email can link to them.
type CloudinaryHost struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryHost(cld *cloudinary.Cloudinary) *CloudinaryHost {
	return &CloudinaryHost{cld: cld}
}

func (h *CloudinaryHost) UploadPass(ctx context.Context, bookingID, dataURL string) (string, error) {
	res, err := h.cld.Upload.Upload(ctx, dataURL, uploader.UploadParams{
		Folder:   PassFolder,
		PublicID: bookingID,
		Tags:     []string{"event-pass"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload pass %s: %w", bookingID, err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("failed to upload pass %s: %s", bookingID, res.Error.Message)
	}
	return res.SecureURL, nil
}
