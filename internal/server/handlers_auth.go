package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// createGuestToken mints an anonymous identity. No account is created; the
// subject claim is the only handle the rest of the API needs.
func (a *App) createGuestToken(c *gin.Context) {
	userID := uuid.NewString()
	now := time.Now().UTC()
	expiresAt := now.Add(time.Duration(a.cfg.GuestTokenTTLHours) * time.Hour)

	claims := jwt.MapClaims{
		"sub":      userID,
		"iat":      now.Unix(),
		"exp":      expiresAt.Unix(),
		"provider": "guest",
	}
	if a.cfg.JWTAudience != "" {
		claims["aud"] = a.cfg.JWTAudience
	}
	if a.cfg.JWTIssuer != "" {
		claims["iss"] = a.cfg.JWTIssuer
	}

	method := jwt.GetSigningMethod(a.cfg.JWTAlgorithm)
	if method == nil {
		log.Printf("unknown JWT algorithm %q", a.cfg.JWTAlgorithm)
		writeError(c, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(a.cfg.JWTSecret))
	if err != nil {
		log.Printf("guest token signing failed: %v", err)
		writeError(c, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"user_id":    userID,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}
