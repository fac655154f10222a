package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jamesbond008/mungers-mind/internal/advisor"
	"github.com/jamesbond008/mungers-mind/internal/config"
	"github.com/jamesbond008/mungers-mind/internal/entitlement"
	"github.com/jamesbond008/mungers-mind/internal/kv"
	"github.com/jamesbond008/mungers-mind/internal/transcript"
)

type App struct {
	cfg          config.Config
	state        kv.Store
	entitlements *entitlement.Store
	advisor      advisor.Client
	transcripts  *transcript.Book

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

type AuthUser struct {
	ID string
}

func New(cfg config.Config, state kv.Store, advisorClient advisor.Client) *App {
	return &App{
		cfg:   cfg,
		state: state,
		entitlements: entitlement.NewStore(state, entitlement.Allotments{
			Trial:      cfg.TrialCredits,
			Starter:    cfg.StarterCredits,
			CreditPack: cfg.CreditPackCredits,
		}),
		advisor:     advisorClient,
		transcripts: transcript.NewBook(),
		inflight:    make(map[string]struct{}),
	}
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)

	api := router.Group(a.cfg.APIPrefix)
	api.POST("/auth/guest", a.createGuestToken)
	// Payment processors redirect with GET and cannot set headers, so the
	// return route authenticates via a token query parameter instead.
	api.GET("/checkout/return", a.checkoutReturn)

	authed := api.Group("")
	authed.Use(a.authMiddleware())
	authed.POST("/advice/query", a.adviceQuery)
	authed.GET("/transcript", a.listTranscript)
	authed.GET("/transcript/export", a.exportTranscriptCSV)
	authed.GET("/transcript/:entry_id", a.getTranscriptEntry)
	authed.GET("/entitlement/me", a.getMyEntitlement)
	authed.POST("/entitlement/grant", a.grantEntitlement)
	authed.POST("/entitlement/reset", a.resetEntitlement)
	authed.GET("/plans", a.listPlans)
	authed.GET("/models", a.listModels)

	return router
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "mungers-mind-api",
	})
}

func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		userID, err := a.userIDFromToken(tokenString)
		if err != nil {
			writeError(c, http.StatusUnauthorized, err.Error())
			return
		}

		c.Set("authUser", AuthUser{ID: userID})
		c.Next()
	}
}

// userIDFromToken verifies a bearer token and returns its subject. Shared by
// the auth middleware and the checkout return route.
func (a *App) userIDFromToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("Invalid bearer token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("Invalid token payload")
	}
	if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
		return "", fmt.Errorf("Invalid token audience")
	}
	if a.cfg.JWTIssuer != "" {
		issuer, _ := claims["iss"].(string)
		if issuer != a.cfg.JWTIssuer {
			return "", fmt.Errorf("Invalid token issuer")
		}
	}
	sub, _ := claims["sub"].(string)
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return "", fmt.Errorf("Token subject missing")
	}
	return sub, nil
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func authUserFromContext(c *gin.Context) (AuthUser, bool) {
	raw, ok := c.Get("authUser")
	if !ok {
		return AuthUser{}, false
	}
	user, ok := raw.(AuthUser)
	return user, ok
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

// beginQuery claims the user's single query slot. It returns false when a
// prior cycle is still in flight; new submissions are rejected, not queued.
func (a *App) beginQuery(userID string) bool {
	a.inflightMu.Lock()
	defer a.inflightMu.Unlock()
	if _, busy := a.inflight[userID]; busy {
		return false
	}
	a.inflight[userID] = struct{}{}
	return true
}

func (a *App) endQuery(userID string) {
	a.inflightMu.Lock()
	defer a.inflightMu.Unlock()
	delete(a.inflight, userID)
}
