package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jamesbond008/mungers-mind/internal/entitlement"
)

type grantRequest struct {
	Plan string `json:"plan"`
}

type planInfo struct {
	Plan        string `json:"plan"`
	Credits     *int   `json:"credits"`
	CheckoutURL string `json:"checkout_url"`
}

func (a *App) planCatalog() []planInfo {
	starter := a.cfg.StarterCredits
	pack := a.cfg.CreditPackCredits
	return []planInfo{
		{Plan: "starter", Credits: &starter, CheckoutURL: a.cfg.CheckoutStarterURL},
		{Plan: "unlimited", Credits: nil, CheckoutURL: a.cfg.CheckoutUnlimitedURL},
		{Plan: "credits", Credits: &pack, CheckoutURL: a.cfg.CheckoutCreditsURL},
	}
}

func (a *App) getMyEntitlement(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	state, err := a.entitlements.Current(c.Request.Context(), user.ID)
	if err != nil {
		log.Printf("entitlement lookup failed for user %s: %v", user.ID, err)
		writeError(c, http.StatusInternalServerError, "Failed to load entitlement")
		return
	}
	c.JSON(http.StatusOK, state)
}

func (a *App) grantEntitlement(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req grantRequest
	if !mustJSON(c, &req) {
		return
	}
	tier, ok := entitlement.ParsePlan(req.Plan)
	if !ok {
		writeError(c, http.StatusBadRequest, "Unknown plan")
		return
	}

	state, err := a.entitlements.Grant(c.Request.Context(), user.ID, tier)
	if err != nil {
		log.Printf("entitlement grant failed for user %s: %v", user.ID, err)
		writeError(c, http.StatusInternalServerError, "Failed to apply grant")
		return
	}
	c.JSON(http.StatusOK, state)
}

func (a *App) resetEntitlement(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	state, err := a.entitlements.Reset(c.Request.Context(), user.ID)
	if err != nil {
		log.Printf("entitlement reset failed for user %s: %v", user.ID, err)
		writeError(c, http.StatusInternalServerError, "Failed to reset entitlement")
		return
	}
	c.JSON(http.StatusOK, state)
}

func (a *App) listPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": a.planCatalog()})
}

// checkoutReturn handles the redirect back from the payment provider. The
// grant is applied server side and the browser is sent to the app root, so
// reloading the landing URL never re-applies a plan.
func (a *App) checkoutReturn(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		writeError(c, http.StatusUnauthorized, "Bearer token required")
		return
	}
	userID, err := a.userIDFromToken(tokenString)
	if err != nil {
		writeError(c, http.StatusUnauthorized, err.Error())
		return
	}

	if tier, ok := entitlement.ParsePlan(c.Query("plan")); ok {
		if _, err := a.entitlements.Grant(c.Request.Context(), userID, tier); err != nil {
			log.Printf("checkout grant failed for user %s: %v", userID, err)
			writeError(c, http.StatusInternalServerError, "Failed to apply grant")
			return
		}
	} else {
		log.Printf("checkout return with unknown plan %q for user %s", c.Query("plan"), userID)
	}

	c.Redirect(http.StatusSeeOther, "/")
}
