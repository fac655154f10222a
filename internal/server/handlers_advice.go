package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jamesbond008/mungers-mind/internal/advisor"
	"github.com/jamesbond008/mungers-mind/internal/entitlement"
	"github.com/jamesbond008/mungers-mind/internal/transcript"
)

// advisorFallbackText is shown as the advisor's turn when the upstream model
// is unreachable or exhausts its retries. The turn still lands in the
// transcript so the exchange reads as a complete question/answer pair.
const advisorFallbackText = "Charlie's lattice is out of reach at the moment. Take a breath, collect your thoughts, and ask again shortly."

type adviceQueryRequest struct {
	Question string `json:"question"`
}

type adviceQueryResult struct {
	InquirerEntry transcript.Entry
	AdvisorEntry  transcript.Entry
	State         entitlement.State
	Degraded      bool
}

type adviceHTTPError struct {
	Status      int
	Detail      string
	Entitlement *entitlement.State
}

func (e *adviceHTTPError) Error() string {
	return e.Detail
}

func (a *App) adviceQuery(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req adviceQueryRequest
	if !mustJSON(c, &req) {
		return
	}

	result, err := a.runAdviceQuery(c.Request.Context(), user.ID, req.Question)
	if err != nil {
		a.writeAdviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question_entry": result.InquirerEntry,
		"advisor_entry":  result.AdvisorEntry,
		"entitlement":    result.State,
		"degraded":       result.Degraded,
	})
}

// runAdviceQuery drives one full question/answer cycle: admission checks, the
// inquirer turn, the upstream call, the advisor turn, and credit consumption.
// The inquirer entry is appended before the upstream call so the question is
// visible in the transcript while the answer is pending.
func (a *App) runAdviceQuery(ctx context.Context, userID, question string) (adviceQueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return adviceQueryResult{}, &adviceHTTPError{Status: http.StatusBadRequest, Detail: "Question must not be empty"}
	}

	if !a.beginQuery(userID) {
		return adviceQueryResult{}, &adviceHTTPError{Status: http.StatusConflict, Detail: "A question is already being considered"}
	}
	defer a.endQuery(userID)

	state, err := a.entitlements.Current(ctx, userID)
	if err != nil {
		log.Printf("entitlement lookup failed for user %s: %v", userID, err)
		return adviceQueryResult{}, &adviceHTTPError{Status: http.StatusInternalServerError, Detail: "Failed to load entitlement"}
	}
	if !state.Allowed() {
		return adviceQueryResult{}, &adviceHTTPError{
			Status:      http.StatusPaymentRequired,
			Detail:      "Out of analysis credits",
			Entitlement: &state,
		}
	}

	inquirerEntry := a.transcripts.Append(userID, transcript.RoleInquirer, question, nil)

	raw, advErr := a.advisor.Advise(ctx, question)
	if advErr != nil {
		log.Printf("advisor call failed for user %s: %v", userID, advErr)
		advisorEntry := a.transcripts.Append(userID, transcript.RoleAdvisor, advisorFallbackText, nil)
		if a.cfg.ChargeFailedQuery {
			if charged, consumeErr := a.entitlements.ConsumeOne(ctx, userID); consumeErr != nil {
				log.Printf("credit consume failed for user %s: %v", userID, consumeErr)
			} else {
				state = charged
			}
		}
		return adviceQueryResult{
			InquirerEntry: inquirerEntry,
			AdvisorEntry:  advisorEntry,
			State:         state,
			Degraded:      true,
		}, nil
	}

	payload := advisor.Normalize(raw)
	advisorEntry := a.transcripts.Append(userID, transcript.RoleAdvisor, payload.Summary, &payload)

	if charged, consumeErr := a.entitlements.ConsumeOne(ctx, userID); consumeErr != nil {
		// The answer already exists; losing it over an accounting write
		// would be worse than an undercounted credit.
		log.Printf("credit consume failed for user %s: %v", userID, consumeErr)
	} else {
		state = charged
	}

	return adviceQueryResult{
		InquirerEntry: inquirerEntry,
		AdvisorEntry:  advisorEntry,
		State:         state,
	}, nil
}

func (a *App) writeAdviceError(c *gin.Context, err error) {
	httpErr, ok := err.(*adviceHTTPError)
	if !ok {
		log.Printf("advice query failed: %v", err)
		writeError(c, http.StatusInternalServerError, "Failed to run advice query")
		return
	}
	if httpErr.Status == http.StatusPaymentRequired {
		c.AbortWithStatusJSON(httpErr.Status, gin.H{
			"detail":      httpErr.Detail,
			"entitlement": httpErr.Entitlement,
			"plans":       a.planCatalog(),
		})
		return
	}
	writeError(c, httpErr.Status, httpErr.Detail)
}
