package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jamesbond008/mungers-mind/internal/advisor"
	"github.com/jamesbond008/mungers-mind/internal/config"
	"github.com/jamesbond008/mungers-mind/internal/kv"
)

func testConfig() config.Config {
	return config.Config{
		AppEnv:             "test",
		AppName:            "Mungers Mind API",
		APIPrefix:          "/api/v1",
		AppPort:            "8000",
		CORSAllowOrigins:   []string{"http://localhost:5173"},
		JWTSecret:          "unit-test-secret-0123456789abcdef",
		JWTAlgorithm:       "HS256",
		GuestTokenTTLHours: 1,
		AdvisorUseMock:     true,
		TrialCredits:       1,
		StarterCredits:     10,
		CreditPackCredits:  20,

		CheckoutStarterURL:   "https://checkout.example/starter",
		CheckoutUnlimitedURL: "https://checkout.example/unlimited",
		CheckoutCreditsURL:   "https://checkout.example/credits",
	}
}

func newTestApp(t *testing.T, cfg config.Config, client advisor.Client) (*App, http.Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if client == nil {
		client = advisor.MockClient{}
	}
	app := New(cfg, kv.NewMemory(), client)
	return app, app.Router()
}

func signToken(t *testing.T, cfg config.Config, userID string) string {
	t.Helper()
	now := time.Now().UTC()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("token signing failed: %v", err)
	}
	return token
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("request encode failed: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response decode failed: %v (body: %s)", err, recorder.Body.String())
	}
	return payload
}

func TestHealth(t *testing.T) {
	_, handler := newTestApp(t, testConfig(), nil)
	recorder := doRequest(t, handler, http.MethodGet, "/health", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if decodeBody(t, recorder)["status"] != "ok" {
		t.Fatalf("unexpected body: %s", recorder.Body.String())
	}
}

func TestGuestTokenWorksOnProtectedRoutes(t *testing.T) {
	_, handler := newTestApp(t, testConfig(), nil)

	recorder := doRequest(t, handler, http.MethodPost, "/api/v1/auth/guest", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("guest token issuance failed: %d %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("missing token in response: %s", recorder.Body.String())
	}

	recorder = doRequest(t, handler, http.MethodGet, "/api/v1/entitlement/me", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("guest token rejected: %d %s", recorder.Code, recorder.Body.String())
	}
	state := decodeBody(t, recorder)
	if state["tier"] != "trial" {
		t.Fatalf("expected trial tier for fresh guest, got %s", recorder.Body.String())
	}
}

func TestAuthRejections(t *testing.T) {
	cfg := testConfig()
	_, handler := newTestApp(t, cfg, nil)

	recorder := doRequest(t, handler, http.MethodGet, "/api/v1/transcript", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", recorder.Code)
	}

	recorder = doRequest(t, handler, http.MethodGet, "/api/v1/transcript", "not-a-jwt", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", recorder.Code)
	}

	otherSecret := cfg
	otherSecret.JWTSecret = "a-different-secret-0123456789abcd"
	forged := signToken(t, otherSecret, "intruder")
	recorder = doRequest(t, handler, http.MethodGet, "/api/v1/transcript", forged, nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("forged token: expected 401, got %d", recorder.Code)
	}
}

func TestAdviceQueryConsumesTrialCreditThenDenies(t *testing.T) {
	cfg := testConfig()
	app, handler := newTestApp(t, cfg, nil)
	token := signToken(t, cfg, "u1")

	recorder := doRequest(t, handler, http.MethodPost, "/api/v1/advice/query", token, gin.H{"question": "Should I buy the dip?"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("first query: expected 200, got %d %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)

	questionEntry, _ := body["question_entry"].(map[string]any)
	advisorEntry, _ := body["advisor_entry"].(map[string]any)
	if questionEntry["role"] != "inquirer" || advisorEntry["role"] != "advisor" {
		t.Fatalf("unexpected entry roles: %s", recorder.Body.String())
	}
	if advisorEntry["payload"] == nil {
		t.Fatal("advisor entry must carry the normalized payload")
	}
	entitlementBody, _ := body["entitlement"].(map[string]any)
	if entitlementBody["creditsRemaining"] != float64(0) {
		t.Fatalf("expected 0 credits after trial query, got %v", entitlementBody["creditsRemaining"])
	}
	if app.transcripts.Len("u1") != 2 {
		t.Fatalf("expected 2 transcript entries, got %d", app.transcripts.Len("u1"))
	}

	recorder = doRequest(t, handler, http.MethodPost, "/api/v1/advice/query", token, gin.H{"question": "One more?"})
	if recorder.Code != http.StatusPaymentRequired {
		t.Fatalf("second query: expected 402, got %d %s", recorder.Code, recorder.Body.String())
	}
	denial := decodeBody(t, recorder)
	if denial["detail"] != "Out of analysis credits" {
		t.Fatalf("unexpected denial detail: %s", recorder.Body.String())
	}
	plans, _ := denial["plans"].([]any)
	if len(plans) != 3 {
		t.Fatalf("denial must carry the plan catalog, got %s", recorder.Body.String())
	}
	if app.transcripts.Len("u1") != 2 {
		t.Fatalf("denied query must not touch the transcript, got %d entries", app.transcripts.Len("u1"))
	}
}

func TestAdviceQueryEmptyQuestion(t *testing.T) {
	cfg := testConfig()
	app, handler := newTestApp(t, cfg, nil)
	token := signToken(t, cfg, "u1")

	for _, question := range []string{"", "   "} {
		recorder := doRequest(t, handler, http.MethodPost, "/api/v1/advice/query", token, gin.H{"question": question})
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("question %q: expected 400, got %d", question, recorder.Code)
		}
	}
	if app.transcripts.Len("u1") != 0 {
		t.Fatalf("rejected queries must not touch the transcript, got %d entries", app.transcripts.Len("u1"))
	}
}

func TestAdviceQueryUpstreamFailure(t *testing.T) {
	cfg := testConfig()
	app, handler := newTestApp(t, cfg, advisor.MockClient{Err: errors.New("model unavailable")})
	token := signToken(t, cfg, "u1")

	recorder := doRequest(t, handler, http.MethodPost, "/api/v1/advice/query", token, gin.H{"question": "Anyone home?"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	if body["degraded"] != true {
		t.Fatalf("expected degraded response: %s", recorder.Body.String())
	}
	advisorEntry, _ := body["advisor_entry"].(map[string]any)
	if advisorEntry["text"] != advisorFallbackText {
		t.Fatalf("expected fallback text, got %v", advisorEntry["text"])
	}
	entitlementBody, _ := body["entitlement"].(map[string]any)
	if entitlementBody["creditsRemaining"] != float64(1) {
		t.Fatalf("failed query must not consume a credit, got %v", entitlementBody["creditsRemaining"])
	}
	if app.transcripts.Len("u1") != 2 {
		t.Fatalf("failure still records the exchange, got %d entries", app.transcripts.Len("u1"))
	}
}

func TestAdviceQueryUpstreamFailureChargedWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.ChargeFailedQuery = true
	_, handler := newTestApp(t, cfg, advisor.MockClient{Err: errors.New("model unavailable")})
	token := signToken(t, cfg, "u1")

	recorder := doRequest(t, handler, http.MethodPost, "/api/v1/advice/query", token, gin.H{"question": "Anyone home?"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	entitlementBody, _ := body["entitlement"].(map[string]any)
	if entitlementBody["creditsRemaining"] != float64(0) {
		t.Fatalf("expected credit charged, got %v", entitlementBody["creditsRemaining"])
	}
}

// blockingClient holds the upstream call open until released, so tests can
// observe the in-flight state.
type blockingClient struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingClient) Advise(ctx context.Context, _ string) (string, error) {
	close(b.started)
	select {
	case <-b.release:
		return `{"advice": "done waiting", "models": []}`, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestAdviceQuerySingleFlight(t *testing.T) {
	cfg := testConfig()
	client := &blockingClient{started: make(chan struct{}), release: make(chan struct{})}
	_, handler := newTestApp(t, cfg, client)
	token := signToken(t, cfg, "u1")

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		firstDone <- doRequest(t, handler, http.MethodPost, "/api/v1/advice/query", token, gin.H{"question": "Slow one"})
	}()

	<-client.started
	recorder := doRequest(t, handler, http.MethodPost, "/api/v1/advice/query", token, gin.H{"question": "Impatient one"})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("concurrent query: expected 409, got %d %s", recorder.Code, recorder.Body.String())
	}

	close(client.release)
	first := <-firstDone
	if first.Code != http.StatusOK {
		t.Fatalf("first query: expected 200, got %d %s", first.Code, first.Body.String())
	}

	// The slot is free again once the first cycle settles.
	recorder = doRequest(t, handler, http.MethodGet, "/api/v1/entitlement/me", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestGrantAndUnlimitedQueries(t *testing.T) {
	cfg := testConfig()
	_, handler := newTestApp(t, cfg, nil)
	token := signToken(t, cfg, "u1")

	recorder := doRequest(t, handler, http.MethodPost, "/api/v1/entitlement/grant", token, gin.H{"plan": "pro"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("grant failed: %d %s", recorder.Code, recorder.Body.String())
	}
	state := decodeBody(t, recorder)
	if state["tier"] != "unlimited" {
		t.Fatalf("expected unlimited tier, got %s", recorder.Body.String())
	}

	for i := 0; i < 3; i++ {
		recorder = doRequest(t, handler, http.MethodPost, "/api/v1/advice/query", token, gin.H{"question": fmt.Sprintf("Question %d", i)})
		if recorder.Code != http.StatusOK {
			t.Fatalf("unlimited query %d: expected 200, got %d", i, recorder.Code)
		}
		body := decodeBody(t, recorder)
		entitlementBody, _ := body["entitlement"].(map[string]any)
		if entitlementBody["tier"] != "unlimited" {
			t.Fatalf("tier must stay unlimited, got %s", recorder.Body.String())
		}
	}
}

func TestGrantUnknownPlan(t *testing.T) {
	cfg := testConfig()
	_, handler := newTestApp(t, cfg, nil)
	token := signToken(t, cfg, "u1")

	recorder := doRequest(t, handler, http.MethodPost, "/api/v1/entitlement/grant", token, gin.H{"plan": "gold"})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestResetEntitlement(t *testing.T) {
	cfg := testConfig()
	_, handler := newTestApp(t, cfg, nil)
	token := signToken(t, cfg, "u1")

	doRequest(t, handler, http.MethodPost, "/api/v1/entitlement/grant", token, gin.H{"plan": "starter"})
	recorder := doRequest(t, handler, http.MethodPost, "/api/v1/entitlement/reset", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("reset failed: %d %s", recorder.Code, recorder.Body.String())
	}
	state := decodeBody(t, recorder)
	if state["tier"] != "trial" || state["creditsRemaining"] != float64(1) {
		t.Fatalf("expected trial state after reset, got %s", recorder.Body.String())
	}
}

func TestCheckoutReturn(t *testing.T) {
	cfg := testConfig()
	_, handler := newTestApp(t, cfg, nil)
	token := signToken(t, cfg, "u1")

	recorder := doRequest(t, handler, http.MethodGet, "/api/v1/checkout/return?plan=starter&token="+token, "", nil)
	if recorder.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d %s", recorder.Code, recorder.Body.String())
	}
	if location := recorder.Header().Get("Location"); location != "/" {
		t.Fatalf("expected redirect to /, got %q", location)
	}

	recorder = doRequest(t, handler, http.MethodGet, "/api/v1/entitlement/me", token, nil)
	state := decodeBody(t, recorder)
	if state["tier"] != "starter" || state["creditsRemaining"] != float64(10) {
		t.Fatalf("checkout grant not applied: %s", recorder.Body.String())
	}
}

func TestCheckoutReturnRejectsMissingToken(t *testing.T) {
	cfg := testConfig()
	_, handler := newTestApp(t, cfg, nil)

	recorder := doRequest(t, handler, http.MethodGet, "/api/v1/checkout/return?plan=starter", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestCheckoutReturnUnknownPlanStillRedirects(t *testing.T) {
	cfg := testConfig()
	_, handler := newTestApp(t, cfg, nil)
	token := signToken(t, cfg, "u1")

	recorder := doRequest(t, handler, http.MethodGet, "/api/v1/checkout/return?plan=gold&token="+token, "", nil)
	if recorder.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", recorder.Code)
	}

	recorder = doRequest(t, handler, http.MethodGet, "/api/v1/entitlement/me", token, nil)
	state := decodeBody(t, recorder)
	if state["tier"] != "trial" {
		t.Fatalf("unknown plan must not grant anything: %s", recorder.Body.String())
	}
}

func TestTranscriptEndpoints(t *testing.T) {
	cfg := testConfig()
	_, handler := newTestApp(t, cfg, nil)
	token := signToken(t, cfg, "u1")

	doRequest(t, handler, http.MethodPost, "/api/v1/advice/query", token, gin.H{"question": "What about moats?"})

	recorder := doRequest(t, handler, http.MethodGet, "/api/v1/transcript", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("transcript list failed: %d", recorder.Code)
	}
	body := decodeBody(t, recorder)
	entries, _ := body["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first, _ := entries[0].(map[string]any)
	entryID, _ := first["id"].(string)
	recorder = doRequest(t, handler, http.MethodGet, "/api/v1/transcript/"+entryID, token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("transcript get failed: %d", recorder.Code)
	}

	recorder = doRequest(t, handler, http.MethodGet, "/api/v1/transcript/no-such-id", token, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}

	otherToken := signToken(t, cfg, "u2")
	recorder = doRequest(t, handler, http.MethodGet, "/api/v1/transcript/"+entryID, otherToken, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("foreign entry must 404, got %d", recorder.Code)
	}
}

func TestExportTranscriptCSV(t *testing.T) {
	cfg := testConfig()
	_, handler := newTestApp(t, cfg, nil)
	token := signToken(t, cfg, "u1")

	doRequest(t, handler, http.MethodPost, "/api/v1/advice/query", token, gin.H{"question": "Export me"})

	recorder := doRequest(t, handler, http.MethodGet, "/api/v1/transcript/export", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("export failed: %d %s", recorder.Code, recorder.Body.String())
	}
	if contentType := recorder.Header().Get("Content-Type"); !strings.HasPrefix(contentType, "text/csv") {
		t.Fatalf("expected CSV content type, got %q", contentType)
	}
	if disposition := recorder.Header().Get("Content-Disposition"); !strings.Contains(disposition, "attachment") {
		t.Fatalf("expected attachment disposition, got %q", disposition)
	}

	lines := strings.Split(strings.TrimSpace(recorder.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines: %s", len(lines), recorder.Body.String())
	}
	if !strings.HasPrefix(lines[0], "entry_id,role,text,models,created_at_utc") {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[2], "Incentives; Inversion") {
		t.Fatalf("advisor row should list cited models: %q", lines[2])
	}
}

func TestListModels(t *testing.T) {
	cfg := testConfig()
	_, handler := newTestApp(t, cfg, nil)
	token := signToken(t, cfg, "u1")

	recorder := doRequest(t, handler, http.MethodGet, "/api/v1/models?category=Psychology", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("models list failed: %d", recorder.Code)
	}
	body := decodeBody(t, recorder)
	models, _ := body["models"].([]any)
	if len(models) == 0 {
		t.Fatal("expected Psychology models")
	}
	for _, raw := range models {
		model, _ := raw.(map[string]any)
		if model["category"] != "Psychology" {
			t.Fatalf("wrong category in result: %v", model)
		}
	}
	if categories, _ := body["categories"].([]any); len(categories) == 0 {
		t.Fatal("expected category list")
	}
}

func TestListPlans(t *testing.T) {
	cfg := testConfig()
	_, handler := newTestApp(t, cfg, nil)
	token := signToken(t, cfg, "u1")

	recorder := doRequest(t, handler, http.MethodGet, "/api/v1/plans", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("plans list failed: %d", recorder.Code)
	}
	body := decodeBody(t, recorder)
	plans, _ := body["plans"].([]any)
	if len(plans) != 3 {
		t.Fatalf("expected 3 plans, got %d", len(plans))
	}
	unlimited, _ := plans[1].(map[string]any)
	if unlimited["plan"] != "unlimited" || unlimited["credits"] != nil {
		t.Fatalf("unlimited plan must carry null credits: %v", unlimited)
	}
	if unlimited["checkout_url"] != "https://checkout.example/unlimited" {
		t.Fatalf("unexpected checkout URL: %v", unlimited)
	}
}
