package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/negmarket/internal/i18n"
	"github.com/celerix-dev/negmarket/internal/market"
	"github.com/celerix-dev/negmarket/internal/notify"
	"github.com/celerix-dev/negmarket/pkg/engine"
	"github.com/celerix-dev/negmarket/pkg/schema"
	"github.com/celerix-dev/negmarket/pkg/sdk"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *Handler) {
	gin.SetMode(gin.TestMode)

	catalog := []schema.Listing{
		{ID: "exp_001", Title: "Mpro Inhibitor Screen", Category: schema.CategoryAntiviral, FailureStage: schema.StageLeadOptimization, Price: 15000, Downloads: 12, ConfidenceScore: 0.9, Featured: true, Tags: []string{"protease_inhibitor"}},
		{ID: "exp_002", Title: "Cathode Fade", Category: schema.CategoryBattery, FailureStage: schema.StagePreclinical, Price: 40000, Downloads: 80, ConfidenceScore: 0.5},
		{ID: "exp_003", Title: "Off-target CRISPR edits", Category: schema.CategoryCRISPR, FailureStage: schema.StageTargetValidation, Price: 8000, Downloads: 3, ConfidenceScore: 0.7},
	}
	store := engine.NewMemStore(catalog, schema.Account{ID: engine.DefaultAccount, Credits: 25000})
	m := sdk.NewEmbedded(market.New(store, notify.NewEmitter(0), market.WithUploadDelay(0)))
	t.Cleanup(func() { m.Close() })

	h := &Handler{Market: m, I18n: i18n.New(), PriceCeiling: 50000}
	r := gin.Default()
	h.Register(r.Group("/api"))

	return r, h
}

func do(r *gin.Engine, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func ids(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	var list []schema.Listing
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("Decode listings: %v", err)
	}
	out := make([]string, len(list))
	for i, l := range list {
		out[i] = l.ID
	}
	return out
}

func TestSearch(t *testing.T) {
	r, _ := setupTestRouter(t)

	cases := []struct {
		path string
		want string
	}{
		{"/api/listings", "exp_001,exp_002,exp_003"},
		{"/api/listings?q=PROTEASE", "exp_001"},
		{"/api/listings?category=Battery+Materials", "exp_002"},
		{"/api/listings?category=All&stage=All", "exp_001,exp_002,exp_003"},
		{"/api/listings?max_price=15000", "exp_001,exp_003"},
		{"/api/listings?max_price=0", ""},
		{"/api/listings?sort=price_asc", "exp_003,exp_001,exp_002"},
		{"/api/listings?sort=downloads", "exp_002,exp_001,exp_003"},
		{"/api/listings?q=nothing-matches", ""},
	}
	for _, tc := range cases {
		w := do(r, "GET", tc.path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", tc.path, w.Code)
			continue
		}
		if got := strings.Join(ids(t, w), ","); got != tc.want {
			t.Errorf("%s: expected [%s], got [%s]", tc.path, tc.want, got)
		}
	}
}

func TestSearch_BadParams(t *testing.T) {
	r, _ := setupTestRouter(t)

	for _, path := range []string{"/api/listings?sort=random", "/api/listings?max_price=cheap"} {
		if w := do(r, "GET", path, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", path, w.Code)
		}
	}
}

func TestFeaturedAndFacets(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := do(r, "GET", "/api/listings/featured", nil)
	if got := strings.Join(ids(t, w), ","); got != "exp_001" {
		t.Errorf("Expected [exp_001], got [%s]", got)
	}

	w = do(r, "GET", "/api/facets", nil)
	var facets struct {
		Categories []string `json:"categories"`
		Stages     []string `json:"stages"`
	}
	json.Unmarshal(w.Body.Bytes(), &facets)
	if len(facets.Categories) == 0 || facets.Categories[0] != "All" {
		t.Errorf("Expected All first, got %v", facets.Categories)
	}
	if len(facets.Stages) == 0 || facets.Stages[0] != "All" {
		t.Errorf("Expected All first, got %v", facets.Stages)
	}
}

func TestGetListing(t *testing.T) {
	r, _ := setupTestRouter(t)

	if w := do(r, "GET", "/api/listings/exp_002", nil); w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w := do(r, "GET", "/api/listings/exp_999", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestPurchaseFlow(t *testing.T) {
	r, _ := setupTestRouter(t)
	path := "/api/accounts/" + engine.DefaultAccount + "/purchases"

	w := do(r, "POST", path, map[string]string{"listing_id": "exp_001"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var res schema.PurchaseResult
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.Account.Credits != 10000 || res.Listing.Downloads != 13 {
		t.Errorf("Unexpected purchase result: credits %d, downloads %d", res.Account.Credits, res.Listing.Downloads)
	}

	// Notification in Turkish
	w = do(r, "GET", "/api/notification?lang=tr", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var n map[string]any
	json.Unmarshal(w.Body.Bytes(), &n)
	if n["message"] != `Başarıyla satın alındı "Mpro Inhibitor Screen"` {
		t.Errorf("Unexpected message %v", n["message"])
	}

	// Insufficient credits
	w = do(r, "POST", path, map[string]string{"listing_id": "exp_002"}, "Accept-Language", "en-US,en;q=0.8")
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("Expected status 402, got %d", w.Code)
	}
	var denial map[string]any
	json.Unmarshal(w.Body.Bytes(), &denial)
	if denial["code"] != sdk.CodeInsufficientCredits || denial["shortfall"] != float64(30000) {
		t.Errorf("Unexpected denial %v", denial)
	}
	if denial["message"] != "Insufficient credits. You need 30000 more credits." {
		t.Errorf("Unexpected denial message %v", denial["message"])
	}

	w = do(r, "GET", "/api/accounts/"+engine.DefaultAccount+"/summary", nil)
	var sum schema.AccountSummary
	json.Unmarshal(w.Body.Bytes(), &sum)
	if sum.Balance != 10000 || sum.Purchases != 1 || sum.TotalSpent != 15000 {
		t.Errorf("Unexpected summary %+v", sum)
	}
}

func TestPurchase_Errors(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := do(r, "POST", "/api/accounts/"+engine.DefaultAccount+"/purchases", map[string]string{"listing_id": "exp_404"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	w = do(r, "POST", "/api/accounts/nobody/purchases", map[string]string{"listing_id": "exp_001"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	w = do(r, "POST", "/api/accounts/"+engine.DefaultAccount+"/purchases", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestUpload(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := do(r, "POST", "/api/accounts/"+engine.DefaultAccount+"/uploads", schema.UploadDraft{Title: "Dead-end ligand", Anonymize: true})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var out schema.UploadOutcome
	json.Unmarshal(w.Body.Bytes(), &out)
	if !strings.HasPrefix(out.Listing.ID, market.PendingPrefix) || out.NextView != schema.ViewDashboard {
		t.Errorf("Unexpected outcome %+v", out)
	}

	w = do(r, "GET", "/api/notification", nil)
	var n map[string]any
	json.Unmarshal(w.Body.Bytes(), &n)
	if n["message"] != "Experiment submitted successfully for review!" {
		t.Errorf("Unexpected message %v", n["message"])
	}

	w = do(r, "POST", "/api/accounts/nobody/uploads", schema.UploadDraft{})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestNotification_IdleIsNoContent(t *testing.T) {
	r, _ := setupTestRouter(t)

	if w := do(r, "GET", "/api/notification", nil); w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.GET("/api/listings", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest(http.MethodOptions, "/api/listings", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Missing CORS header")
	}
}
