package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// setupFoodsTest creates a router whose food handlers talk to a mock
// upstream. setMock swaps the canned response between requests. No DB
// is needed for the proxy endpoints.
func setupFoodsTest(t *testing.T) (*gin.Engine, func(status int, body any)) {
	t.Helper()
	var mockStatus int
	var mockBody any

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(mockStatus)
		json.NewEncoder(w).Encode(mockBody)
	}))
	t.Cleanup(upstream.Close)

	gin.SetMode(gin.TestMode)
	h := &Handler{fdcBaseURL: upstream.URL, httpClient: upstream.Client()}
	router := gin.New()
	router.GET("/api/foods/search", h.searchFoods)
	router.GET("/api/foods/:fdcId", h.getFood)

	return router, func(status int, body any) {
		mockStatus = status
		mockBody = body
	}
}

// brandedFood builds an upstream record with nutrients in FDC's
// nutrientId/value list form.
func brandedFood(fdcID int64, description string) map[string]any {
	return map[string]any{
		"fdcId":           fdcID,
		"description":     description,
		"dataType":        "Branded",
		"brandOwner":      "Acme Foods",
		"servingSize":     55,
		"servingSizeUnit": "g",
		"foodNutrients": []map[string]any{
			{"nutrientId": 1008, "value": 250},
			{"nutrientId": 1003, "value": 12},
			{"nutrientId": 1005, "value": 30},
			{"nutrientId": 1004, "value": 9},
			{"nutrientId": 1079, "value": 2},
			{"nutrientId": 1093, "value": 480},
		},
	}
}

func TestSearchFoods_MapsAbridgedRecords(t *testing.T) {
	router, setMock := setupFoodsTest(t)
	setMock(http.StatusOK, map[string]any{
		"totalHits": 1,
		"foods":     []map[string]any{brandedFood(12345, "Granola Bar")},
	})

	w := doRequest(router, "GET", "/api/foods/search?q=granola", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Foods     []abridgedFood `json:"foods"`
		TotalHits int64          `json:"totalHits"`
	}
	decodeBody(t, w, &resp)

	if resp.TotalHits != 1 || len(resp.Foods) != 1 {
		t.Fatalf("resp = %+v, want one food", resp)
	}
	food := resp.Foods[0]
	if food.FdcID != 12345 || food.Description != "Granola Bar" {
		t.Errorf("identity = %+v", food)
	}
	if food.Calories != 250 || food.Protein != 12 || food.Sodium != 480 {
		t.Errorf("nutrients = %+v, want flattened by nutrient id", food)
	}
	if food.ServingSize != 55 || food.ServingSizeUnit != "g" {
		t.Errorf("serving = %v %q, want 55 g", food.ServingSize, food.ServingSizeUnit)
	}
	if food.BrandOwner == nil || *food.BrandOwner != "Acme Foods" {
		t.Errorf("brandOwner = %v, want Acme Foods", food.BrandOwner)
	}
	if food.BrandName != nil {
		t.Errorf("brandName = %v, want null when absent", *food.BrandName)
	}
}

func TestSearchFoods_RequiresQuery(t *testing.T) {
	router, _ := setupFoodsTest(t)

	w := doRequest(router, "GET", "/api/foods/search", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSearchFoods_RateLimitPassesThrough(t *testing.T) {
	router, setMock := setupFoodsTest(t)
	setMock(http.StatusTooManyRequests, map[string]any{"error": "OVER_RATE_LIMIT"})

	w := doRequest(router, "GET", "/api/foods/search?q=oats", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	var resp struct {
		RateLimit bool `json:"rateLimit"`
	}
	decodeBody(t, w, &resp)
	if !resp.RateLimit {
		t.Error("expected rateLimit true in response body")
	}
}

func TestSearchFoods_UpstreamErrorBecomesBadGateway(t *testing.T) {
	router, setMock := setupFoodsTest(t)
	setMock(http.StatusInternalServerError, map[string]any{"error": "upstream exploded"})

	w := doRequest(router, "GET", "/api/foods/search?q=oats", "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestGetFood_MapsDefaults(t *testing.T) {
	router, setMock := setupFoodsTest(t)
	// A Foundation food has no serving fields at all.
	setMock(http.StatusOK, map[string]any{
		"fdcId":       321,
		"description": "Carrots, raw",
		"dataType":    "Foundation",
		"foodNutrients": []map[string]any{
			{"nutrientId": 1008, "value": 41},
		},
	})

	w := doRequest(router, "GET", "/api/foods/321", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var food abridgedFood
	decodeBody(t, w, &food)
	if food.ServingSize != 100 || food.ServingSizeUnit != "g" {
		t.Errorf("serving = %v %q, want 100 g default", food.ServingSize, food.ServingSizeUnit)
	}
	if food.Calories != 41 || food.Protein != 0 {
		t.Errorf("nutrients = %+v, missing ids default to 0", food)
	}
}

func TestGetFood_InvalidID(t *testing.T) {
	router, _ := setupFoodsTest(t)

	w := doRequest(router, "GET", "/api/foods/not-a-number", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCheckUpstream_RateLimitPhrase(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusForbidden}
	err := checkUpstream(resp, []byte(`{"message":"API rate limit exceeded for key"}`))
	ue, ok := err.(*upstreamError)
	if !ok {
		t.Fatalf("expected upstreamError, got %T", err)
	}
	if !ue.rateLimit {
		t.Error("expected rateLimit for body phrase match")
	}
}
