package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

/* ─── FoodData Central client ────────────────────────────────────────── */

const defaultFDCBaseURL = "https://api.nal.usda.gov/fdc/v1"

// fdcNutrientIDs maps our nutrient names to FoodData Central's stable
// nutrient identifiers.
var fdcNutrientIDs = map[string]int64{
	"calories": 1008,
	"protein":  1003,
	"carbs":    1005,
	"fat":      1004,
	"fiber":    1079,
	"sodium":   1093,
}

// fdcFood is the subset of an upstream food record we read.
type fdcFood struct {
	FdcID                    int64    `json:"fdcId"`
	Description              string   `json:"description"`
	BrandOwner               string   `json:"brandOwner"`
	BrandName                string   `json:"brandName"`
	DataType                 string   `json:"dataType"`
	ServingSize              *float64 `json:"servingSize"`
	ServingSizeUnit          string   `json:"servingSizeUnit"`
	HouseholdServingFullText string   `json:"householdServingFullText"`
	FoodNutrients            []struct {
		NutrientID int64   `json:"nutrientId"`
		Value      float64 `json:"value"`
	} `json:"foodNutrients"`
}

func (f *fdcFood) nutrient(name string) float64 {
	id := fdcNutrientIDs[name]
	for _, n := range f.FoodNutrients {
		if n.NutrientID == id {
			return n.Value
		}
	}
	return 0
}

// abridgedFood is the flattened shape we return to clients: one record
// per food with the six tracked nutrients as plain numbers.
type abridgedFood struct {
	FdcID                    int64   `json:"fdcId"`
	Description              string  `json:"description"`
	BrandOwner               *string `json:"brandOwner"`
	BrandName                *string `json:"brandName"`
	DataType                 string  `json:"dataType"`
	ServingSize              float64 `json:"servingSize"`
	ServingSizeUnit          string  `json:"servingSizeUnit"`
	HouseholdServingFullText *string `json:"householdServingFullText"`
	Calories                 float64 `json:"calories"`
	Protein                  float64 `json:"protein"`
	Carbs                    float64 `json:"carbs"`
	Fat                      float64 `json:"fat"`
	Fiber                    float64 `json:"fiber"`
	Sodium                   float64 `json:"sodium"`
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// abridge flattens an upstream record. Foods without serving data
// default to a 100 g reference serving, which is how non-branded FDC
// records report nutrients anyway.
func abridge(f fdcFood) abridgedFood {
	servingSize := 100.0
	if f.ServingSize != nil {
		servingSize = *f.ServingSize
	}
	servingUnit := f.ServingSizeUnit
	if servingUnit == "" {
		servingUnit = "g"
	}
	return abridgedFood{
		FdcID:                    f.FdcID,
		Description:              f.Description,
		BrandOwner:               nullableString(f.BrandOwner),
		BrandName:                nullableString(f.BrandName),
		DataType:                 f.DataType,
		ServingSize:              servingSize,
		ServingSizeUnit:          servingUnit,
		HouseholdServingFullText: nullableString(f.HouseholdServingFullText),
		Calories:                 f.nutrient("calories"),
		Protein:                  f.nutrient("protein"),
		Carbs:                    f.nutrient("carbs"),
		Fat:                      f.nutrient("fat"),
		Fiber:                    f.nutrient("fiber"),
		Sodium:                   f.nutrient("sodium"),
	}
}

// upstreamError carries the upstream status so the handler can
// distinguish rate limiting from other failures.
type upstreamError struct {
	status    int
	body      string
	rateLimit bool
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("food database returned status %d: %s", e.status, e.body)
}

var rateLimitPattern = regexp.MustCompile(`(?i)rate limit|too many requests`)

// checkUpstream converts a non-2xx upstream response into an
// upstreamError. FDC signals rate limiting either with a 429 or with a
// phrase in an error body, so both are checked.
func checkUpstream(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &upstreamError{
		status:    resp.StatusCode,
		body:      string(body),
		rateLimit: resp.StatusCode == http.StatusTooManyRequests || rateLimitPattern.Match(body),
	}
}

func (h *Handler) fdcBase() string {
	if h.fdcBaseURL != "" {
		return h.fdcBaseURL
	}
	return defaultFDCBaseURL
}

func (h *Handler) fdcKey() string {
	if h.fdcAPIKey != "" {
		return h.fdcAPIKey
	}
	// DEMO_KEY works without registration at a much lower rate limit.
	return "DEMO_KEY"
}

func (h *Handler) fdcDo(req *http.Request) ([]byte, error) {
	client := h.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkUpstream(resp, body); err != nil {
		return nil, err
	}
	return body, nil
}

// fdcSearch runs an upstream food search. pageSize is capped at 50,
// the upstream maximum.
func (h *Handler) fdcSearch(ctx context.Context, query string, pageSize int) ([]abridgedFood, int64, error) {
	if pageSize <= 0 {
		pageSize = 25
	}
	if pageSize > 50 {
		pageSize = 50
	}

	reqBody, err := json.Marshal(map[string]any{
		"query":    query,
		"pageSize": pageSize,
		"dataType": []string{"Branded", "Survey (FNDDS)", "Foundation", "SR Legacy"},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := h.fdcBase() + "/foods/search?api_key=" + url.QueryEscape(h.fdcKey())
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := h.fdcDo(req)
	if err != nil {
		return nil, 0, err
	}

	var result struct {
		Foods     []fdcFood `json:"foods"`
		TotalHits int64     `json:"totalHits"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, 0, fmt.Errorf("unmarshal response: %w", err)
	}

	foods := make([]abridgedFood, 0, len(result.Foods))
	for _, f := range result.Foods {
		foods = append(foods, abridge(f))
	}
	return foods, result.TotalHits, nil
}

// fdcFetch looks up one food record by its FDC id.
func (h *Handler) fdcFetch(ctx context.Context, fdcID int64) (abridgedFood, error) {
	endpoint := fmt.Sprintf("%s/food/%d?api_key=%s", h.fdcBase(), fdcID, url.QueryEscape(h.fdcKey()))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return abridgedFood{}, fmt.Errorf("create request: %w", err)
	}

	respBody, err := h.fdcDo(req)
	if err != nil {
		return abridgedFood{}, err
	}

	var food fdcFood
	if err := json.Unmarshal(respBody, &food); err != nil {
		return abridgedFood{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return abridge(food), nil
}

/* ─── Handlers ───────────────────────────────────────────────────────── */

// upstreamStatus maps client errors: 429 with a rateLimit marker when
// the upstream is rate limiting, 502 for everything else upstream.
func upstreamStatus(c *gin.Context, err error) {
	if ue, ok := err.(*upstreamError); ok && ue.rateLimit {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":     "food database rate limit exceeded, try again later or set an API key",
			"rateLimit": true,
		})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{
		"error":     "food database request failed",
		"rateLimit": false,
	})
}

// searchFoods proxies a food search to FoodData Central.
// GET /api/foods/search?q=.
func (h *Handler) searchFoods(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		query = strings.TrimSpace(c.Query("query"))
	}
	if query == "" {
		apiError(c, http.StatusBadRequest, "query (q) required")
		return
	}

	pageSize := 0
	if raw := c.Query("pageSize"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			pageSize = n
		}
	}

	foods, totalHits, err := h.fdcSearch(c, query, pageSize)
	if err != nil {
		upstreamStatus(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"foods": foods, "totalHits": totalHits})
}

// getFood proxies a single-food lookup to FoodData Central.
// GET /api/foods/:fdcId.
func (h *Handler) getFood(c *gin.Context) {
	fdcID, err := strconv.ParseInt(c.Param("fdcId"), 10, 64)
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid fdcId")
		return
	}

	food, err := h.fdcFetch(c, fdcID)
	if err != nil {
		upstreamStatus(c, err)
		return
	}

	c.JSON(http.StatusOK, food)
}
