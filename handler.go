package main

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler holds shared dependencies (store, food-database config) for
// all route handlers.
type Handler struct {
	store      Store
	fdcAPIKey  string
	fdcBaseURL string // Base URL for the FoodData Central API (overridable for tests)
	httpClient *http.Client
}

/* ─── Shared helpers ──────────────────────────────────────────────────── */

// apiError returns a consistent JSON error response: {"error": "message"}.
func apiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// validDate reports whether s is a YYYY-MM-DD calendar date.
func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// pathID parses the :id path param. ok=false means the handler should
// treat the request as referencing a nonexistent resource.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// requestID tags every request with an X-Request-ID, generating one
// when the client didn't send one. The id is echoed on the response so
// log lines and client reports can be correlated.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// requestLogger emits one structured line per request, carrying the
// request_id set by the requestID middleware so responses and log
// lines correlate.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

/* ─── Routes ──────────────────────────────────────────────────────────── */

// registerRoutes registers all API routes on the router.
func (h *Handler) registerRoutes(router *gin.Engine) {
	api := router.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api.GET("/meals", h.getMeals)
	api.POST("/meals", h.createMeal)
	api.GET("/meals/:id", h.getMeal)
	api.PATCH("/meals/:id", h.updateMeal)
	api.DELETE("/meals/:id", h.deleteMeal)
	api.POST("/meals/:id/ingredients", h.createMealIngredient)
	api.DELETE("/meals/:id/ingredients/:ingredientId", h.deleteMealIngredient)

	api.GET("/totals/:date", h.getDayTotals)
	api.GET("/trends/macros", h.getMacroTrend)
	api.GET("/trends/weight", h.getWeightTrend)

	api.GET("/weight", h.getWeightLog)
	api.GET("/weight/:date", h.getWeightEntry)
	api.POST("/weight", h.upsertWeightEntry)
	api.DELETE("/weight/:date", h.deleteWeightEntry)

	api.GET("/saved-meals", h.getSavedMeals)
	api.GET("/saved-meals/:id", h.getSavedMeal)
	api.POST("/saved-meals", h.createSavedMeal)
	api.POST("/saved-meals/:id/add-to-day", h.addSavedMealToDay)
	api.DELETE("/saved-meals/:id", h.deleteSavedMeal)

	api.GET("/saved-ingredients", h.getSavedIngredients)
	api.POST("/saved-ingredients", h.createSavedIngredient)
	api.DELETE("/saved-ingredients/:id", h.deleteSavedIngredient)

	api.GET("/exercises", h.getExercises)
	api.POST("/exercises", h.createExercise)
	api.PATCH("/exercises/:id", h.updateExercise)
	api.DELETE("/exercises/:id", h.deleteExercise)

	api.GET("/routines", h.getRoutines)
	api.GET("/routines/:id", h.getRoutine)
	api.POST("/routines", h.createRoutine)
	api.PATCH("/routines/:id", h.updateRoutine)
	api.DELETE("/routines/:id", h.deleteRoutine)

	api.GET("/scheduled-workouts", h.getScheduledWorkouts)
	api.POST("/scheduled-workouts", h.createScheduledWorkout)
	api.POST("/scheduled-workouts/from-routine", h.scheduleRoutine)
	api.DELETE("/scheduled-workouts/:id", h.deleteScheduledWorkout)

	api.GET("/settings", h.getSettings)
	api.PUT("/settings", h.updateSettings)

	api.GET("/foods/search", h.searchFoods)
	api.GET("/foods/:fdcId", h.getFood)
}
