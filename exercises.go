package main

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const exerciseColumns = `id, name, category, default_reps, created_at`

// exerciseCategories is the fixed muscle-group vocabulary. Scheduling
// accepts free-form categories for one-off entries; the catalog does
// not.
var exerciseCategories = map[string]bool{
	"chest":     true,
	"biceps":    true,
	"triceps":   true,
	"back":      true,
	"abs":       true,
	"shoulders": true,
	"legs":      true,
}

func scanExercise(row interface{ Scan(...any) error }) (exercise, error) {
	var e exercise
	err := row.Scan(&e.ID, &e.Name, &e.Category, &e.DefaultReps, &e.CreatedAt)
	return e, err
}

// getExercises lists the exercise catalog grouped by muscle and sorted
// by name within each group. GET /api/exercises.
func (h *Handler) getExercises(c *gin.Context) {
	rows, err := h.store.Query(c,
		`SELECT `+exerciseColumns+` FROM exercises ORDER BY category, name, id`)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch exercises")
		return
	}
	defer rows.Close()

	exercises := []exercise{}
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			apiError(c, http.StatusInternalServerError, "failed to fetch exercises")
			return
		}
		exercises = append(exercises, e)
	}
	if err := rows.Err(); err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch exercises")
		return
	}

	c.JSON(http.StatusOK, exercises)
}

// createExercise adds a catalog entry. POST /api/exercises.
func (h *Handler) createExercise(c *gin.Context) {
	var body struct {
		Name        string `json:"name"`
		Category    string `json:"category"`
		DefaultReps *int64 `json:"default_reps"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		apiError(c, http.StatusBadRequest, "name required")
		return
	}
	if !exerciseCategories[body.Category] {
		apiError(c, http.StatusBadRequest, "invalid category")
		return
	}

	res, err := h.store.Exec(c,
		`INSERT INTO exercises (name, category, default_reps) VALUES (?, ?, ?)`,
		body.Name, body.Category, body.DefaultReps)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to create exercise")
		return
	}

	row := h.store.QueryRow(c,
		`SELECT `+exerciseColumns+` FROM exercises WHERE id = ?`, res.LastInsertID)
	created, err := scanExercise(row)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to create exercise")
		return
	}

	c.JSON(http.StatusCreated, created)
}

// updateExercise patches name, category and/or default_reps. Fields
// absent from the body keep their stored value.
// PATCH /api/exercises/:id.
func (h *Handler) updateExercise(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		apiError(c, http.StatusNotFound, "exercise not found")
		return
	}

	var body struct {
		Name        *string `json:"name"`
		Category    *string `json:"category"`
		DefaultReps *int64  `json:"default_reps"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	row := h.store.QueryRow(c,
		`SELECT `+exerciseColumns+` FROM exercises WHERE id = ?`, id)
	current, err := scanExercise(row)
	if errors.Is(err, sql.ErrNoRows) {
		apiError(c, http.StatusNotFound, "exercise not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch exercise")
		return
	}

	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			apiError(c, http.StatusBadRequest, "name required")
			return
		}
		current.Name = name
	}
	if body.Category != nil {
		if !exerciseCategories[*body.Category] {
			apiError(c, http.StatusBadRequest, "invalid category")
			return
		}
		current.Category = *body.Category
	}
	if body.DefaultReps != nil {
		current.DefaultReps = body.DefaultReps
	}

	_, err = h.store.Exec(c,
		`UPDATE exercises SET name = ?, category = ?, default_reps = ? WHERE id = ?`,
		current.Name, current.Category, current.DefaultReps, id)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to update exercise")
		return
	}

	c.JSON(http.StatusOK, current)
}

// deleteExercise removes a catalog entry and any routine slots that
// reference it. Scheduled workouts keep their snapshot of the name.
// DELETE /api/exercises/:id.
func (h *Handler) deleteExercise(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		apiError(c, http.StatusNotFound, "exercise not found")
		return
	}

	var deleted int64
	err := h.store.Tx(c, func(tx Store) error {
		if _, err := tx.Exec(c,
			`DELETE FROM routine_exercises WHERE exercise_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.Exec(c, `DELETE FROM exercises WHERE id = ?`, id)
		if err != nil {
			return err
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to delete exercise")
		return
	}
	if deleted == 0 {
		apiError(c, http.StatusNotFound, "exercise not found")
		return
	}

	c.Status(http.StatusNoContent)
}
