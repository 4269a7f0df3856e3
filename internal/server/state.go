package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/heraldhq/herald/internal/state"
	"github.com/heraldhq/herald/internal/store"
)

// StateHandler exposes the raw state documents the UI edits and the
// completion feed it reports into. Tasks and goals go through the
// validating replacement paths; the remaining keys are passthrough JSON.
type StateHandler struct {
	Repo *state.Repository
}

func (h *StateHandler) Register(g *echo.Group) {
	g.GET("/state/:key", h.get)
	g.POST("/state/:key", h.put)
	g.POST("/completions", h.complete)
}

func (h *StateHandler) get(c echo.Context) error {
	key := c.Param("key")
	if !state.KnownKey(key) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown state key %q", key))
	}
	raw, err := h.Repo.RawGet(c.Request().Context(), key)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h *StateHandler) put(c echo.Context) error {
	key := c.Param("key")
	if !state.KnownKey(key) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown state key %q", key))
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	switch key {
	case state.KeyTasks:
		var tasks []state.Task
		if err := json.Unmarshal(body, &tasks); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("tasks: %v", err))
		}
		if err := h.Repo.ReplaceTasks(ctx, tasks, time.Now()); err != nil {
			if errors.Is(err, store.ErrUnavailable) {
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	case state.KeyGoals:
		var goals []state.Goal
		if err := json.Unmarshal(body, &goals); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("goals: %v", err))
		}
		if err := h.Repo.ReplaceGoals(ctx, goals); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	default:
		if err := h.Repo.RawSet(ctx, key, body); err != nil {
			if errors.Is(err, store.ErrUnavailable) {
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// complete records a task completion into the rolling history feed.
func (h *StateHandler) complete(c echo.Context) error {
	var entry state.CompletionLogEntry
	if err := c.Bind(&entry); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(entry.TaskTitle) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "taskTitle required")
	}
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now()
	}
	if err := h.Repo.AppendCompletion(c.Request().Context(), entry); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, entry)
}
