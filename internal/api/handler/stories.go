package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kiranshivaraju/storyforge/internal/ai"
	mw "github.com/kiranshivaraju/storyforge/internal/api/middleware"
	"github.com/kiranshivaraju/storyforge/internal/api/response"
	"github.com/kiranshivaraju/storyforge/internal/store"
	"github.com/kiranshivaraju/storyforge/internal/story"
	"github.com/kiranshivaraju/storyforge/pkg/models"
)

const maxCreateBody = 4 << 10

// JobCreator starts story generation.
type JobCreator interface {
	CreateJob(ctx context.Context, sessionID, theme string) (*models.Job, error)
}

// StoryReader serves rebuilt stories.
type StoryReader interface {
	Complete(ctx context.Context, id int64) (*story.CompleteStory, error)
}

type createStoryRequest struct {
	Theme *string `json:"theme"`
}

// NewCreateStoryHandler returns an http.HandlerFunc for POST {prefix}/stories/create.
// It answers with the pending job; generation happens in the background.
func NewCreateStoryHandler(svc JobCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := mw.GetSessionID(r)
		if !ok {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Missing session", nil)
			return
		}

		var req createStoryRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCreateBody)).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Theme == nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "theme is required", nil)
			return
		}

		job, err := svc.CreateJob(r.Context(), sessionID, *req.Theme)
		if err != nil {
			var themeErr *ai.InvalidThemeError
			if errors.As(err, &themeErr) {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", themeErr.Reason, nil)
				return
			}
			slog.Error("creating story job", "session_id", sessionID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, job)
	}
}

// NewCompleteStoryHandler returns an http.HandlerFunc for GET {prefix}/stories/{storyID}/complete.
func NewCompleteStoryHandler(svc StoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "storyID"), 10, 64)
		if err != nil || id <= 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "story_id must be a positive integer", nil)
			return
		}

		cs, err := svc.Complete(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "STORY_NOT_FOUND", "Story not found", nil)
			case errors.Is(err, story.ErrInconsistentStory):
				slog.Error("story is inconsistent", "story_id", id, "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Story data is inconsistent", nil)
			default:
				slog.Error("loading story", "story_id", id, "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.JSON(w, cs)
	}
}
