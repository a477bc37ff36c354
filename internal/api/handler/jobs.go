package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kiranshivaraju/storyforge/internal/api/response"
	"github.com/kiranshivaraju/storyforge/internal/store"
	"github.com/kiranshivaraju/storyforge/pkg/models"
)

// JobReader looks up generation jobs.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
}

// NewGetJobHandler returns an http.HandlerFunc for GET {prefix}/jobs/{jobID}.
func NewGetJobHandler(svc JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		job, err := svc.GetJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
				return
			}
			slog.Error("loading job", "job_id", jobID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, job)
	}
}
