package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/kiranshivaraju/storyforge/internal/cache"
	"github.com/kiranshivaraju/storyforge/internal/metrics"
	"github.com/kiranshivaraju/storyforge/internal/queue"
	"github.com/kiranshivaraju/storyforge/internal/store"
	"github.com/kiranshivaraju/storyforge/internal/story"
	"github.com/kiranshivaraju/storyforge/pkg/models"
)

const (
	MaxThemeLength = 200

	// Terminal jobs never change again, so they can be cached for a while.
	terminalJobTTL = 30 * time.Minute
)

// GenerationService creates generation jobs and runs them. It is the
// queue.Runner for both the in-process pool and the RabbitMQ consumer.
type GenerationService struct {
	provider   models.StoryProvider
	store      store.Store
	cache      cache.Cache
	dispatcher queue.Dispatcher
	timeout    time.Duration
}

// NewGenerationService creates a new GenerationService. A zero timeout
// leaves provider calls unbounded.
func NewGenerationService(provider models.StoryProvider, st store.Store, ca cache.Cache, d queue.Dispatcher, timeout time.Duration) *GenerationService {
	return &GenerationService{
		provider:   provider,
		store:      st,
		cache:      ca,
		dispatcher: d,
		timeout:    timeout,
	}
}

// CreateJob records a pending job and hands it to the dispatcher. It returns
// as soon as the job is queued. If the hand-off fails the job is marked
// failed and still returned, so the caller can report it.
func (s *GenerationService) CreateJob(ctx context.Context, sessionID, theme string) (*models.Job, error) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return nil, &InvalidThemeError{Reason: "theme is required"}
	}
	if utf8.RuneCountInString(theme) > MaxThemeLength {
		return nil, &InvalidThemeError{Reason: fmt.Sprintf("theme must be at most %d characters", MaxThemeLength)}
	}

	job := &models.Job{
		JobID:     ulid.Make().String(),
		SessionID: sessionID,
		Theme:     theme,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	metrics.JobsTotal.WithLabelValues("created").Inc()

	err := s.dispatcher.Submit(ctx, queue.Task{JobID: job.JobID, Theme: job.Theme, SessionID: job.SessionID})
	if err != nil {
		slog.Error("dispatching job", "job_id", job.JobID, "error", err)
		msg := fmt.Sprintf("dispatching job: %v", err)
		s.fail(context.WithoutCancel(ctx), job.JobID, msg)

		now := time.Now().UTC()
		job.Status = models.JobStatusFailed
		job.Error = &msg
		job.CompletedAt = &now
	}
	return job, nil
}

// GetJob returns the job with the given id, or store.ErrNotFound.
func (s *GenerationService) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	key := cache.JobKey(jobID)
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		if job, err := decodeCachedJob(raw); err == nil {
			return job, nil
		}
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		if raw, err := encodeCachedJob(job); err == nil {
			if err := s.cache.Set(ctx, key, raw, terminalJobTTL); err != nil {
				slog.Warn("caching job", "job_id", jobID, "error", err)
			}
		}
	}
	return job, nil
}

// Run generates and persists the story for one task and records the outcome
// on the job. It never panics and has nothing to return: every failure ends
// up as the job's error message.
func (s *GenerationService) Run(ctx context.Context, task queue.Task) {
	start := time.Now()
	log := slog.With("job_id", task.JobID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in generation", "error", r, "stack", string(debug.Stack()))
			s.fail(ctx, task.JobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	job, err := s.store.GetJob(ctx, task.JobID)
	if errors.Is(err, store.ErrNotFound) {
		log.Error("job not found, dropping task")
		return
	}
	if err != nil {
		log.Error("loading job", "error", err)
		s.fail(ctx, task.JobID, fmt.Sprintf("loading job: %v", err))
		return
	}
	if job.IsTerminal() {
		log.Info("job already finished, skipping", "status", job.Status)
		metrics.JobsTotal.WithLabelValues("skipped").Inc()
		return
	}
	if job.Status == models.JobStatusPending {
		if err := s.store.UpdateJobStatus(ctx, job.JobID, models.JobStatusProcessing); err != nil {
			log.Error("marking job processing", "error", err)
			s.fail(ctx, job.JobID, fmt.Sprintf("marking job processing: %v", err))
			return
		}
	}

	storyID, err := s.generate(ctx, job)
	if err != nil {
		log.Warn("generation failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		s.fail(ctx, job.JobID, err.Error())
		metrics.GenerationDuration.Observe(time.Since(start).Seconds())
		return
	}

	if err := s.store.UpdateJobStatus(ctx, job.JobID, models.JobStatusCompleted, store.WithStoryID(storyID)); err != nil {
		log.Error("marking job completed", "story_id", storyID, "error", err)
		s.fail(ctx, job.JobID, fmt.Sprintf("marking job completed: %v", err))
		metrics.GenerationDuration.Observe(time.Since(start).Seconds())
		return
	}
	metrics.JobsTotal.WithLabelValues(models.JobStatusCompleted).Inc()
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	log.Info("story generated", "story_id", storyID, "provider", s.provider.Name(),
		"duration_ms", time.Since(start).Milliseconds())
}

// generate calls the provider and persists the resulting story.
func (s *GenerationService) generate(ctx context.Context, job *models.Job) (int64, error) {
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	generated, err := s.provider.GenerateStory(callCtx, job.Theme)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrInferenceTimeout) {
			err = fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
		}
		return 0, fmt.Errorf("generating story: %w", err)
	}

	drafts, err := story.Flatten(generated)
	if err != nil {
		return 0, err
	}

	st := &models.Story{Title: strings.TrimSpace(generated.Title), SessionID: job.SessionID}
	if _, err := s.store.CreateStory(ctx, st, drafts); err != nil {
		return 0, fmt.Errorf("saving story: %w", err)
	}
	metrics.StoryNodes.Observe(float64(len(drafts)))
	return st.ID, nil
}

// fail marks the job failed. Ledger writes outlive ctx cancellation.
func (s *GenerationService) fail(ctx context.Context, jobID, msg string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusFailed, store.WithErrorMessage(msg)); err != nil {
		slog.Error("marking job failed", "job_id", jobID, "error", err)
		return
	}
	metrics.JobsTotal.WithLabelValues(models.JobStatusFailed).Inc()
}

// cachedJob keeps the fields models.Job hides from API responses.
type cachedJob struct {
	*models.Job
	SessionID string `json:"session_id"`
	Theme     string `json:"theme"`
}

func encodeCachedJob(job *models.Job) ([]byte, error) {
	return json.Marshal(cachedJob{Job: job, SessionID: job.SessionID, Theme: job.Theme})
}

func decodeCachedJob(raw []byte) (*models.Job, error) {
	c := cachedJob{Job: &models.Job{}}
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	c.Job.SessionID = c.SessionID
	c.Job.Theme = c.Theme
	return c.Job, nil
}

var _ queue.Runner = (*GenerationService)(nil)
