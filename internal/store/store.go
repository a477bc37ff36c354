package store

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/storyforge/pkg/models"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateKey      = errors.New("duplicate key violation")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	// UpdateJobStatus moves a job along the ledger. Once a job is completed or
	// failed every further update is a no-op that returns nil.
	UpdateJobStatus(ctx context.Context, jobID string, status string, opts ...JobUpdateOption) error

	// CreateStory persists the story and every draft in one transaction and
	// returns the id of the root node. story.ID and story.CreatedAt are set.
	CreateStory(ctx context.Context, story *models.Story, drafts []models.NodeDraft) (int64, error)
	GetStory(ctx context.Context, id int64) (*models.Story, error)
	ListNodes(ctx context.Context, storyID int64) ([]models.Node, error)
}

type jobUpdateParams struct {
	ErrorMessage *string
	StoryID      *int64
}

type JobUpdateOption func(*jobUpdateParams)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithStoryID(id int64) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.StoryID = &id
	}
}

// ApplyJobUpdateOptions resolves options into the error message and story id
// they carry. It lets Store implementations outside this package share the
// option type.
func ApplyJobUpdateOptions(opts ...JobUpdateOption) (errMsg *string, storyID *int64) {
	p := &jobUpdateParams{}
	for _, opt := range opts {
		opt(p)
	}
	return p.ErrorMessage, p.StoryID
}

// allowedFrom lists, for each target status, the statuses a job may leave to reach it.
var allowedFrom = map[string][]string{
	models.JobStatusProcessing: {models.JobStatusPending},
	models.JobStatusCompleted:  {models.JobStatusProcessing},
	models.JobStatusFailed:     {models.JobStatusPending, models.JobStatusProcessing},
}

// CanTransition reports whether a job in status from may move to status to.
func CanTransition(from, to string) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}
