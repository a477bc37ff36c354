package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/storyforge/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO story_jobs (job_id, session_id, theme, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		job.JobID, job.SessionID, job.Theme, job.Status, job.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var j models.Job
	err := pgxscan.Get(ctx, s.pool, &j,
		`SELECT job_id, session_id, theme, status, story_id, error, created_at, completed_at
		 FROM story_jobs WHERE job_id = $1`, jobID)
	if pgxscan.NotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, jobID string, status string, opts ...JobUpdateOption) error {
	from, ok := allowedFrom[status]
	if !ok {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}
	errMsg, storyID := ApplyJobUpdateOptions(opts...)
	if status == models.JobStatusCompleted && storyID == nil {
		return fmt.Errorf("%w: completed job %s needs a story id", ErrInvalidTransition, jobID)
	}

	query := `UPDATE story_jobs SET status = $2`
	args := []any{jobID, status}
	argIdx := 3

	if models.IsTerminalStatus(status) {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, time.Now().UTC())
		argIdx++
	}
	if errMsg != nil {
		query += fmt.Sprintf(", error = $%d", argIdx)
		args = append(args, *errMsg)
		argIdx++
	}
	if storyID != nil {
		query += fmt.Sprintf(", story_id = $%d", argIdx)
		args = append(args, *storyID)
		argIdx++
	}
	// The status guard makes the check and the write one atomic step, so
	// concurrent updates can never overwrite a terminal job.
	query += fmt.Sprintf(" WHERE job_id = $1 AND status = ANY($%d)", argIdx)
	args = append(args, from)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current string
	err = s.pool.QueryRow(ctx, `SELECT status FROM story_jobs WHERE job_id = $1`, jobID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}
	if models.IsTerminalStatus(current) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
}

// --- Stories ---

func (s *PostgresStore) CreateStory(ctx context.Context, story *models.Story, drafts []models.NodeDraft) (int64, error) {
	if len(drafts) == 0 || !drafts[0].IsRoot {
		return 0, fmt.Errorf("create story: first draft must be the root")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin story tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO stories (title, session_id) VALUES ($1, $2) RETURNING id, created_at`,
		story.Title, story.SessionID,
	).Scan(&story.ID, &story.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert story: %w", err)
	}

	// Pass 1: every node, options empty, so each one has an id.
	insert := &pgx.Batch{}
	for _, d := range drafts {
		insert.Queue(
			`INSERT INTO story_nodes (story_id, content, is_root, is_ending, is_winning_ending, options)
			 VALUES ($1, $2, $3, $4, $5, '[]'::jsonb) RETURNING id`,
			story.ID, d.Content, d.IsRoot, d.IsEnding, d.IsWinningEnding)
	}
	ids := make([]int64, len(drafts))
	br := tx.SendBatch(ctx, insert)
	for i := range drafts {
		if err := br.QueryRow().Scan(&ids[i]); err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("insert node %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("insert nodes: %w", err)
	}

	// Pass 2: option lists, now that every target exists.
	link := &pgx.Batch{}
	for i, d := range drafts {
		if len(d.Options) == 0 {
			continue
		}
		opts := make([]models.Option, len(d.Options))
		for j, o := range d.Options {
			if o.Target <= i || o.Target >= len(ids) {
				return 0, fmt.Errorf("create story: node %d option %d has invalid target %d", i, j, o.Target)
			}
			opts[j] = models.Option{Text: o.Text, NodeID: ids[o.Target]}
		}
		link.Queue(`UPDATE story_nodes SET options = $2 WHERE id = $1`, ids[i], opts)
	}
	if link.Len() > 0 {
		if err := tx.SendBatch(ctx, link).Close(); err != nil {
			return 0, fmt.Errorf("link node options: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit story: %w", err)
	}
	return ids[0], nil
}

func (s *PostgresStore) GetStory(ctx context.Context, id int64) (*models.Story, error) {
	var st models.Story
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, session_id, created_at FROM stories WHERE id = $1`, id,
	).Scan(&st.ID, &st.Title, &st.SessionID, &st.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	return &st, nil
}

func (s *PostgresStore) ListNodes(ctx context.Context, storyID int64) ([]models.Node, error) {
	var nodes []models.Node
	err := pgxscan.Select(ctx, s.pool, &nodes,
		`SELECT id, story_id, content, is_root, is_ending, is_winning_ending, options
		 FROM story_nodes WHERE story_id = $1 ORDER BY id`, storyID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return nodes, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Store = (*PostgresStore)(nil)
