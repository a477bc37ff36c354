package story

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/storyforge/internal/cache"
	"github.com/kiranshivaraju/storyforge/pkg/models"
)

const completeStoryTTL = time.Hour

// Reader is the slice of the store the read path needs.
type Reader interface {
	GetStory(ctx context.Context, id int64) (*models.Story, error)
	ListNodes(ctx context.Context, storyID int64) ([]models.Node, error)
}

// Service serves rebuilt stories, caching the encoded response. Stories are
// immutable once written so cached entries never go stale.
type Service struct {
	reader Reader
	cache  cache.Cache
}

func NewService(r Reader, c cache.Cache) *Service {
	return &Service{reader: r, cache: c}
}

// Complete returns the rebuilt story. Errors from the reader (including
// store.ErrNotFound) are returned wrapped.
func (s *Service) Complete(ctx context.Context, id int64) (*CompleteStory, error) {
	key := cache.CompleteStoryKey(id)
	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		slog.Warn("story cache read failed", "story_id", id, "error", err)
	} else if ok {
		var cs CompleteStory
		if err := json.Unmarshal(raw, &cs); err == nil {
			return &cs, nil
		}
		slog.Warn("discarding undecodable cached story", "story_id", id)
	}

	st, err := s.reader.GetStory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	nodes, err := s.reader.ListNodes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	cs, err := Rebuild(*st, nodes)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(cs); err == nil {
		if err := s.cache.Set(ctx, key, raw, completeStoryTTL); err != nil {
			slog.Warn("story cache write failed", "story_id", id, "error", err)
		}
	}
	return cs, nil
}
