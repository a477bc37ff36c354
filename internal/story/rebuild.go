package story

import (
	"fmt"
	"time"

	"github.com/kiranshivaraju/storyforge/pkg/models"
)

// NodeResponse is the wire form of one node.
type NodeResponse struct {
	ID              int64           `json:"id"`
	Content         string          `json:"content"`
	IsEnding        bool            `json:"is_ending"`
	IsWinningEnding bool            `json:"is_winning_ending"`
	Options         []models.Option `json:"options"`
}

// CompleteStory is the response for GET /stories/{id}/complete. RootNode is
// the entry point; clients follow option node ids into AllNodes.
type CompleteStory struct {
	ID        int64                  `json:"id"`
	Title     string                 `json:"title"`
	SessionID string                 `json:"session_id"`
	CreatedAt time.Time              `json:"created_at"`
	RootNode  NodeResponse           `json:"root_node"`
	AllNodes  map[int64]NodeResponse `json:"all_nodes"`
}

// Rebuild assembles the response for a story from its persisted nodes.
func Rebuild(st models.Story, nodes []models.Node) (*CompleteStory, error) {
	all := make(map[int64]NodeResponse, len(nodes))
	var root *NodeResponse

	for _, n := range nodes {
		opts := n.Options
		if opts == nil {
			opts = []models.Option{}
		}
		resp := NodeResponse{
			ID:              n.ID,
			Content:         n.Content,
			IsEnding:        n.IsEnding,
			IsWinningEnding: n.IsWinningEnding,
			Options:         opts,
		}
		all[n.ID] = resp

		if n.IsRoot {
			if root != nil {
				return nil, fmt.Errorf("%w: story %d has roots %d and %d", ErrInconsistentStory, st.ID, root.ID, n.ID)
			}
			root = &resp
		}
	}

	if root == nil {
		return nil, fmt.Errorf("story %d: %w", st.ID, ErrNoRootNode)
	}

	for id, n := range all {
		for _, opt := range n.Options {
			if _, ok := all[opt.NodeID]; !ok {
				return nil, fmt.Errorf("%w: node %d option %q targets unknown node %d",
					ErrInconsistentStory, id, opt.Text, opt.NodeID)
			}
		}
	}

	return &CompleteStory{
		ID:        st.ID,
		Title:     st.Title,
		SessionID: st.SessionID,
		CreatedAt: st.CreatedAt,
		RootNode:  *root,
		AllNodes:  all,
	}, nil
}
