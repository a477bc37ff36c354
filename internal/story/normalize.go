// Package story turns generated story trees into flat node records and
// rebuilds persisted records into the response served to players.
package story

import (
	"fmt"
	"strings"

	"github.com/kiranshivaraju/storyforge/pkg/models"
)

const (
	MaxDepth = 64
	MaxNodes = 512
)

// Validate checks the whole generated story, including the node tree.
func Validate(gs *models.GeneratedStory) error {
	_, err := Flatten(gs)
	return err
}

// Flatten validates the story title and normalizes its tree.
func Flatten(gs *models.GeneratedStory) ([]models.NodeDraft, error) {
	if gs == nil {
		return nil, invalid("story", "story is required")
	}
	if strings.TrimSpace(gs.Title) == "" {
		return nil, invalid("title", "title is required")
	}
	return Normalize(gs.RootNode)
}

type frame struct {
	node   *models.GeneratedNode
	path   string
	depth  int
	parent int
	option int
}

// Normalize flattens a generated tree into drafts in depth-first pre-order.
// The root is always drafts[0] and is the only draft flagged IsRoot. Every
// option target points to a later draft, so the result is acyclic and every
// draft is reachable from the root. Option order is kept as generated.
//
// Ending nodes are leaves: any options they carry are dropped, not followed.
func Normalize(root *models.GeneratedNode) ([]models.NodeDraft, error) {
	var drafts []models.NodeDraft
	stack := []frame{{node: root, path: "rootNode", depth: 1, parent: -1}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := checkNode(f); err != nil {
			return nil, err
		}
		if len(drafts) == MaxNodes {
			return nil, invalid(f.path, "story has more than %d nodes", MaxNodes)
		}

		idx := len(drafts)
		draft := models.NodeDraft{
			Content:         f.node.Content,
			IsRoot:          f.parent < 0,
			IsEnding:        f.node.IsEnding,
			IsWinningEnding: f.node.IsWinningEnding,
		}

		if !f.node.IsEnding {
			draft.Options = make([]models.DraftOption, len(f.node.Options))
			for i, opt := range f.node.Options {
				if strings.TrimSpace(opt.Text) == "" {
					return nil, invalid(fmt.Sprintf("%s.options[%d].text", f.path, i), "option text is required")
				}
				draft.Options[i] = models.DraftOption{Text: opt.Text, Target: -1}
			}
			// Reverse push so the first option is visited first.
			for i := len(f.node.Options) - 1; i >= 0; i-- {
				stack = append(stack, frame{
					node:   f.node.Options[i].NextNode,
					path:   fmt.Sprintf("%s.options[%d].nextNode", f.path, i),
					depth:  f.depth + 1,
					parent: idx,
					option: i,
				})
			}
		}

		drafts = append(drafts, draft)
		if f.parent >= 0 {
			drafts[f.parent].Options[f.option].Target = idx
		}
	}

	return drafts, nil
}

func checkNode(f frame) error {
	n := f.node
	switch {
	case n == nil:
		return invalid(f.path, "node is required")
	case f.depth > MaxDepth:
		return invalid(f.path, "story is deeper than %d levels", MaxDepth)
	case strings.TrimSpace(n.Content) == "":
		return invalid(f.path+".content", "content is required")
	case n.IsWinningEnding && !n.IsEnding:
		return invalid(f.path, "a winning ending must also be an ending")
	case !n.IsEnding && len(n.Options) == 0:
		return invalid(f.path+".options", "a node that is not an ending needs at least one option")
	}
	return nil
}
