package models

import "time"

// Story is one generated narrative. It is written once, at the end of a
// successful generation, and never changes afterwards.
type Story struct {
	ID        int64     `db:"id"         json:"id"`
	Title     string    `db:"title"      json:"title"`
	SessionID string    `db:"session_id" json:"session_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Node is one persisted narrative beat. Options reference other nodes of the
// same story by id.
type Node struct {
	ID              int64    `db:"id"                json:"id"`
	StoryID         int64    `db:"story_id"          json:"story_id"`
	Content         string   `db:"content"           json:"content"`
	IsRoot          bool     `db:"is_root"           json:"is_root"`
	IsEnding        bool     `db:"is_ending"         json:"is_ending"`
	IsWinningEnding bool     `db:"is_winning_ending" json:"is_winning_ending"`
	Options         []Option `db:"options"           json:"options"`
}

// Option is a player-visible choice. It is stored as an element of the
// node's JSONB options array.
type Option struct {
	Text   string `json:"text"`
	NodeID int64  `json:"node_id"`
}

// NodeDraft is a node that has been flattened out of a generated tree but not
// yet persisted. DraftOption.Target is an index into the same draft slice.
type NodeDraft struct {
	Content         string
	IsRoot          bool
	IsEnding        bool
	IsWinningEnding bool
	Options         []DraftOption
}

type DraftOption struct {
	Text   string
	Target int
}
