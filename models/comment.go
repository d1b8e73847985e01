package models

import (
	"time"

	"fknsrs.biz/p/ytmeta/internal/sqlbuilderutil"
)

var (
	CommentTable *sqlbuilderutil.Table
)

func init() {
	CommentTable = sqlbuilderutil.MustMakeTable(Comment{})
}

// Comment covers both top-level comments and replies. A reply has
// ParentExternalID set to the external id of its top-level comment; the two
// share one identity space.
type Comment struct {
	ID                int `sql:",table:comments"`
	CreatedAt         time.Time
	ExternalID        string
	VideoID           *int
	VideoExternalID   string
	ParentExternalID  string
	AuthorChannelID   string
	AuthorDisplayName string
	Text              string
	LikeCount         int
	TotalReplyCount   int

	PublishedAt *time.Time
	UpdatedAt   *time.Time

	LastFetchedAt *time.Time
}
