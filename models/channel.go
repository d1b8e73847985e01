package models

import (
	"time"

	"fknsrs.biz/p/ytmeta/internal/sqlbuilderutil"
)

var (
	ChannelTable *sqlbuilderutil.Table
)

func init() {
	ChannelTable = sqlbuilderutil.MustMakeTable(Channel{})
}

type Channel struct {
	ID         int `sql:",table:channels"`
	CreatedAt  time.Time
	ExternalID string
	Person     string
	Title      string
	About      string

	// LastFetchedAt is nil for channels that have never been fetched, which
	// sorts as more stale than any real timestamp.
	LastFetchedAt *time.Time
}
