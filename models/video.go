package models

import (
	"time"

	"fknsrs.biz/p/ytmeta/internal/sqlbuilderutil"
)

var (
	VideoTable *sqlbuilderutil.Table
)

func init() {
	VideoTable = sqlbuilderutil.MustMakeTable(Video{})
}

type Video struct {
	ID                int `sql:",table:videos"`
	CreatedAt         time.Time
	ExternalID        string
	ChannelID         *int
	ChannelExternalID string
	Title             string
	Description       string

	// PublishedAt is set once when the video is first seen and never
	// overwritten afterwards.
	PublishedAt *time.Time

	LastFetchedAt *time.Time
}
