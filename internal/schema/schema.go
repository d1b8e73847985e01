// Package schema creates the tables the collector writes to. Statements are
// idempotent so they can run on every startup.
package schema

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`create table if not exists channels (
		id integer primary key autoincrement,
		created_at datetime not null,
		external_id text not null unique,
		person text not null default '',
		title text not null default '',
		about text not null default '',
		last_fetched_at datetime
	)`,
	`create table if not exists videos (
		id integer primary key autoincrement,
		created_at datetime not null,
		external_id text not null unique,
		channel_id integer references channels (id),
		channel_external_id text not null default '',
		title text not null default '',
		description text not null default '',
		published_at datetime,
		last_fetched_at datetime
	)`,
	`create table if not exists comments (
		id integer primary key autoincrement,
		created_at datetime not null,
		external_id text not null unique,
		video_id integer references videos (id),
		video_external_id text not null default '',
		parent_external_id text not null default '',
		author_channel_id text not null default '',
		author_display_name text not null default '',
		text text not null default '',
		like_count integer not null default 0,
		total_reply_count integer not null default 0,
		published_at datetime,
		updated_at datetime,
		last_fetched_at datetime
	)`,
	`create index if not exists channels_last_fetched_at on channels (last_fetched_at)`,
	`create index if not exists videos_last_fetched_at on videos (last_fetched_at)`,
	`create index if not exists videos_published_at on videos (published_at)`,
	`create index if not exists videos_channel_external_id on videos (channel_external_id)`,
	`create index if not exists comments_video_external_id on comments (video_external_id)`,
}

func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema.Migrate: could not run migration statement: %w", err)
		}
	}

	return nil
}
