package mapper

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/Jeffail/gabs/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytmeta/internal/ctxdb"
	"fknsrs.biz/p/ytmeta/internal/schema"
	"fknsrs.biz/p/ytmeta/models"
)

func init() {
	sorm.SetParameterPrefix("?")
}

func openTestDB(t *testing.T) (context.Context, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("could not open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// in-memory sqlite is per-connection
	db.SetMaxOpenConns(1)

	ctx := ctxdb.WithDB(context.Background(), db)

	if err := schema.Migrate(ctx, db); err != nil {
		t.Fatalf("could not migrate database: %v", err)
	}

	return ctx, db
}

func createRecord(ctx context.Context, db *sql.DB, input interface{}) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := sorm.CreateRecord(ctx, tx, input); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func mustParseJSON(t *testing.T, s string) *gabs.Container {
	t.Helper()

	c, err := gabs.ParseJSON([]byte(s))
	if err != nil {
		t.Fatalf("could not parse payload: %v", err)
	}

	return c
}

func countRows(t *testing.T, ctx context.Context, db *sql.DB, table string) int {
	t.Helper()

	var n int
	if err := db.QueryRowContext(ctx, "select count(*) from "+table).Scan(&n); err != nil {
		t.Fatalf("could not count rows in %s: %v", table, err)
	}

	return n
}

var videoIdentityTests = []struct {
	name  string
	input string
	value string
}{
	{
		name:  "upload",
		input: `{"contentDetails":{"upload":{"videoId":"vid_upload"}}}`,
		value: "vid_upload",
	},
	{
		name:  "playlist item fallback",
		input: `{"contentDetails":{"playlistItem":{"resourceId":{"videoId":"vid_playlist"}}}}`,
		value: "vid_playlist",
	},
	{
		name:  "upload wins over playlist item",
		input: `{"contentDetails":{"upload":{"videoId":"vid_upload"},"playlistItem":{"resourceId":{"videoId":"vid_playlist"}}}}`,
		value: "vid_upload",
	},
	{
		name:  "neither shape present",
		input: `{"snippet":{"type":"like"}}`,
		value: "",
	},
}

func TestVideoIdentity(t *testing.T) {
	for _, tc := range videoIdentityTests {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			a.Equal(tc.value, VideoIdentity(mustParseJSON(t, tc.input)))
		})
	}
}

func TestIsUpload(t *testing.T) {
	a := assert.New(t)

	a.True(IsUpload(mustParseJSON(t, `{"snippet":{"type":"upload"}}`)))
	a.False(IsUpload(mustParseJSON(t, `{"snippet":{"type":"like"}}`)))
	a.False(IsUpload(mustParseJSON(t, `{}`)))
}

func TestUpsertVideoFromActivity(t *testing.T) {
	a := assert.New(t)

	ctx, db := openTestDB(t)

	now := time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)

	channel := models.Channel{CreatedAt: now, ExternalID: "chan_1"}
	a.NoError(createRecord(ctx, db, &channel))

	first := mustParseJSON(t, `{
		"snippet": {"type": "upload", "title": "first title", "description": "first description", "publishedAt": "2023-06-01T00:00:00.123Z"},
		"contentDetails": {"upload": {"videoId": "vid_1"}}
	}`)

	a.NoError(ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := UpsertVideoFromActivity(ctx, tx, &channel, first, now)
		return err
	}))

	a.Equal(1, countRows(t, ctx, db, "videos"))

	// same video again with new metadata and a different publication time
	second := mustParseJSON(t, `{
		"snippet": {"type": "upload", "title": "second title", "description": "second description", "publishedAt": "2024-01-01T00:00:00Z"},
		"contentDetails": {"upload": {"videoId": "vid_1"}}
	}`)

	a.NoError(ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := UpsertVideoFromActivity(ctx, tx, &channel, second, now.Add(time.Hour))
		return err
	}))

	a.Equal(1, countRows(t, ctx, db, "videos"))

	var video models.Video
	a.NoError(sorm.FindFirstWhere(ctx, db, &video, "where external_id = ?", "vid_1"))

	a.Equal("second title", video.Title)
	a.Equal("second description", video.Description)
	a.Equal("chan_1", video.ChannelExternalID)
	if a.NotNil(video.ChannelID) {
		a.Equal(channel.ID, *video.ChannelID)
	}
	if a.NotNil(video.PublishedAt) {
		a.True(video.PublishedAt.Equal(time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)), "published_at must keep its first-seen value, got %s", video.PublishedAt)
	}
}

func TestUpsertVideoFromActivityRejectsMissingIdentity(t *testing.T) {
	a := assert.New(t)

	ctx, db := openTestDB(t)

	now := time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)

	channel := models.Channel{CreatedAt: now, ExternalID: "chan_1"}
	a.NoError(createRecord(ctx, db, &channel))

	item := mustParseJSON(t, `{"snippet": {"type": "like", "title": "not a video"}}`)

	err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := UpsertVideoFromActivity(ctx, tx, &channel, item, now)
		return err
	})

	a.ErrorIs(err, ErrNotIngestible)
	a.Equal(0, countRows(t, ctx, db, "videos"))
}

const commentThreadPayload = `{
	"id": "thread_1",
	"snippet": {
		"totalReplyCount": 2,
		"topLevelComment": {
			"id": "thread_1",
			"snippet": {
				"textDisplay": "top level text",
				"authorDisplayName": "author one",
				"authorChannelId": {"value": "chan_author_1"},
				"likeCount": 5,
				"publishedAt": "2023-06-10T10:00:00Z",
				"updatedAt": "2023-06-10T10:00:00Z"
			}
		}
	},
	"replies": {
		"comments": [
			{
				"id": "thread_1.reply_1",
				"snippet": {
					"parentId": "thread_1",
					"textDisplay": "first reply",
					"authorDisplayName": "author two",
					"likeCount": 1,
					"publishedAt": "2023-06-10T11:00:00Z"
				}
			},
			{
				"id": "thread_1.reply_2",
				"snippet": {
					"parentId": "thread_1",
					"textOriginal": "second reply",
					"authorDisplayName": "author three",
					"publishedAt": "2023-06-10T12:00:00Z"
				}
			}
		]
	}
}`

func TestUpsertCommentTree(t *testing.T) {
	a := assert.New(t)

	ctx, db := openTestDB(t)

	now := time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)

	video := models.Video{CreatedAt: now, ExternalID: "vid_1"}
	a.NoError(createRecord(ctx, db, &video))

	item := mustParseJSON(t, commentThreadPayload)

	var written int
	a.NoError(ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		written, err = UpsertCommentTree(ctx, tx, &video, item, now)
		return err
	}))

	a.Equal(3, written)
	a.Equal(3, countRows(t, ctx, db, "comments"))

	var top models.Comment
	a.NoError(sorm.FindFirstWhere(ctx, db, &top, "where external_id = ?", "thread_1"))
	a.Equal("", top.ParentExternalID)
	a.Equal("top level text", top.Text)
	a.Equal("chan_author_1", top.AuthorChannelID)
	a.Equal(5, top.LikeCount)
	a.Equal(2, top.TotalReplyCount)
	a.Equal("vid_1", top.VideoExternalID)

	var replies []models.Comment
	a.NoError(sorm.FindWhere(ctx, db, &replies, "where parent_external_id = ? order by external_id asc", "thread_1"))
	if a.Len(replies, 2) {
		a.Equal("first reply", replies[0].Text)
		a.Equal("second reply", replies[1].Text)
	}

	// a second pass over the same payload must not create new rows
	a.NoError(ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		written, err = UpsertCommentTree(ctx, tx, &video, mustParseJSON(t, commentThreadPayload), now.Add(time.Hour))
		return err
	}))

	a.Equal(3, written)
	a.Equal(3, countRows(t, ctx, db, "comments"))
}

func TestUpsertCommentTreeBareComment(t *testing.T) {
	a := assert.New(t)

	ctx, db := openTestDB(t)

	now := time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)

	video := models.Video{CreatedAt: now, ExternalID: "vid_1"}
	a.NoError(createRecord(ctx, db, &video))

	item := mustParseJSON(t, `{
		"id": "bare_1",
		"snippet": {"parentId": "thread_9", "textDisplay": "late reply", "publishedAt": "2023-06-14T09:00:00Z"}
	}`)

	var written int
	a.NoError(ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		written, err = UpsertCommentTree(ctx, tx, &video, item, now)
		return err
	}))

	a.Equal(1, written)

	var comment models.Comment
	a.NoError(sorm.FindFirstWhere(ctx, db, &comment, "where external_id = ?", "bare_1"))

	// the parent row does not exist yet; the reference is stored as given
	a.Equal("thread_9", comment.ParentExternalID)
	a.Equal("late reply", comment.Text)
	if a.NotNil(comment.LastFetchedAt) {
		a.True(now.Equal(*comment.LastFetchedAt))
	}
}
