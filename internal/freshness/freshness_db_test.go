package freshness

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"fknsrs.biz/p/sorm"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytmeta/internal/ptr"
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

	ctx := context.Background()

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

func TestDueChannels(t *testing.T) {
	a := assert.New(t)

	ctx, db := openTestDB(t)

	for _, channel := range []models.Channel{
		{CreatedAt: now, ExternalID: "chan_never"},
		{CreatedAt: now, ExternalID: "chan_stale", LastFetchedAt: ptr.Time(now.Add(-time.Hour))},
		{CreatedAt: now, ExternalID: "chan_fresh", LastFetchedAt: ptr.Time(now.Add(-time.Minute))},
	} {
		channel := channel
		a.NoError(createRecord(ctx, db, &channel))
	}

	channels, err := DueChannels(ctx, db, now, time.Second*900)
	a.NoError(err)

	var ids []string
	for _, c := range channels {
		ids = append(ids, c.ExternalID)
	}

	// never fetched sorts before any real timestamp
	a.Equal([]string{"chan_never", "chan_stale"}, ids)
}

func TestDueVideos(t *testing.T) {
	a := assert.New(t)

	ctx, db := openTestDB(t)

	for _, video := range []models.Video{
		{CreatedAt: now, ExternalID: "vid_never"},
		{
			CreatedAt:     now,
			ExternalID:    "vid_young_stale",
			PublishedAt:   ptr.Time(now.Add(-Hours(2))),
			LastFetchedAt: ptr.Time(now.Add(-time.Minute * 6)),
		},
		{
			CreatedAt:     now,
			ExternalID:    "vid_young_fresh",
			PublishedAt:   ptr.Time(now.Add(-Hours(2))),
			LastFetchedAt: ptr.Time(now.Add(-time.Minute)),
		},
		{
			CreatedAt:     now,
			ExternalID:    "vid_old_fresh_enough",
			PublishedAt:   ptr.Time(now.Add(-Days(40))),
			LastFetchedAt: ptr.Time(now.Add(-Days(10))),
		},
		{
			CreatedAt:     now,
			ExternalID:    "vid_old_stale",
			PublishedAt:   ptr.Time(now.Add(-Days(40))),
			LastFetchedAt: ptr.Time(now.Add(-Days(31))),
		},
	} {
		video := video
		a.NoError(createRecord(ctx, db, &video))
	}

	videos, err := DueVideos(ctx, db, now, DefaultTiers())
	a.NoError(err)

	ids := map[string]bool{}
	for _, v := range videos {
		ids[v.ExternalID] = true
	}

	a.Equal(map[string]bool{
		"vid_never":       true,
		"vid_young_stale": true,
		"vid_old_stale":   true,
	}, ids)
}
