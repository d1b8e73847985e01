package seed

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fknsrs.biz/p/sorm"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytmeta/internal/ctxclock"
	"fknsrs.biz/p/ytmeta/internal/ctxdb"
	"fknsrs.biz/p/ytmeta/internal/schema"
	"fknsrs.biz/p/ytmeta/models"
)

func init() {
	sorm.SetParameterPrefix("?")
}

func openTestContext(t *testing.T) (context.Context, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("could not open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// in-memory sqlite is per-connection
	db.SetMaxOpenConns(1)

	ctx := ctxdb.WithDB(context.Background(), db)
	ctx = ctxclock.WithClock(ctx, ctxclock.NewStaticClock(time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)))

	if err := schema.Migrate(ctx, db); err != nil {
		t.Fatalf("could not migrate database: %v", err)
	}

	return ctx, db
}

func writeSeedFile(t *testing.T, name, contents string) string {
	t.Helper()

	filePath := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(filePath, []byte(contents), 0644); err != nil {
		t.Fatalf("could not write seed file: %v", err)
	}

	return filePath
}

func TestImportChannels(t *testing.T) {
	a := assert.New(t)

	ctx, db := openTestContext(t)

	filePath := writeSeedFile(t, "channels.csv", ""+
		"external_id,person,title,about\n"+
		"chan_1,person one,channel one,about one\n"+
		",nobody,skipped row,\n"+
		"chan_2,person two,channel two,about two\n")

	a.NoError(ImportChannels(ctx, filePath))

	var channels []models.Channel
	a.NoError(sorm.FindWhere(ctx, db, &channels, "where 1 = 1 order by external_id asc"))
	if a.Len(channels, 2) {
		a.Equal("chan_1", channels[0].ExternalID)
		a.Equal("person one", channels[0].Person)
		a.Equal("channel one", channels[0].Title)
		a.Equal("about one", channels[0].About)
		a.Nil(channels[0].LastFetchedAt)
		a.Equal("chan_2", channels[1].ExternalID)
	}

	// a rerun leaves existing rows alone
	a.NoError(ImportChannels(ctx, filePath))

	channels = nil
	a.NoError(sorm.FindWhere(ctx, db, &channels, "where 1 = 1"))
	a.Len(channels, 2)
}

func TestImportChannelsShortRecords(t *testing.T) {
	a := assert.New(t)

	ctx, db := openTestContext(t)

	filePath := writeSeedFile(t, "channels.csv", ""+
		"external_id,person,title,about\n"+
		"chan_1\n")

	a.NoError(ImportChannels(ctx, filePath))

	var channel models.Channel
	a.NoError(sorm.FindFirstWhere(ctx, db, &channel, "where external_id = ?", "chan_1"))
	a.Equal("", channel.Person)
	a.Equal("", channel.Title)
}

func TestImportVideos(t *testing.T) {
	a := assert.New(t)

	ctx, db := openTestContext(t)

	channelsPath := writeSeedFile(t, "channels.csv", ""+
		"external_id,person,title,about\n"+
		"chan_1,person one,channel one,\n")
	a.NoError(ImportChannels(ctx, channelsPath))

	videosPath := writeSeedFile(t, "videos.csv", ""+
		"external_id,channel_external_id,title\n"+
		"vid_1,chan_1,video one\n"+
		"vid_2,chan_unknown,video two\n"+
		",chan_1,skipped row\n")

	a.NoError(ImportVideos(ctx, videosPath))

	var videos []models.Video
	a.NoError(sorm.FindWhere(ctx, db, &videos, "where 1 = 1"))
	if a.Len(videos, 1) {
		a.Equal("vid_1", videos[0].ExternalID)
		a.Equal("chan_1", videos[0].ChannelExternalID)
		a.Equal("video one", videos[0].Title)
		a.Nil(videos[0].LastFetchedAt)
	}

	// a rerun leaves existing rows alone
	a.NoError(ImportVideos(ctx, videosPath))

	videos = nil
	a.NoError(sorm.FindWhere(ctx, db, &videos, "where 1 = 1"))
	a.Len(videos, 1)
}

func TestImportChannelsMissingFile(t *testing.T) {
	a := assert.New(t)

	ctx, _ := openTestContext(t)

	a.Error(ImportChannels(ctx, filepath.Join(t.TempDir(), "nope.csv")))
}

func TestImportChannelsEmptyFile(t *testing.T) {
	a := assert.New(t)

	ctx, db := openTestContext(t)

	a.NoError(ImportChannels(ctx, writeSeedFile(t, "channels.csv", "")))

	var channels []models.Channel
	a.NoError(sorm.FindWhere(ctx, db, &channels, "where 1 = 1"))
	a.Len(channels, 0)
}
