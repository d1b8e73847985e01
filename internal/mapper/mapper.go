// Package mapper turns fetched provider payloads into canonical rows. The
// loose gabs shapes stop here; nothing past this boundary sees raw payloads.
package mapper

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/Jeffail/gabs/v2"

	"fknsrs.biz/p/ytmeta/internal/ptr"
	"fknsrs.biz/p/ytmeta/internal/timeutil"
	"fknsrs.biz/p/ytmeta/models"
)

var (
	// ErrNotIngestible marks a payload with no usable identity. The item is
	// skipped; it never aborts a batch.
	ErrNotIngestible = fmt.Errorf("mapper: payload has no usable identity")
)

// VideoIdentity extracts the external video id from an activity item. Upload
// activities are preferred, playlist items are the fallback, and anything
// else yields the empty sentinel.
func VideoIdentity(item *gabs.Container) string {
	if id := stringAt(item, "contentDetails.upload.videoId"); id != "" {
		return id
	}

	return stringAt(item, "contentDetails.playlistItem.resourceId.videoId")
}

// IsUpload reports whether an activity item is an upload. The activity feed
// mixes in likes, playlist changes and so on, which the channel pass skips.
func IsUpload(item *gabs.Container) bool {
	return stringAt(item, "snippet.type") == "upload"
}

// UpsertVideoFromActivity inserts or updates the video described by one
// activity item. Title and description follow the payload on every refresh;
// the publication timestamp is written on insert only.
func UpsertVideoFromActivity(ctx context.Context, tx *sql.Tx, channel *models.Channel, item *gabs.Container, now time.Time) (*models.Video, error) {
	externalID := VideoIdentity(item)
	if externalID == "" {
		return nil, fmt.Errorf("mapper.UpsertVideoFromActivity: %w", ErrNotIngestible)
	}

	title := stringAt(item, "snippet.title")
	description := stringAt(item, "snippet.description")
	publishedAt := timeutil.ParseTimestampOrNil(stringAt(item, "snippet.publishedAt"))

	var video models.Video
	if err := sorm.FindFirstWhere(ctx, tx, &video, "where external_id = ?", externalID); err != nil {
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("mapper.UpsertVideoFromActivity: %w", err)
		}

		video.CreatedAt = now
		video.ExternalID = externalID
		video.ChannelID = &channel.ID
		video.ChannelExternalID = channel.ExternalID
		video.Title = title
		video.Description = description
		video.PublishedAt = publishedAt

		if err := sorm.CreateRecord(ctx, tx, &video); err != nil {
			return nil, fmt.Errorf("mapper.UpsertVideoFromActivity: %w", err)
		}
	} else {
		video.ChannelID = &channel.ID
		video.ChannelExternalID = channel.ExternalID
		video.Title = title
		video.Description = description

		if err := sorm.SaveRecord(ctx, tx, &video); err != nil {
			return nil, fmt.Errorf("mapper.UpsertVideoFromActivity: %w", err)
		}
	}

	return &video, nil
}

// UpsertCommentTree handles one item from a comment listing. A comment-thread
// wrapper is unwrapped into its top-level comment plus any replies inlined in
// the same payload; a bare comment (as replies arrive) is stored as-is.
// Returns how many comment rows were written.
func UpsertCommentTree(ctx context.Context, tx *sql.Tx, video *models.Video, item *gabs.Container, now time.Time) (int, error) {
	if !item.ExistsP("snippet.topLevelComment") {
		if err := upsertComment(ctx, tx, video, item, 0, now); err != nil {
			return 0, fmt.Errorf("mapper.UpsertCommentTree: %w", err)
		}

		return 1, nil
	}

	totalReplyCount := intAt(item, "snippet.totalReplyCount")

	if err := upsertComment(ctx, tx, video, item.Path("snippet.topLevelComment"), totalReplyCount, now); err != nil {
		return 0, fmt.Errorf("mapper.UpsertCommentTree: %w", err)
	}

	written := 1

	for _, reply := range item.Path("replies.comments").Children() {
		if err := upsertComment(ctx, tx, video, reply, 0, now); err != nil {
			if err == ErrNotIngestible {
				continue
			}

			return written, fmt.Errorf("mapper.UpsertCommentTree: %w", err)
		}

		written++
	}

	return written, nil
}

func upsertComment(ctx context.Context, tx *sql.Tx, video *models.Video, c *gabs.Container, totalReplyCount int, now time.Time) error {
	externalID := stringAt(c, "id")
	if externalID == "" {
		return ErrNotIngestible
	}

	text := stringAt(c, "snippet.textDisplay")
	if text == "" {
		text = stringAt(c, "snippet.textOriginal")
	}

	var comment models.Comment
	if err := sorm.FindFirstWhere(ctx, tx, &comment, "where external_id = ?", externalID); err != nil {
		if err != sql.ErrNoRows {
			return fmt.Errorf("upsertComment: %w", err)
		}

		comment.CreatedAt = now
		comment.ExternalID = externalID
	}

	comment.VideoID = &video.ID
	comment.VideoExternalID = video.ExternalID
	// the parent id is taken as given even when the parent row is not known
	// yet; the id comes from the platform, so a dangling reference is a
	// read-time concern
	comment.ParentExternalID = stringAt(c, "snippet.parentId")
	comment.AuthorChannelID = stringAt(c, "snippet.authorChannelId.value")
	comment.AuthorDisplayName = stringAt(c, "snippet.authorDisplayName")
	comment.Text = text
	comment.LikeCount = intAt(c, "snippet.likeCount")
	comment.TotalReplyCount = totalReplyCount
	comment.PublishedAt = timeutil.ParseTimestampOrNil(stringAt(c, "snippet.publishedAt"))
	comment.UpdatedAt = timeutil.ParseTimestampOrNil(stringAt(c, "snippet.updatedAt"))
	comment.LastFetchedAt = ptr.Time(now)

	if comment.ID == 0 {
		if err := sorm.CreateRecord(ctx, tx, &comment); err != nil {
			return fmt.Errorf("upsertComment: %w", err)
		}

		return nil
	}

	if err := sorm.SaveRecord(ctx, tx, &comment); err != nil {
		return fmt.Errorf("upsertComment: %w", err)
	}

	return nil
}

func stringAt(c *gabs.Container, path string) string {
	if c == nil || !c.ExistsP(path) {
		return ""
	}

	if s, ok := c.Path(path).Data().(string); ok {
		return s
	}

	return ""
}

func intAt(c *gabs.Container, path string) int {
	if c == nil || !c.ExistsP(path) {
		return 0
	}

	switch v := c.Path(path).Data().(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
