// Package syncer drives the repeating sync loop: seed bootstrap, then channel
// passes and video passes over whatever the freshness selector says is due.
// Work is strictly sequential and commits once per entity, so an interrupt or
// quota stop loses at most the entity in flight.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/ytmeta/internal/catchpanic"
	"fknsrs.biz/p/ytmeta/internal/ctxclock"
	"fknsrs.biz/p/ytmeta/internal/ctxdb"
	"fknsrs.biz/p/ytmeta/internal/ctxlogger"
	"fknsrs.biz/p/ytmeta/internal/freshness"
	"fknsrs.biz/p/ytmeta/internal/mapper"
	"fknsrs.biz/p/ytmeta/internal/paginate"
	"fknsrs.biz/p/ytmeta/internal/ptr"
	"fknsrs.biz/p/ytmeta/internal/seed"
	"fknsrs.biz/p/ytmeta/internal/ytapi"
	"fknsrs.biz/p/ytmeta/models"
)

const (
	DefaultSeedReloadInterval = time.Minute * 5
	DefaultIdleDelay          = time.Second * 5
)

type Runner struct {
	Client             *ytapi.Client
	ChannelMaxAge      time.Duration
	Tiers              freshness.TierList
	SeedReloadInterval time.Duration
	SeedChannelsFile   string
	SeedVideosFile     string
	IdleDelay          time.Duration
}

// Run loops until the context is cancelled: reload seeds when the periodic
// interval has elapsed, then a channel pass, then a video pass. A panic in a
// pass is contained and logged; the loop carries on with the next iteration.
func (r *Runner) Run(ctx context.Context) error {
	l := ctxlogger.GetLogger(ctx)

	seedReloadInterval := r.SeedReloadInterval
	if seedReloadInterval <= 0 {
		seedReloadInterval = DefaultSeedReloadInterval
	}

	idleDelay := r.IdleDelay
	if idleDelay <= 0 {
		idleDelay = DefaultIdleDelay
	}

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return fmt.Errorf("syncer.Runner.Run: %w", err)
	}

	// bootstrap happens before any fetch activity
	if err := r.ReloadSeeds(ctx); err != nil {
		l.WithError(err).Warn("seed bootstrap failed")
	}

	nextSeedReload := now.Add(seedReloadInterval)

	for {
		if ctx.Err() != nil {
			return nil
		}

		now, err := ctxclock.Now(ctx)
		if err != nil {
			return fmt.Errorf("syncer.Runner.Run: %w", err)
		}

		if !now.Before(nextSeedReload) {
			if err := r.ReloadSeeds(ctx); err != nil {
				l.WithError(err).Warn("periodic seed reload failed")
			}

			nextSeedReload = now.Add(seedReloadInterval)
		}

		if err := catchpanic.CatchErr0(func() error { return r.ChannelPass(ctx, nextSeedReload) }); err != nil {
			l.WithError(err).Error("channel pass failed")
		}

		if err := catchpanic.CatchErr0(func() error { return r.VideoPass(ctx, nextSeedReload) }); err != nil {
			l.WithError(err).Error("video pass failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(idleDelay):
		}
	}
}

// ReloadSeeds reruns the seed import for channels and videos. Missing files
// are skipped silently; seeding is optional once the store has content.
func (r *Runner) ReloadSeeds(ctx context.Context) error {
	if r.SeedChannelsFile != "" {
		if err := seed.ImportChannels(ctx, r.SeedChannelsFile); err != nil {
			return fmt.Errorf("syncer.Runner.ReloadSeeds: %w", err)
		}
	}

	if r.SeedVideosFile != "" {
		if err := seed.ImportVideos(ctx, r.SeedVideosFile); err != nil {
			return fmt.Errorf("syncer.Runner.ReloadSeeds: %w", err)
		}
	}

	return nil
}

// ChannelPass drains the activity feed of every due channel, upserting the
// uploads it finds. The pass gives up its slot at the deadline (the next
// periodic seed reload) without losing already-committed channels; a zero
// deadline means no limit.
func (r *Runner) ChannelPass(ctx context.Context, deadline time.Time) error {
	l := ctxlogger.GetLogger(ctx)

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return fmt.Errorf("syncer.Runner.ChannelPass: %w", err)
	}

	channels, err := freshness.DueChannels(ctx, ctxdb.GetDB(ctx), now, r.ChannelMaxAge)
	if err != nil {
		return fmt.Errorf("syncer.Runner.ChannelPass: %w", err)
	}

	for i := range channels {
		if ctx.Err() != nil {
			return nil
		}

		now, err := ctxclock.Now(ctx)
		if err != nil {
			return fmt.Errorf("syncer.Runner.ChannelPass: %w", err)
		}

		if !deadline.IsZero() && now.After(deadline) {
			return nil
		}

		if err := r.syncChannel(ctx, &channels[i]); err != nil {
			l.WithError(err).WithFields(logrus.Fields{
				"sync.channel_id": channels[i].ExternalID,
			}).Warn("could not sync channel")
		}
	}

	return nil
}

func (r *Runner) syncChannel(ctx context.Context, channel *models.Channel) error {
	l := ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
		"sync.channel_id": channel.ExternalID,
	})

	res := paginate.DrainMatching(ctx, func(ctx context.Context, pageToken string) (*ytapi.Page, error) {
		return r.Client.ListChannelActivities(ctx, channel.ExternalID, pageToken)
	}, mapper.IsUpload)

	if res.Err != nil {
		// partial-success policy: keep whatever pages arrived
		l.WithError(res.Err).WithFields(logrus.Fields{
			"sync.items": len(res.Items),
		}).Warn("activity drain ended early")
	}

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return fmt.Errorf("syncer.Runner.syncChannel: %w", err)
	}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, item := range res.Items {
			if _, err := mapper.UpsertVideoFromActivity(ctx, tx, channel, item, now); err != nil {
				if errors.Is(err, mapper.ErrNotIngestible) {
					l.Debug("skipping activity item without a video id")
					continue
				}

				return err
			}
		}

		channel.LastFetchedAt = ptr.Time(now)

		return sorm.SaveRecord(ctx, tx, channel)
	}); err != nil {
		return fmt.Errorf("syncer.Runner.syncChannel: %w", err)
	}

	l.WithFields(logrus.Fields{
		"sync.videos": len(res.Items),
	}).Info("channel synced")

	return nil
}

// VideoPass drains comment threads for every video the tiered selector says
// is due. Comments being disabled is terminal for that video this pass but
// never fatal; its timestamp still advances so it is not retried until the
// next staleness window.
func (r *Runner) VideoPass(ctx context.Context, deadline time.Time) error {
	l := ctxlogger.GetLogger(ctx)

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return fmt.Errorf("syncer.Runner.VideoPass: %w", err)
	}

	videos, err := freshness.DueVideos(ctx, ctxdb.GetDB(ctx), now, r.Tiers)
	if err != nil {
		return fmt.Errorf("syncer.Runner.VideoPass: %w", err)
	}

	for i := range videos {
		if ctx.Err() != nil {
			return nil
		}

		now, err := ctxclock.Now(ctx)
		if err != nil {
			return fmt.Errorf("syncer.Runner.VideoPass: %w", err)
		}

		if !deadline.IsZero() && now.After(deadline) {
			return nil
		}

		if err := r.syncVideoComments(ctx, &videos[i]); err != nil {
			l.WithError(err).WithFields(logrus.Fields{
				"sync.video_id": videos[i].ExternalID,
			}).Warn("could not sync video comments")
		}
	}

	return nil
}

func (r *Runner) syncVideoComments(ctx context.Context, video *models.Video) error {
	l := ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
		"sync.video_id": video.ExternalID,
	})

	res := paginate.Drain(ctx, func(ctx context.Context, pageToken string) (*ytapi.Page, error) {
		return r.Client.ListVideoComments(ctx, video.ExternalID, pageToken)
	})

	switch {
	case res.Err == nil:
		// complete enumeration
	case errors.Is(res.Err, ytapi.ErrCommentsDisabled):
		l.Info("comments are disabled for this video")
	default:
		l.WithError(res.Err).WithFields(logrus.Fields{
			"sync.items": len(res.Items),
		}).Warn("comment drain ended early")
	}

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return fmt.Errorf("syncer.Runner.syncVideoComments: %w", err)
	}

	written := 0

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, item := range res.Items {
			n, err := mapper.UpsertCommentTree(ctx, tx, video, item, now)
			if err != nil {
				if errors.Is(err, mapper.ErrNotIngestible) {
					l.Debug("skipping comment item without an id")
					continue
				}

				return err
			}

			written += n
		}

		video.LastFetchedAt = ptr.Time(now)

		return sorm.SaveRecord(ctx, tx, video)
	}); err != nil {
		return fmt.Errorf("syncer.Runner.syncVideoComments: %w", err)
	}

	l.WithFields(logrus.Fields{
		"sync.comments": written,
	}).Info("video comments synced")

	return nil
}
