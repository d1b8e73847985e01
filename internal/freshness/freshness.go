// Package freshness decides which entities are stale enough to refetch. It
// only ever reads.
package freshness

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fknsrs.biz/p/sorm"

	"fknsrs.biz/p/ytmeta/models"
)

const (
	// DefaultChannelMaxAge applies when the configured channel refresh
	// threshold is unset or not a number.
	DefaultChannelMaxAge = time.Second * 900
)

// Tier is one age window of the video refresh policy. A video whose age
// (measured from publication, not from last fetch) falls inside the window is
// due once Refresh has elapsed since its last fetch. AgeEnd of zero means the
// window is open-ended.
type Tier struct {
	AgeStart time.Duration
	AgeEnd   time.Duration
	Refresh  time.Duration
}

func (t Tier) contains(age time.Duration) bool {
	if age < t.AgeStart {
		return false
	}

	return t.AgeEnd == 0 || age < t.AgeEnd
}

// Due reports whether a video with the given publication and last-fetch
// timestamps should be refreshed under this tier alone.
func (t Tier) Due(now time.Time, publishedAt, lastFetchedAt *time.Time) bool {
	if lastFetchedAt == nil {
		return true
	}

	// no publication timestamp sorts as infinitely old, so only open-ended
	// windows apply
	if publishedAt == nil {
		return t.AgeEnd == 0 && now.Sub(*lastFetchedAt) > t.Refresh
	}

	if !t.contains(now.Sub(*publishedAt)) {
		return false
	}

	return now.Sub(*lastFetchedAt) > t.Refresh
}

// TierList is an ordered set of windows, evaluated independently; a video is
// due if any window says so. It reads from config as a comma-separated list
// of start-end=refresh entries, e.g. "0-12h=5m,12h-1d=10m,30d-=30d" where an
// empty end leaves the window open.
type TierList []Tier

// DefaultTiers approximates engagement decay with discrete buckets: new
// videos are checked often, old ones rarely. The concrete numbers are
// configuration, not law.
func DefaultTiers() TierList {
	return TierList{
		{0, Hours(12), time.Minute * 5},
		{Hours(12), Days(1), time.Minute * 10},
		{Days(1), Days(3), time.Minute * 30},
		{Days(3), Days(7), time.Hour * 4},
		{Days(7), Days(30), Days(1)},
		{Days(30), 0, Days(30)},
	}
}

func Hours(n int) time.Duration { return time.Hour * time.Duration(n) }
func Days(n int) time.Duration  { return time.Hour * 24 * time.Duration(n) }

// Due reports whether any tier wants the video refreshed.
func (a TierList) Due(now time.Time, publishedAt, lastFetchedAt *time.Time) bool {
	for _, t := range a {
		if t.Due(now, publishedAt, lastFetchedAt) {
			return true
		}
	}

	return false
}

// MinRefresh is the shortest refresh interval of any tier, used as a coarse
// SQL prefilter before the per-tier evaluation.
func (a TierList) MinRefresh() time.Duration {
	var min time.Duration

	for i, t := range a {
		if i == 0 || t.Refresh < min {
			min = t.Refresh
		}
	}

	return min
}

func (a TierList) MarshalText() ([]byte, error) {
	if len(a) == 0 {
		return []byte("-"), nil
	}

	var parts []string

	for _, t := range a {
		end := ""
		if t.AgeEnd != 0 {
			end = formatDuration(t.AgeEnd)
		}

		parts = append(parts, fmt.Sprintf("%s-%s=%s", formatDuration(t.AgeStart), end, formatDuration(t.Refresh)))
	}

	return []byte(strings.Join(parts, ",")), nil
}

func (a *TierList) UnmarshalText(d []byte) error {
	if string(d) == "" || string(d) == "-" {
		*a = DefaultTiers()
		return nil
	}

	var aa TierList

	for _, part := range strings.Split(string(d), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		window, refresh, found := strings.Cut(part, "=")
		if !found {
			return fmt.Errorf("freshness.TierList.UnmarshalText: entry %q is missing '='", part)
		}

		start, end, found := strings.Cut(window, "-")
		if !found {
			return fmt.Errorf("freshness.TierList.UnmarshalText: entry %q is missing '-' in its age window", part)
		}

		var t Tier
		var err error

		if t.AgeStart, err = parseDuration(start); err != nil {
			return fmt.Errorf("freshness.TierList.UnmarshalText: entry %q: %w", part, err)
		}
		if end != "" {
			if t.AgeEnd, err = parseDuration(end); err != nil {
				return fmt.Errorf("freshness.TierList.UnmarshalText: entry %q: %w", part, err)
			}
		}
		if t.Refresh, err = parseDuration(refresh); err != nil {
			return fmt.Errorf("freshness.TierList.UnmarshalText: entry %q: %w", part, err)
		}

		aa = append(aa, t)
	}

	*a = aa

	return nil
}

// parseDuration is time.ParseDuration plus a "d" suffix for whole days, which
// the refresh windows use constantly.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if s == "0" {
		return 0, nil
	}

	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("could not parse %q as a number of days: %w", s, err)
		}

		return Days(n), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("could not parse %q as a duration: %w", s, err)
	}

	return d, nil
}

func formatDuration(d time.Duration) string {
	if d != 0 && d%Days(1) == 0 {
		return strconv.Itoa(int(d/Days(1))) + "d"
	}

	return d.String()
}

// DueChannels returns every channel that has never been fetched or whose last
// fetch is older than maxAge, most stale first.
func DueChannels(ctx context.Context, db sorm.Querier, now time.Time, maxAge time.Duration) ([]models.Channel, error) {
	if maxAge <= 0 {
		maxAge = DefaultChannelMaxAge
	}

	var channels []models.Channel
	if err := sorm.FindWhere(
		ctx, db, &channels,
		"where last_fetched_at is null or last_fetched_at < ? order by last_fetched_at asc",
		now.Add(-maxAge),
	); err != nil {
		return nil, fmt.Errorf("freshness.DueChannels: %w", err)
	}

	return channels, nil
}

// DueVideos returns the set of videos due under any tier. The SQL narrows
// candidates to those not fetched within the shortest refresh interval; the
// per-tier decision happens here so there is a single source of truth for the
// bucket rules.
func DueVideos(ctx context.Context, db sorm.Querier, now time.Time, tiers TierList) ([]models.Video, error) {
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}

	var candidates []models.Video
	if err := sorm.FindWhere(
		ctx, db, &candidates,
		"where last_fetched_at is null or last_fetched_at < ? order by last_fetched_at asc",
		now.Add(-tiers.MinRefresh()),
	); err != nil {
		return nil, fmt.Errorf("freshness.DueVideos: %w", err)
	}

	var due []models.Video
	for _, v := range candidates {
		if tiers.Due(now, v.PublishedAt, v.LastFetchedAt) {
			due = append(due, v)
		}
	}

	return due, nil
}
