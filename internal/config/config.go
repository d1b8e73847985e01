package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/ytmeta/internal/freshness"
	"fknsrs.biz/p/ytmeta/internal/quota"
)

type LevelList []logrus.Level

func (a LevelList) MarshalText() ([]byte, error) {
	if len(a) == 0 {
		return []byte("-"), nil
	}

	var s string

	for i, e := range a {
		if i != 0 {
			s += ","
		}

		s += e.String()
	}

	return []byte(s), nil
}

func (a *LevelList) UnmarshalText(d []byte) error {
	if string(d) == "" || string(d) == "-" {
		*a = LevelList{}
		return nil
	}

	var aa LevelList

	for _, e := range strings.Split(string(d), ",") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}

		l, err := logrus.ParseLevel(e)
		if err != nil {
			return fmt.Errorf("config.LevelList.UnmarshalText: could not parse value as logrus level: %w", err)
		}

		aa = append(aa, l)
	}

	*a = aa

	return nil
}

type LogQueries struct {
	Enabled    bool
	SlowerThan time.Duration
}

func (l LogQueries) String() string {
	if l.Enabled {
		if l.SlowerThan != 0 {
			return ">" + l.SlowerThan.String()
		}

		return "all"
	}

	return "none"
}

func (l LogQueries) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *LogQueries) UnmarshalText(d []byte) error {
	s := string(d)

	switch s {
	case "all":
		l.Enabled = true
		l.SlowerThan = 0
		return nil
	case "", "none":
		l.Enabled = false
		l.SlowerThan = 0
		return nil
	default:
		if s[0] == '>' && len(s) > 1 {
			d, err := time.ParseDuration(s[1:])
			if err != nil {
				return fmt.Errorf("config.LogQueries.UnmarshalText: could not parse value as duration: %w", err)
			}
			l.Enabled = true
			l.SlowerThan = d
			return nil
		}

		return fmt.Errorf("config.LogQueries.UnmarshalText: unrecognised input %q; valid options are none, all, or >x where x is a duration", s)
	}
}

func (l *LogQueries) IsZero() bool {
	return l.Enabled == false && l.SlowerThan == 0
}

type Config struct {
	Config                string             `name:"config" toml:"config" yaml:"config" help:"Config file location."`
	LogLevel              logrus.Level       `name:"log_level" toml:"log_level" yaml:"log_level" help:"Global log level."`
	LogDebugLevels        LevelList          `name:"log_debug_levels" toml:"log_debug_levels" yaml:"log_debug_levels" help:"Which log levels to include stack data on."`
	LogQueries            LogQueries         `name:"log_queries" toml:"log_queries" yaml:"log_queries" help:"Log SQL queries."`
	LogSORM               bool               `name:"log_sorm" toml:"log_sorm" yaml:"log_sorm" help:"Log SORM queries."`
	ApplicationAddr       string             `name:"application_addr" toml:"application_addr" yaml:"application_addr" help:"Address to listen on for the status server."`
	ApplicationDatabase   string             `name:"application_database" toml:"application_database" yaml:"application_database" help:"Database location."`
	ApplicationCachePath  string             `name:"application_cache_path" toml:"application_cache_path" yaml:"application_cache_path" help:"Location for the HTTP client cache."`
	APIKey                string             `name:"api_key" toml:"api_key" yaml:"api_key" help:"YouTube Data API key."`
	APIBaseURL            string             `name:"api_base_url" toml:"api_base_url" yaml:"api_base_url" help:"Override for the Data API base URL."`
	APIPageSize           int                `name:"api_page_size" toml:"api_page_size" yaml:"api_page_size" help:"Page size for list calls."`
	APIRequestsPerSecond  int                `name:"api_requests_per_second" toml:"api_requests_per_second" yaml:"api_requests_per_second" help:"Client-side request rate cap. Zero disables the limiter."`
	QuotaBudget           string             `name:"quota_budget" toml:"quota_budget" yaml:"quota_budget" help:"External call budget for this run. 'unlimited' or a negative number disables the limit."`
	QuotaLogEvery         int                `name:"quota_log_every" toml:"quota_log_every" yaml:"quota_log_every" help:"Log quota progress every Nth authorized call."`
	ChannelRefreshSeconds string             `name:"channel_refresh_seconds" toml:"channel_refresh_seconds" yaml:"channel_refresh_seconds" help:"How stale a channel may get before it is refetched."`
	VideoRefreshTiers     freshness.TierList `name:"video_refresh_tiers" toml:"video_refresh_tiers" yaml:"video_refresh_tiers" help:"Tiered video refresh policy, e.g. 0-12h=5m,12h-1d=10m,1d-=1d."`
	SeedReloadSeconds     int                `name:"seed_reload_seconds" toml:"seed_reload_seconds" yaml:"seed_reload_seconds" help:"How often to rerun the seed import."`
	SeedChannelsFile      string             `name:"seed_channels_file" toml:"seed_channels_file" yaml:"seed_channels_file" help:"CSV seed file for channels."`
	SeedVideosFile        string             `name:"seed_videos_file" toml:"seed_videos_file" yaml:"seed_videos_file" help:"CSV seed file for videos."`
}

// Budget resolves the configured quota budget. Unset or non-numeric input
// falls back to the default; "unlimited" and negative numbers both mean no
// limit.
func (c Config) Budget() int {
	s := strings.TrimSpace(c.QuotaBudget)

	if strings.EqualFold(s, "unlimited") {
		return -1
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return quota.DefaultBudget
	}

	return n
}

// ChannelMaxAge resolves the channel staleness threshold, falling back when
// the value is unset or not a number.
func (c Config) ChannelMaxAge() time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(c.ChannelRefreshSeconds))
	if err != nil || n <= 0 {
		return freshness.DefaultChannelMaxAge
	}

	return time.Second * time.Duration(n)
}

// SeedReloadInterval resolves the periodic seed reload interval.
func (c Config) SeedReloadInterval() time.Duration {
	if c.SeedReloadSeconds <= 0 {
		return time.Minute * 5
	}

	return time.Second * time.Duration(c.SeedReloadSeconds)
}
