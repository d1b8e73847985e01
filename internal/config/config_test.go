package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytmeta/internal/freshness"
	"fknsrs.biz/p/ytmeta/internal/quota"
)

var budgetTests = []struct {
	name  string
	input string
	value int
}{
	{name: "unset falls back to the default", input: "", value: quota.DefaultBudget},
	{name: "numeric", input: "2500", value: 2500},
	{name: "unlimited keyword", input: "unlimited", value: -1},
	{name: "unlimited keyword is case insensitive", input: "Unlimited", value: -1},
	{name: "negative number means unlimited", input: "-1", value: -1},
	{name: "zero is a real budget", input: "0", value: 0},
	{name: "garbage falls back to the default", input: "lots", value: quota.DefaultBudget},
	{name: "surrounding whitespace is ignored", input: "  300 ", value: 300},
}

func TestConfigBudget(t *testing.T) {
	for _, tc := range budgetTests {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			a.Equal(tc.value, Config{QuotaBudget: tc.input}.Budget())
		})
	}
}

var channelMaxAgeTests = []struct {
	name  string
	input string
	value time.Duration
}{
	{name: "unset falls back to the default", input: "", value: freshness.DefaultChannelMaxAge},
	{name: "numeric seconds", input: "1800", value: time.Minute * 30},
	{name: "garbage falls back to the default", input: "soon", value: freshness.DefaultChannelMaxAge},
	{name: "zero falls back to the default", input: "0", value: freshness.DefaultChannelMaxAge},
	{name: "negative falls back to the default", input: "-60", value: freshness.DefaultChannelMaxAge},
}

func TestConfigChannelMaxAge(t *testing.T) {
	for _, tc := range channelMaxAgeTests {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			a.Equal(tc.value, Config{ChannelRefreshSeconds: tc.input}.ChannelMaxAge())
		})
	}
}

func TestConfigSeedReloadInterval(t *testing.T) {
	a := assert.New(t)

	a.Equal(time.Minute*5, Config{}.SeedReloadInterval())
	a.Equal(time.Second*30, Config{SeedReloadSeconds: 30}.SeedReloadInterval())
}

var logQueriesUnmarshalTextTests = []struct {
	name  string
	input string
	value LogQueries
	error string
}{
	{name: "none", input: "none", value: LogQueries{}, error: ""},
	{name: "empty", input: "", value: LogQueries{}, error: ""},
	{name: "all", input: "all", value: LogQueries{Enabled: true}, error: ""},
	{name: "slower than", input: ">250ms", value: LogQueries{Enabled: true, SlowerThan: time.Millisecond * 250}, error: ""},
	{name: "invalid", input: "sometimes", value: LogQueries{}, error: "config.LogQueries.UnmarshalText: unrecognised input \"sometimes\"; valid options are none, all, or >x where x is a duration"},
}

func TestLogQueriesUnmarshalText(t *testing.T) {
	for _, tc := range logQueriesUnmarshalTextTests {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			var l LogQueries

			err := l.UnmarshalText([]byte(tc.input))

			if tc.error != "" {
				a.EqualError(err, tc.error)
			} else {
				a.NoError(err)
				a.Equal(tc.value, l)
			}
		})
	}
}
