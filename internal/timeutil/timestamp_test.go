package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var parseTimestampTests = []struct {
	name  string
	input string
	value time.Time
	error string
}{
	{
		name:  "whole seconds",
		input: "2023-06-15T12:00:05Z",
		value: time.Date(2023, time.June, 15, 12, 0, 5, 0, time.UTC),
		error: "",
	},
	{
		name:  "milliseconds are dropped",
		input: "2023-06-15T12:00:05.123Z",
		value: time.Date(2023, time.June, 15, 12, 0, 5, 0, time.UTC),
		error: "",
	},
	{
		name:  "nanoseconds are dropped",
		input: "2023-06-15T12:00:05.123456789Z",
		value: time.Date(2023, time.June, 15, 12, 0, 5, 0, time.UTC),
		error: "",
	},
	{
		name:  "offset is preserved",
		input: "2023-06-15T12:00:05.5+10:00",
		value: time.Date(2023, time.June, 15, 12, 0, 5, 0, time.FixedZone("", 10*60*60)),
		error: "",
	},
	{
		name:  "not a timestamp",
		input: "yesterday",
		value: time.Time{},
		error: "timeutil.ParseTimestamp: could not parse input value \"yesterday\": parsing time \"yesterday\" as \"2006-01-02T15:04:05.999999999Z07:00\": cannot parse \"yesterday\" as \"2006\"",
	},
}

func TestParseTimestamp(t *testing.T) {
	for _, tc := range parseTimestampTests {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			value, err := ParseTimestamp(tc.input)

			if tc.error != "" {
				a.EqualError(err, tc.error)
			} else {
				a.NoError(err)
				a.True(tc.value.Equal(value), "expected %s, got %s", tc.value, value)
			}
		})
	}
}

func TestParseTimestampOrNil(t *testing.T) {
	a := assert.New(t)

	a.Nil(ParseTimestampOrNil(""))
	a.Nil(ParseTimestampOrNil("not a timestamp"))

	v := ParseTimestampOrNil("2023-06-15T12:00:05.999Z")
	if a.NotNil(v) {
		a.True(time.Date(2023, time.June, 15, 12, 0, 5, 0, time.UTC).Equal(*v))
	}
}

func TestFormatTimestamp(t *testing.T) {
	a := assert.New(t)

	a.Equal("2023-06-15T12:00:05Z", FormatTimestamp(time.Date(2023, time.June, 15, 12, 0, 5, 123456789, time.UTC)))
	a.Equal("2023-06-15T02:00:05Z", FormatTimestamp(time.Date(2023, time.June, 15, 12, 0, 5, 0, time.FixedZone("", 10*60*60))))
}
