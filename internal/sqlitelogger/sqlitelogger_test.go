package sqlitelogger

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func namedValues(values ...driver.Value) []driver.NamedValue {
	a := make([]driver.NamedValue, len(values))

	for i, v := range values {
		a[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}

	return a
}

var printQueryTests = []struct {
	name  string
	query string
	args  []driver.NamedValue
	value string
}{
	{
		name:  "no placeholders",
		query: "select count(*) from channels",
		args:  nil,
		value: "select count(*) from channels",
	},
	{
		name:  "values in order",
		query: "select * from videos where channel_external_id = ? and like_count > ?",
		args:  namedValues("chan_1", int64(10)),
		value: "select * from videos where channel_external_id = 'chan_1' and like_count > 10",
	},
	{
		name:  "whitespace collapsed",
		query: "select *\n\tfrom comments\n\twhere external_id = ?",
		args:  namedValues("thread_1"),
		value: "select * from comments where external_id = 'thread_1'",
	},
	{
		name:  "null and time",
		query: "update channels set last_fetched_at = ?, about = ?",
		args:  namedValues(time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC), nil),
		value: "update channels set last_fetched_at = '2023-06-15T12:00:00Z', about = NULL",
	},
	{
		name:  "more placeholders than values",
		query: "select * from videos where id = ? and title = ?",
		args:  namedValues(int64(1)),
		value: "select * from videos where id = 1 and title = ?",
	},
	{
		name:  "binary data summarized",
		query: "insert into blobs values (?)",
		args:  namedValues([]byte{0x00, 0x01}),
		value: "insert into blobs values ([2 bytes of binary data ('\\x00')])",
	},
}

func TestPrintQuery(t *testing.T) {
	for _, tc := range printQueryTests {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			a.Equal(tc.value, printQuery(tc.query, tc.args))
		})
	}
}
