package sqlbuilderutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testRow struct {
	ID            int `sql:",table:test_rows"`
	ExternalID    string
	Title         string
	Renamed       string `sql:"other_name"`
	Skipped       string `sql:"-"`
	LastFetchedAt *time.Time
}

func TestMakeTable(t *testing.T) {
	a := assert.New(t)

	table, err := MakeTable(testRow{})
	a.NoError(err)

	// column names from tags where present, snake_cased field names otherwise
	a.Equal("external_id", table.nameMap["ExternalID"])
	a.Equal("other_name", table.nameMap["Renamed"])
	a.Equal("last_fetched_at", table.nameMap["LastFetchedAt"])

	a.NotContains(table.nameMap, "Skipped")

	// field name, lowercased field name and column name all resolve to the
	// same column
	c := table.C("ExternalID")
	if a.NotNil(c) {
		a.Equal(c, table.C("externalid"))
		a.Equal(c, table.C("external_id"))
	}
}
