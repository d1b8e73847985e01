package schema

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestMigrateIsIdempotent(t *testing.T) {
	a := assert.New(t)

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("could not open database: %v", err)
	}
	defer db.Close()

	// in-memory sqlite is per-connection
	db.SetMaxOpenConns(1)

	ctx := context.Background()

	a.NoError(Migrate(ctx, db))
	a.NoError(Migrate(ctx, db))

	for _, table := range []string{"channels", "videos", "comments"} {
		var n int
		a.NoError(db.QueryRowContext(ctx, "select count(*) from "+table).Scan(&n))
		a.Equal(0, n)
	}
}
