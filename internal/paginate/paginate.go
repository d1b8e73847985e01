// Package paginate drains cursor-based list results into memory. Every page
// fetch is authorized against the quota governor in the context before it
// goes out.
package paginate

import (
	"context"

	"github.com/Jeffail/gabs/v2"

	"fknsrs.biz/p/ytmeta/internal/ctxquota"
	"fknsrs.biz/p/ytmeta/internal/ytapi"
)

// FetchFunc fetches one page; an empty pageToken means the first page.
type FetchFunc func(ctx context.Context, pageToken string) (*ytapi.Page, error)

// KeepFunc filters items during a drain. Items it rejects are skipped without
// ending the page loop.
type KeepFunc func(item *gabs.Container) bool

// Result is what a drain produced. Err is nil after a complete enumeration;
// otherwise it is the error that ended the drain early, with Items holding
// everything accumulated up to that point. Callers decide what the partial
// set is worth.
type Result struct {
	Items []*gabs.Container
	Err   error
}

// Drain fetches pages until one arrives without a next-page token. A fetch
// error ends the drain and is reported in the result alongside the items
// already accumulated; nothing is retried here.
func Drain(ctx context.Context, fetch FetchFunc) Result {
	return DrainMatching(ctx, fetch, nil)
}

// DrainMatching is Drain with an item filter.
func DrainMatching(ctx context.Context, fetch FetchFunc, keep KeepFunc) Result {
	var res Result

	pageToken := ""

	for {
		ctxquota.Authorize(ctx)

		page, err := fetch(ctx, pageToken)
		if err != nil {
			res.Err = err
			return res
		}

		for _, item := range page.Items {
			if keep != nil && !keep(item) {
				continue
			}

			res.Items = append(res.Items, item)
		}

		if page.NextPageToken == "" || len(page.Items) == 0 {
			return res
		}

		pageToken = page.NextPageToken
	}
}
