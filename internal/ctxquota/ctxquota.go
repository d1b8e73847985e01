package ctxquota

import (
	"context"
	"net/http"

	"fknsrs.biz/p/ytmeta/internal/quota"
)

// context registration

var governorKey int

func WithGovernor(ctx context.Context, g *quota.Governor) context.Context {
	return context.WithValue(ctx, &governorKey, g)
}

func GetGovernor(ctx context.Context) *quota.Governor {
	if v := ctx.Value(&governorKey); v != nil {
		return v.(*quota.Governor)
	}

	return nil
}

// Authorize accounts for one external call against the governor in the
// context. With no governor registered the call is always allowed.
func Authorize(ctx context.Context) {
	if g := GetGovernor(ctx); g != nil {
		g.Authorize(ctx)
	}
}

// middleware

func Register(g *quota.Governor) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithGovernor(r.Context(), g)))
	}
}
