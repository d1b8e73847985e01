// Package ctxconfig carries the resolved configuration in the context so
// handlers can report effective settings without a global.
package ctxconfig

import (
	"context"
	"net/http"

	"fknsrs.biz/p/ytmeta/internal/config"
)

var configKey int

func WithConfig(ctx context.Context, c config.Config) context.Context {
	return context.WithValue(ctx, &configKey, c)
}

// GetConfig returns the configuration from the context, or a zero value if
// none was registered.
func GetConfig(ctx context.Context) config.Config {
	c, _ := ctx.Value(&configKey).(config.Config)
	return c
}

func Register(c config.Config) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithConfig(r.Context(), c)))
	}
}
