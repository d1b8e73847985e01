// Package ctxhttpclient carries an http.Client in the context so outbound
// requests pick up the process-wide transport (and its cache) while tests can
// substitute a server-local client.
package ctxhttpclient

import (
	"context"
	"net/http"
)

var httpClientKey int

func WithHTTPClient(ctx context.Context, httpClient *http.Client) context.Context {
	return context.WithValue(ctx, &httpClientKey, httpClient)
}

// GetHTTPClient falls back to http.DefaultClient so callers never have to
// nil-check.
func GetHTTPClient(ctx context.Context) *http.Client {
	if httpClient, ok := ctx.Value(&httpClientKey).(*http.Client); ok {
		return httpClient
	}

	return http.DefaultClient
}

func Register(httpClient *http.Client) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithHTTPClient(r.Context(), httpClient)))
	}
}
