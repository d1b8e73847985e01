// Package ctxlogger carries the logrus logger in the context, plus a hook
// mechanism other middleware uses to add fields to the request log lines.
package ctxlogger

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
)

// context registration

var loggerKey int

func WithLogger(ctx context.Context, l logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, &loggerKey, l)
}

func GetLogger(ctx context.Context) logrus.FieldLogger {
	if v := ctx.Value(&loggerKey); v != nil {
		return v.(logrus.FieldLogger)
	}

	return logrus.StandardLogger()
}

// hooks

// Hook decorates the request logger before the handler runs and again after
// it finishes, typically to attach timing fields.
type Hook interface {
	Before(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger
	After(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger
}

type HookFunc func(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger

type HookPair struct {
	BeforeFunc HookFunc
	AfterFunc  HookFunc
}

func NewHookPair(beforeFunc, afterFunc HookFunc) *HookPair {
	return &HookPair{BeforeFunc: beforeFunc, AfterFunc: afterFunc}
}

func (p *HookPair) Before(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger {
	if p.BeforeFunc == nil {
		return l
	}

	return p.BeforeFunc(rw, r, l)
}

func (p *HookPair) After(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger {
	if p.AfterFunc == nil {
		return l
	}

	return p.AfterFunc(rw, r, l)
}

// the hook set lives in the context as a pointer so hooks added further down
// the middleware chain are visible to the Log middleware at the top

var hookSetKey int

type hookSet struct {
	a []Hook
}

func getHookSet(ctx context.Context) *hookSet {
	if v := ctx.Value(&hookSetKey); v != nil {
		return v.(*hookSet)
	}

	return nil
}

func withHookSet(ctx context.Context, hooks *hookSet) context.Context {
	return context.WithValue(ctx, &hookSetKey, hooks)
}

func AddHook(ctx context.Context, hook Hook) context.Context {
	hooks := getHookSet(ctx)
	if hooks == nil {
		hooks = &hookSet{}
		ctx = withHookSet(ctx, hooks)
	}

	hooks.a = append(hooks.a, hook)

	return ctx
}

func AddHookPair(ctx context.Context, beforeFunc, afterFunc HookFunc) context.Context {
	return AddHook(ctx, NewHookPair(beforeFunc, afterFunc))
}

// middleware

func Register(l logrus.FieldLogger) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		ctx := withHookSet(WithLogger(r.Context(), l), &hookSet{})

		next(rw, r.WithContext(ctx))
	}
}

// Log writes a line at the start and end of each request. Hooks registered by
// later middleware run around the handler to decorate the finish line.
func Log() func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		hooks := getHookSet(r.Context())

		var l logrus.FieldLogger = GetLogger(r.Context()).WithFields(logrus.Fields{
			"http.method":     r.Method,
			"http.path":       r.URL.String(),
			"http.host":       r.Host,
			"http.referer":    r.Header.Get("referer"),
			"http.user_agent": r.Header.Get("user-agent"),
		})

		if hooks != nil {
			for _, hook := range hooks.a {
				l = hook.Before(rw, r, l)
			}
		}

		defer func() {
			if nrw, ok := rw.(interface {
				Status() int
				Size() int
			}); ok {
				l = l.WithFields(logrus.Fields{
					"http.status_code":   nrw.Status(),
					"http.response_size": nrw.Size(),
				})
			}

			if hooks != nil {
				for _, hook := range hooks.a {
					l = hook.After(rw, r, l)
				}
			}

			l.Info("http request finished")
		}()

		l.Info("http request started")

		next(rw, r)
	}
}
