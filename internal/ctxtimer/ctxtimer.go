// Package ctxtimer records named start times so the logging middleware can
// attach request durations.
package ctxtimer

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/ytmeta/internal/ctxclock"
	"fknsrs.biz/p/ytmeta/internal/ctxlogger"
)

var (
	ErrNotMarked = fmt.Errorf("ctxtimer.ErrNotMarked: no mark found with this name")
)

type Timer struct {
	mu    sync.Mutex
	marks map[string]time.Time
}

func NewTimer() *Timer {
	return &Timer{marks: make(map[string]time.Time)}
}

func (t *Timer) Mark(name string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.marks[name] = at
}

func (t *Timer) Elapsed(name string, at time.Time) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start, ok := t.marks[name]
	if !ok {
		return 0, ErrNotMarked
	}

	return at.Sub(start), nil
}

// context registration

var timerKey int

func WithTimer(ctx context.Context, t *Timer) context.Context {
	return context.WithValue(ctx, &timerKey, t)
}

func GetTimer(ctx context.Context) *Timer {
	if v := ctx.Value(&timerKey); v != nil {
		return v.(*Timer)
	}

	return nil
}

// middleware

const requestMark = "ctxtimer.request"

// Register gives each request its own timer when t is nil; a non-nil timer is
// shared across requests, which is only useful in tests.
func Register(t *Timer) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		tt := t
		if tt == nil {
			tt = NewTimer()
		}

		next(rw, r.WithContext(WithTimer(r.Context(), tt)))
	}
}

func AddLoggerHooks() func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(ctxlogger.AddHookPair(
			r.Context(),
			func(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger {
				t := GetTimer(r.Context())
				if t == nil {
					l.Warning("timer middleware could not find timer in context")
					return l
				}

				now, err := ctxclock.Now(r.Context())
				if err != nil {
					l.WithError(err).Error("timer middleware could not get start time")
					return l
				}

				t.Mark(requestMark, now)

				return l
			},
			func(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger {
				t := GetTimer(r.Context())
				if t == nil {
					l.Warning("timer middleware could not find timer in context")
					return l
				}

				now, err := ctxclock.Now(r.Context())
				if err != nil {
					l.WithError(err).Error("timer middleware could not get end time")
					return l
				}

				elapsed, err := t.Elapsed(requestMark, now)
				if err != nil {
					l.WithError(err).Error("timer middleware could not get elapsed time")
					return l
				}

				return l.WithFields(logrus.Fields{
					"http.duration": elapsed,
				})
			},
		)))
	}
}
