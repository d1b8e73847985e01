// Package ctxclock carries the time source in the context. Everything that
// makes a freshness decision asks the context clock, never time.Now, so tests
// control the wall clock completely.
package ctxclock

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/ytmeta/internal/ctxlogger"
)

var (
	ErrNoClock     = fmt.Errorf("ctxclock.ErrNoClock: no clock found in context")
	ErrNoTimesLeft = fmt.Errorf("ctxclock.ErrNoTimesLeft: no times left")
)

type Clock interface {
	Now() (time.Time, error)
}

// context registration

var clockKey int

func WithClock(ctx context.Context, c Clock) context.Context {
	if c == nil {
		c = NewRealClock()
	}

	return context.WithValue(ctx, &clockKey, c)
}

func GetClock(ctx context.Context) Clock {
	if v := ctx.Value(&clockKey); v != nil {
		return v.(Clock)
	}

	return nil
}

func Now(ctx context.Context) (time.Time, error) {
	c := GetClock(ctx)
	if c == nil {
		return time.Time{}, fmt.Errorf("ctxclock.Now: %w", ErrNoClock)
	}

	return c.Now()
}

// real clock

type realClock struct{}

func NewRealClock() Clock {
	return realClock{}
}

func (realClock) Now() (time.Time, error) {
	return time.Now(), nil
}

// static clock, frozen at one instant

type staticClock struct {
	t time.Time
}

func NewStaticClock(t time.Time) Clock {
	return &staticClock{t: t}
}

func (c *staticClock) Now() (time.Time, error) {
	return c.t, nil
}

// scripted clock for tests: hands out a fixed sequence of results, then fails

type TestClockResult struct {
	Time  time.Time
	Error error
}

type testClock struct {
	mu sync.Mutex
	a  []TestClockResult
	i  int
}

func NewTestClock(results []TestClockResult) Clock {
	return &testClock{a: results}
}

func (c *testClock) Now() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.i >= len(c.a) {
		return time.Time{}, fmt.Errorf("ctxclock.testClock.Now: %w", ErrNoTimesLeft)
	}

	r := c.a[c.i]
	c.i++

	return r.Time, r.Error
}

// middleware

func Register(c Clock) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithClock(r.Context(), c)))
	}
}

func AddLoggerHooks() func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(ctxlogger.AddHookPair(
			r.Context(),
			func(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger {
				now, err := Now(r.Context())
				if err != nil {
					l.WithError(err).Error("clock middleware could not get start time")
					return l
				}

				return l.WithFields(logrus.Fields{
					"http.request_start": now.Format(time.RFC3339),
				})
			},
			func(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger {
				now, err := Now(r.Context())
				if err != nil {
					l.WithError(err).Error("clock middleware could not get end time")
					return l
				}

				return l.WithFields(logrus.Fields{
					"http.response_end": now.Format(time.RFC3339),
				})
			},
		)))
	}
}
