// Package quota tracks the remaining external-call budget for a run. Every
// call to the provider has to pass through Authorize first.
package quota

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/ytmeta/internal/ctxlogger"
)

const (
	// DefaultBudget applies when the configured budget is unset or not a
	// number.
	DefaultBudget = 10000
	// DefaultLogEvery is how many authorized calls pass between progress
	// notices.
	DefaultLogEvery = 100
)

// StopFunc is invoked exactly once, when the budget hits zero. It is expected
// to flush pending work and terminate the process; if it returns anyway,
// Authorize keeps refusing nothing (the budget stays at zero and every later
// call triggers it again), so a non-terminating StopFunc is only useful in
// tests.
type StopFunc func()

type Governor struct {
	mu        sync.Mutex
	remaining int
	used      int
	logEvery  int
	onExhaust StopFunc
}

// NewGovernor creates a governor with the given budget. A negative budget
// means unlimited: Authorize always succeeds and never counts down.
func NewGovernor(budget, logEvery int, onExhaust StopFunc) *Governor {
	if logEvery <= 0 {
		logEvery = DefaultLogEvery
	}

	return &Governor{
		remaining: budget,
		logEvery:  logEvery,
		onExhaust: onExhaust,
	}
}

func (g *Governor) Unlimited() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.remaining < 0
}

func (g *Governor) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.remaining
}

func (g *Governor) Used() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.used
}

// Authorize accounts for one external call. With a positive budget it
// decrements; at exactly zero it hands control to the stop function, since
// carrying on would silently exceed the provider's limits with no way back.
func (g *Governor) Authorize(ctx context.Context) {
	g.mu.Lock()

	if g.remaining < 0 {
		g.used++
		g.mu.Unlock()
		return
	}

	if g.remaining == 0 {
		onExhaust := g.onExhaust
		g.mu.Unlock()

		ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
			"quota.used": g.Used(),
		}).Warn("quota budget exhausted, stopping")

		if onExhaust != nil {
			onExhaust()
		}

		return
	}

	g.remaining--
	g.used++
	used, remaining := g.used, g.remaining
	g.mu.Unlock()

	if used%g.logEvery == 0 {
		ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
			"quota.used":      used,
			"quota.remaining": remaining,
		}).Info("quota progress")
	}
}
