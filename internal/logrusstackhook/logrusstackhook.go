// Package logrusstackhook attaches call stack fields to log entries at the
// configured levels.
package logrusstackhook

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/ytmeta/internal/stackutil"
)

// FilterFunc decides whether a frame appears in the output. Returning false
// drops the frame.
type FilterFunc func(index int, frame runtime.Frame) bool

func RemovePathsContaining(values []string) FilterFunc {
	return func(index int, frame runtime.Frame) bool {
		for _, value := range values {
			if strings.Contains(frame.File, value) {
				return false
			}
		}

		return true
	}
}

var (
	DefaultLevels = []logrus.Level{logrus.DebugLevel, logrus.TraceLevel}
	DefaultFilter = RemovePathsContaining([]string{"github.com/sirupsen/logrus"})
)

type StackHook struct {
	levels []logrus.Level
	filter FilterFunc
}

func NewStackHook(levels []logrus.Level, filter FilterFunc) *StackHook {
	if levels == nil {
		levels = DefaultLevels
	}

	if filter == nil {
		filter = DefaultFilter
	}

	return &StackHook{levels: levels, filter: filter}
}

func (h *StackHook) Levels() []logrus.Level { return h.levels }

func (h *StackHook) Fire(e *logrus.Entry) error {
	for index, frame := range stackutil.GetStack(25, 0) {
		if !h.filter(index, frame) {
			continue
		}

		e.Data[fmt.Sprintf("stack.%02d", index)] = stackutil.FormatStackFrame(frame)
	}

	return nil
}
