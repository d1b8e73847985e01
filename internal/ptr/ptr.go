// Package ptr takes the address of a literal, mostly for nullable columns.
package ptr

import (
	"time"
)

func Int(v int) *int              { return &v }
func String(v string) *string     { return &v }
func Time(v time.Time) *time.Time { return &v }
