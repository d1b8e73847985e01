// Package catchpanic folds panics into error values so one bad pass cannot
// take down the whole loop.
package catchpanic

import (
	"fmt"
)

func Catch(fn func()) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if e, ok := v.(error); ok {
				err = fmt.Errorf("catchpanic.Catch: %w", e)
			} else {
				err = fmt.Errorf("catchpanic.Catch: %v", v)
			}
		}
	}()

	fn()

	return
}

// CatchErr0 runs a function that already returns an error, so a panic and a
// plain failure come back through the same channel.
func CatchErr0(fn func() error) error {
	var err error

	if perr := Catch(func() { err = fn() }); perr != nil {
		return perr
	}

	return err
}
