// Package errorspkg provides common app errors.
package errorspkg

import "errors"

// ErrInternal indicates internal server error, including storage being unavailable.
var ErrInternal = errors.New("internal")
