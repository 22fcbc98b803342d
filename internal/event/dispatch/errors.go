package dispatch

import "errors"

// ErrTimeout is the error recorded for a task whose timeout expired.
var ErrTimeout = errors.New("handler timeout exceeded")
