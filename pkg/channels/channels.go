// Package channels holds small concurrency primitives for passing values
// between goroutines without blocking the sender.
package channels

import "errors"

var (
	ErrChannelClosed = errors.New("channel closed")
	ErrChannelFull   = errors.New("channel full")
)
