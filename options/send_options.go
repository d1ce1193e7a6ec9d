// Package options carries the per-operation knobs callers hand to a session.
// Option structs use pointer fields so an unset knob is distinguishable from
// an explicit zero and falls back to the session default.
package options

import "time"

type SendOptions struct {
	Timeout *time.Duration
}

// SetTimeout bounds the wait for the correlated response. Zero or less
// disables the expiry timer and the request waits indefinitely.
func (opt *SendOptions) SetTimeout(timeout time.Duration) {
	opt.Timeout = &timeout
}

func Send() *SendOptions {
	return &SendOptions{}
}

// MergeSendOptions flattens the caller's variadic options into one effective
// set, later options win and nil entries are skipped.
func MergeSendOptions(opts ...*SendOptions) *SendOptions {
	so := &SendOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if opt.Timeout != nil {
			so.Timeout = opt.Timeout
		}
	}
	return so
}
