package taskqueue

import "context"

type config struct {
	ctx          context.Context
	overlapCheck bool
}

// Option configures a Queue.
type Option func(*config)

// WithContext sets the context the queue logs through. The logger is taken
// with zlog.FromContext, so a context carrying a configured logger routes
// the queue's messages there.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// WithOverlapCheck enables Claim-based detection of tasks in the same band
// touching the same region of the resource.
func WithOverlapCheck() Option {
	return func(c *config) { c.overlapCheck = true }
}

func newConfig(opts []Option) config {
	c := config{ctx: context.Background()}
	for _, o := range opts {
		o(&c)
	}
	return c
}
