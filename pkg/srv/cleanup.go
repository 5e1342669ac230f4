package srv

import "context"

// cleanupService runs a release function on shutdown.
type cleanupService struct {
	cleanup func() error
}

func (c *cleanupService) Start(context.Context) error {
	return nil
}

func (c *cleanupService) Shutdown(context.Context) error {
	if c.cleanup != nil {
		return c.cleanup()
	}
	return nil
}

func NewCleanup(fn func() error) Service {
	return &cleanupService{cleanup: fn}
}
