package srv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	name  string
	calls *[]string
	alive bool
}

func (r *recorder) Start(context.Context) error { return nil }

func (r *recorder) Shutdown(ctx context.Context) error {
	r.alive = ctx.Err() == nil
	*r.calls = append(*r.calls, r.name)
	return nil
}

func TestShutdownServices_OrderAndLiveContext(t *testing.T) {
	var calls []string
	a := &recorder{name: "debate", calls: &calls}
	b := &recorder{name: "http", calls: &calls}
	closed := false
	c := NewCleanup(func() error { closed = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ShutdownServices(ctx, []Service{a, b, c}, time.Second)

	assert.Equal(t, []string{"debate", "http"}, calls)
	assert.True(t, a.alive, "shutdown context must outlive the cancelled parent")
	assert.True(t, closed)
}
