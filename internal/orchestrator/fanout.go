package orchestrator

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/internal/memory"
	"github.com/sandevgo/agora/pkg/log"
)

type response struct {
	pointIdx   int
	thinkerIdx int
	pointID    string
	model      string
	content    string
	at         time.Time
}

type fanOutResult struct {
	responses []response
	failures  []core.ThinkerFailure
}

// fanOut asks every thinker about every active point at once. Each call has
// its own deadline; failed calls are recorded and the rest are kept. The
// returned responses are ordered by completion time.
func (o *Orchestrator) fanOut(ctx context.Context, round int, contexts []memory.PromptContext) (fanOutResult, error) {
	logger := log.FromCtx(ctx)

	var (
		mu  sync.Mutex
		res fanOutResult
	)

	g := new(errgroup.Group)
	g.SetLimit(max(1, len(o.thinkers)*len(contexts)))

	for pi, pc := range contexts {
		prompt := pc.Prompt()
		for ti, th := range o.thinkers {
			g.Go(func() error {
				callCtx, cancel := context.WithTimeout(ctx, o.cfg.ThinkerTimeout)
				defer cancel()

				text, err := ask(callCtx, th, prompt)
				at := o.stamp()
				if err == nil && strings.TrimSpace(text) == "" {
					err = core.Backend("respond", errors.New("empty response"))
				}

				mu.Lock()
				defer mu.Unlock()

				if err != nil {
					f := core.ThinkerFailure{
						RoundNum: round,
						PointID:  pc.PointID,
						Model:    th.Name(),
						Kind:     failureKind(err),
						Error:    err.Error(),
					}
					res.failures = append(res.failures, f)
					logger.Warn().
						Err(err).
						Int("round", round).
						Str("point_id", pc.PointID).
						Str("thinker", th.Name()).
						Str("kind", string(f.Kind)).
						Msg("thinker failed")
					return nil
				}

				res.responses = append(res.responses, response{
					pointIdx:   pi,
					thinkerIdx: ti,
					pointID:    pc.PointID,
					model:      th.Name(),
					content:    text,
					at:         at,
				})
				return nil
			})
		}
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return fanOutResult{}, err
	}

	sort.SliceStable(res.responses, func(i, j int) bool {
		a, b := res.responses[i], res.responses[j]
		if !a.at.Equal(b.at) {
			return a.at.Before(b.at)
		}
		if a.pointIdx != b.pointIdx {
			return a.pointIdx < b.pointIdx
		}
		return a.thinkerIdx < b.thinkerIdx
	})
	sort.SliceStable(res.failures, func(i, j int) bool {
		a, b := res.failures[i], res.failures[j]
		if a.PointID != b.PointID {
			return a.PointID < b.PointID
		}
		return a.Model < b.Model
	})

	return res, nil
}

// ask returns when the thinker answers or ctx is done, whichever comes
// first. A thinker that ignores ctx is left to finish on its own.
func ask(ctx context.Context, th core.Thinker, prompt string) (string, error) {
	type answer struct {
		text string
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		text, err := th.Respond(ctx, prompt)
		done <- answer{text: text, err: err}
	}()

	select {
	case a := <-done:
		return a.text, a.err
	case <-ctx.Done():
		return "", core.Timeout("respond", ctx.Err())
	}
}

func failureKind(err error) core.FailureKind {
	if errors.Is(err, core.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return core.FailureTimeout
	}
	return core.FailureBackend
}

// stamp returns a completion time that never goes backwards.
func (o *Orchestrator) stamp() time.Time {
	o.stampMu.Lock()
	defer o.stampMu.Unlock()

	t := o.now()
	if t.Before(o.lastStamp) {
		t = o.lastStamp
	}
	o.lastStamp = t
	return t
}
