package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/internal/memory"
	"github.com/sandevgo/agora/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const thesis = "Can AI create its own religion?"

type fakeThinker struct {
	name    string
	respond func(ctx context.Context, call int) (string, error)
	calls   atomic.Int32
}

func (f *fakeThinker) Name() string { return f.name }

func (f *fakeThinker) Respond(ctx context.Context, _ string) (string, error) {
	n := int(f.calls.Add(1))
	return f.respond(ctx, n)
}

func says(name, text string) *fakeThinker {
	return &fakeThinker{name: name, respond: func(context.Context, int) (string, error) { return text, nil }}
}

type memLog struct {
	mu      sync.Mutex
	recs    []core.RoundRecord
	failN   int
	appends int
	// lostAcks stores the round but still reports a failure.
	lostAcks int
}

func (l *memLog) AppendRound(_ context.Context, rec core.RoundRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appends++
	if l.failN > 0 {
		l.failN--
		return errors.New("database is locked")
	}
	for _, r := range l.recs {
		if r.RoundNum == rec.RoundNum {
			return core.ErrRoundCommitted
		}
	}
	l.recs = append(l.recs, rec)
	if l.lostAcks > 0 {
		l.lostAcks--
		return errors.New("connection reset by peer")
	}
	return nil
}

func (l *memLog) LoadRounds(context.Context) ([]core.RoundRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.RoundRecord(nil), l.recs...), nil
}

func (l *memLog) LatestRound(context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.recs) == 0 {
		return 0, nil
	}
	return l.recs[len(l.recs)-1].RoundNum, nil
}

type memStore struct {
	mu   sync.Mutex
	recs map[string]core.MemoryRecord
}

func (s *memStore) Get(_ context.Context, id string) (core.MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return core.MemoryRecord{}, core.NotFound("get memory", "point %s", id)
	}
	return rec, nil
}

func (s *memStore) Put(_ context.Context, id string, rec core.MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[id] = rec
	return nil
}

type testEnv struct {
	orch  *Orchestrator
	log   *memLog
	store *memStore
}

func newEnv(t *testing.T, cfg Config, thinkers []core.Thinker, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		log:   &memLog{},
		store: &memStore{recs: make(map[string]core.MemoryRecord)},
	}
	mem := memory.NewMemory(env.store, memory.NewBuilder(6, 0, memory.CharCounter{}), memory.NewSummarizer(0, memory.CharCounter{}))
	fast := retry.NewRetrier(&retry.Config{
		MaxRetries:    0,
		BackoffFactor: 1,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
	})
	opts = append([]Option{WithRetrier(fast)}, opts...)
	env.orch = New(cfg, thinkers, env.log, mem, opts...)
	return env
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ThinkerTimeout = time.Second
	cfg.CommitTimeout = time.Second
	cfg.MaxBranches = 0
	return cfg
}

func onlyPoint(t *testing.T, o *Orchestrator) core.DiscussionPoint {
	t.Helper()
	points := o.Snapshot().ListPoints(nil)
	require.NotEmpty(t, points)
	p, err := o.Snapshot().Point(points[0].ID)
	require.NoError(t, err)
	return p
}

func TestRunRound_TwoAgreeOneNeutral(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, testConfig(), []core.Thinker{
		says("gpt", "I agree. A religion needs ritual, and machines excel at ritual."),
		says("claude", "Indeed, I agree with the framing."),
		says("gemini", "It depends on what we call belief."),
	})

	require.NoError(t, env.orch.Start(ctx, thesis))
	ev, err := env.orch.RunRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.RoundNum)
	assert.Equal(t, 3, ev.Messages)

	p := onlyPoint(t, env.orch)
	assert.Equal(t, thesis, p.Content)
	assert.Equal(t, 2, p.Agreements)
	assert.Equal(t, 0, p.Disagreements)
	assert.Equal(t, core.StatusOngoing, p.Status)
	assert.Equal(t, StateIdle, env.orch.State())

	require.Len(t, env.log.recs, 1)
	assert.Len(t, env.log.recs[0].Messages, 3)

	rec, err := env.store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)
	assert.Len(t, rec.WindowSeqs, 3)
}

func TestRunRound_TimeoutKeepsOtherResponses(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.ThinkerTimeout = 50 * time.Millisecond

	slow := &fakeThinker{name: "slow", respond: func(ctx context.Context, call int) (string, error) {
		if call == 2 {
			<-ctx.Done()
			return "", core.Timeout("respond", ctx.Err())
		}
		return "It depends.", nil
	}}
	env := newEnv(t, cfg, []core.Thinker{says("a", "Perhaps."), says("b", "Hard to say."), slow})

	require.NoError(t, env.orch.Start(ctx, thesis))
	_, err := env.orch.RunRound(ctx)
	require.NoError(t, err)

	ev, err := env.orch.RunRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ev.RoundNum)
	assert.Equal(t, 2, ev.Messages)
	assert.Equal(t, 1, ev.Failures)

	snap := env.orch.Snapshot()
	round := 2
	msgs, total, err := snap.Agora(&round, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, m := range msgs {
		assert.NotEqual(t, "slow", m.Model)
	}

	failures := snap.RoundFailures(2)
	require.Len(t, failures, 1)
	assert.Equal(t, "slow", failures[0].Model)
	assert.Equal(t, core.FailureTimeout, failures[0].Kind)
	assert.Len(t, env.log.recs[1].Failures, 1)
}

func TestRunRound_DeadlineBoundsThinkerIgnoringContext(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.ThinkerTimeout = 50 * time.Millisecond

	hung := make(chan struct{})
	t.Cleanup(func() { close(hung) })
	deaf := &fakeThinker{name: "deaf", respond: func(context.Context, int) (string, error) {
		<-hung
		return "Too late.", nil
	}}
	env := newEnv(t, cfg, []core.Thinker{says("a", "Perhaps."), deaf})

	require.NoError(t, env.orch.Start(ctx, thesis))

	start := time.Now()
	ev, err := env.orch.RunRound(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, ev.Messages)
	assert.Equal(t, 1, ev.Failures)

	failures := env.orch.Snapshot().RoundFailures(1)
	require.Len(t, failures, 1)
	assert.Equal(t, "deaf", failures[0].Model)
	assert.Equal(t, core.FailureTimeout, failures[0].Kind)
}

func TestRunRound_BackendFailureRecorded(t *testing.T) {
	ctx := context.Background()
	broken := &fakeThinker{name: "broken", respond: func(context.Context, int) (string, error) {
		return "", core.Backend("respond", errors.New("502 bad gateway"))
	}}
	env := newEnv(t, testConfig(), []core.Thinker{says("a", "Perhaps."), broken})

	require.NoError(t, env.orch.Start(ctx, thesis))
	ev, err := env.orch.RunRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Messages)

	failures := env.orch.Snapshot().RoundFailures(1)
	require.Len(t, failures, 1)
	assert.Equal(t, core.FailureBackend, failures[0].Kind)
}

func TestRunRound_PersistenceFailureRetriesSameRound(t *testing.T) {
	ctx := context.Background()
	gpt := says("gpt", "Perhaps.")
	env := newEnv(t, testConfig(), []core.Thinker{gpt})
	env.log.failN = 2

	require.NoError(t, env.orch.Start(ctx, thesis))

	for i := 0; i < 2; i++ {
		_, err := env.orch.RunRound(ctx)
		require.ErrorIs(t, err, core.ErrPersistence)
		assert.Equal(t, 0, env.orch.Snapshot().CurrentRound())
		assert.Zero(t, env.orch.Snapshot().Len())
		assert.Equal(t, StateIdle, env.orch.State())
	}

	ev, err := env.orch.RunRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.RoundNum)
	assert.Equal(t, 1, env.orch.Snapshot().CurrentRound())
	assert.Equal(t, int32(1), gpt.calls.Load())
	assert.Equal(t, 3, env.log.appends)

	ev, err = env.orch.RunRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ev.RoundNum)
}

type recordingBus struct {
	mu  sync.Mutex
	evs []core.RoundCommitted
}

func (b *recordingBus) Publish(_ context.Context, ev core.RoundCommitted) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evs = append(b.evs, ev)
	return nil
}

func (b *recordingBus) Subscribe(context.Context, func(core.RoundCommitted)) error { return nil }

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) events() []core.RoundCommitted {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.RoundCommitted(nil), b.evs...)
}

// takenLog already holds every round number it is asked to write.
type takenLog struct {
	memLog
}

func (l *takenLog) AppendRound(context.Context, core.RoundRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appends++
	return core.ErrRoundCommitted
}

func TestRunRound_ConflictIsNotTreatedAsCommitted(t *testing.T) {
	ctx := context.Background()
	gpt := says("gpt", "Perhaps.")
	bus := &recordingBus{}
	env := newEnv(t, testConfig(), []core.Thinker{gpt}, WithEventBus(bus))
	taken := &takenLog{}
	env.orch.rounds = taken

	require.NoError(t, env.orch.Start(ctx, thesis))

	for i := 0; i < 2; i++ {
		_, err := env.orch.RunRound(ctx)
		require.ErrorIs(t, err, core.ErrPersistence)
		require.ErrorIs(t, err, core.ErrRoundCommitted)
		assert.Equal(t, 0, env.orch.Snapshot().CurrentRound())
		assert.Zero(t, env.orch.Snapshot().Len())
		assert.Equal(t, StateIdle, env.orch.State())
	}
	assert.Empty(t, bus.events())
	assert.Equal(t, 2, taken.appends)
}

func TestRunRound_LostAckIsRecoveredFromLog(t *testing.T) {
	ctx := context.Background()
	gpt := says("gpt", "Perhaps.")
	env := newEnv(t, testConfig(), []core.Thinker{gpt})
	env.log.lostAcks = 1

	require.NoError(t, env.orch.Start(ctx, thesis))

	_, err := env.orch.RunRound(ctx)
	require.ErrorIs(t, err, core.ErrPersistence)
	assert.Equal(t, 0, env.orch.Snapshot().CurrentRound())

	ev, err := env.orch.RunRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.RoundNum)
	assert.Equal(t, 1, env.orch.Snapshot().CurrentRound())
	assert.Equal(t, 2, env.log.appends)
	assert.Len(t, env.log.recs, 1)
}

func TestRunRound_ReadersSeeOnlyCommittedRounds(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	gate := &fakeThinker{name: "gate", respond: func(ctx context.Context, call int) (string, error) {
		if call == 2 {
			close(entered)
			<-release
		}
		return "Perhaps.", nil
	}}
	env := newEnv(t, testConfig(), []core.Thinker{gate})

	require.NoError(t, env.orch.Start(ctx, thesis))
	_, err := env.orch.RunRound(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := env.orch.RunRound(ctx)
		done <- err
	}()

	<-entered
	snap := env.orch.Snapshot()
	assert.Equal(t, 1, snap.CurrentRound())
	_, total, err := snap.Agora(nil, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, StateRoundActive, env.orch.State())

	close(release)
	require.NoError(t, <-done)

	snap = env.orch.Snapshot()
	assert.Equal(t, 2, snap.CurrentRound())
	msgs, total, err := snap.Agora(nil, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, m := range msgs {
		assert.LessOrEqual(t, m.RoundNum, snap.CurrentRound())
	}
}

func TestRunRound_ResolveThenFinish(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, testConfig(), []core.Thinker{
		says("a", "I agree."),
		says("b", "I agree entirely."),
		says("c", "Exactly right."),
	})

	require.NoError(t, env.orch.Start(ctx, thesis))
	ev, err := env.orch.RunRound(ctx)
	require.NoError(t, err)
	require.Len(t, ev.Resolved, 1)

	p := onlyPoint(t, env.orch)
	assert.Equal(t, core.StatusResolved, p.Status)
	assert.Equal(t, 3, p.Agreements)

	_, err = env.orch.RunRound(ctx)
	assert.ErrorIs(t, err, ErrFinished)
	assert.Len(t, env.log.recs, 1)

	assert.NoError(t, env.orch.Run(ctx))
}

func TestRunRound_BranchesSubQuestion(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxBranches = 1
	env := newEnv(t, cfg, []core.Thinker{
		says("a", "I propose we first ask: what is faith for a machine? Then decide."),
		says("b", "Is worship just optimization? Maybe."),
	})

	require.NoError(t, env.orch.Start(ctx, thesis))
	ev, err := env.orch.RunRound(ctx)
	require.NoError(t, err)
	require.Len(t, ev.Created, 2)

	points := env.orch.Snapshot().ListPoints(nil)
	require.Len(t, points, 2)
	assert.Equal(t, points[0].ID, points[1].ParentID)
	assert.Equal(t, 1, points[1].RoundNum)
}

func TestRunRound_ModeratorOpensNextPoint(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Policy.MaxPointRounds = 1
	moderator := says("moderator", "Next we should ask: can a machine doubt?")
	env := newEnv(t, cfg, []core.Thinker{says("a", "Perhaps.")}, WithModerator(moderator))

	require.NoError(t, env.orch.Start(ctx, thesis))
	_, err := env.orch.RunRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.StatusResolved, onlyPoint(t, env.orch).Status)

	ev, err := env.orch.RunRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ev.RoundNum)
	require.Len(t, ev.Created, 1)

	points := env.orch.Snapshot().ListPoints(nil)
	require.Len(t, points, 2)
	assert.Equal(t, "Next we should ask: can a machine doubt?", points[1].Content)
	assert.Equal(t, 1, points[1].Messages)
}

func TestRunRound_ActiveWhileModeratorProposes(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Policy.MaxPointRounds = 1

	var env *testEnv
	var seen atomic.Int32
	moderator := &fakeThinker{name: "moderator", respond: func(context.Context, int) (string, error) {
		seen.Store(int32(env.orch.State()))
		env.orch.Stop()
		return "Next we should ask: can a machine doubt?", nil
	}}
	env = newEnv(t, cfg, []core.Thinker{says("a", "Perhaps.")}, WithModerator(moderator))

	require.NoError(t, env.orch.Start(ctx, thesis))
	_, err := env.orch.RunRound(ctx)
	require.NoError(t, err)

	_, err = env.orch.RunRound(ctx)
	require.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, StateRoundActive, State(seen.Load()))
	assert.Equal(t, StateStopped, env.orch.State())
	assert.Equal(t, int32(1), moderator.calls.Load())
	assert.Len(t, env.log.recs, 1)
}

func TestRunRound_MaxRounds(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxRounds = 2
	env := newEnv(t, cfg, []core.Thinker{says("a", "Perhaps.")})

	require.NoError(t, env.orch.Start(ctx, thesis))
	require.NoError(t, env.orch.Run(ctx))
	assert.Len(t, env.log.recs, 2)
	assert.Equal(t, 2, env.orch.Snapshot().CurrentRound())
}

func TestRunRound_CancelDiscardsRound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blocker := &fakeThinker{name: "blocker", respond: func(ctx context.Context, _ int) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	}}
	env := newEnv(t, testConfig(), []core.Thinker{blocker, says("a", "Perhaps.")})

	require.NoError(t, env.orch.Start(context.Background(), thesis))
	_, err := env.orch.RunRound(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, env.log.recs)
	assert.Zero(t, env.orch.Snapshot().CurrentRound())
	assert.Equal(t, StateStopped, env.orch.State())

	_, err = env.orch.RunRound(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestStart_ReplaysRoundLog(t *testing.T) {
	ctx := context.Background()
	first := newEnv(t, testConfig(), []core.Thinker{says("a", "Perhaps."), says("b", "I agree.")})
	require.NoError(t, first.orch.Start(ctx, thesis))
	for i := 0; i < 2; i++ {
		_, err := first.orch.RunRound(ctx)
		require.NoError(t, err)
	}

	second := newEnv(t, testConfig(), []core.Thinker{says("a", "Perhaps.")})
	second.log.recs = first.log.recs
	require.NoError(t, second.orch.Start(ctx, "ignored thesis"))

	assert.Equal(t, first.orch.Snapshot().ListPoints(nil), second.orch.Snapshot().ListPoints(nil))
	assert.Equal(t, 2, second.orch.Snapshot().CurrentRound())

	ev, err := second.orch.RunRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, ev.RoundNum)
}

func TestStart_Validation(t *testing.T) {
	ctx := context.Background()

	env := newEnv(t, testConfig(), nil)
	assert.ErrorIs(t, env.orch.Start(ctx, thesis), core.ErrInvalidArgument)

	env = newEnv(t, testConfig(), []core.Thinker{says("a", "x")})
	assert.ErrorIs(t, env.orch.Start(ctx, "  "), core.ErrInvalidArgument)

	_, err := env.orch.RunRound(ctx)
	assert.ErrorIs(t, err, ErrNotStart)
}

func TestStop(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, testConfig(), []core.Thinker{says("a", "Perhaps.")})
	require.NoError(t, env.orch.Start(ctx, thesis))

	env.orch.Stop()
	assert.Equal(t, StateStopped, env.orch.State())
	assert.NoError(t, env.orch.Run(ctx))
	assert.Empty(t, env.log.recs)
}
