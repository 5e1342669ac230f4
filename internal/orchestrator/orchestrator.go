package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/internal/discussion"
	"github.com/sandevgo/agora/internal/memory"
	"github.com/sandevgo/agora/pkg/log"
	"github.com/sandevgo/agora/pkg/retry"
)

var (
	// ErrFinished means the debate has nothing left to discuss or hit the
	// round cap.
	ErrFinished = errors.New("debate finished")
	ErrStopped  = errors.New("orchestrator stopped")
	ErrNotStart = errors.New("orchestrator not started")
)

type State int32

const (
	StateIdle State = iota
	StateRoundActive
	StateRoundCommitting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRoundActive:
		return "round_active"
	case StateRoundCommitting:
		return "round_committing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Config struct {
	MaxRounds      int
	PointsPerRound int
	MaxBranches    int
	ThinkerTimeout time.Duration
	CommitTimeout  time.Duration
	RoundInterval  time.Duration
	Policy         Policy
}

func DefaultConfig() Config {
	return Config{
		MaxRounds:      10,
		PointsPerRound: 1,
		MaxBranches:    1,
		ThinkerTimeout: 90 * time.Second,
		CommitTimeout:  30 * time.Second,
		Policy:         DefaultPolicy(),
	}
}

// pendingRound is a fully applied round whose commit has not succeeded yet.
type pendingRound struct {
	staged   *discussion.Chain
	record   core.RoundRecord
	touched  []string
	event    core.RoundCommitted
	attempts int
	// uncertain is set once an append failed in a way that may still have
	// written the round.
	uncertain bool
}

type Orchestrator struct {
	cfg        Config
	thinkers   []core.Thinker
	moderator  core.Thinker
	rounds     core.RoundLog
	memory     *memory.Memory
	bus        core.EventBus
	classifier Classifier
	retrier    *retry.Retrier
	chainOpts  []discussion.Option
	now        func() time.Time

	// mu serializes rounds.
	mu        sync.Mutex
	started   bool
	seed      string
	pending   *pendingRound
	state     atomic.Int32
	committed atomic.Pointer[discussion.Chain]

	cancelMu  sync.Mutex
	cancelRun context.CancelFunc

	stampMu   sync.Mutex
	lastStamp time.Time
}

type Option func(*Orchestrator)

// WithModerator sets the thinker asked for a new point when none can be
// extracted from the debate.
func WithModerator(t core.Thinker) Option {
	return func(o *Orchestrator) { o.moderator = t }
}

func WithEventBus(bus core.EventBus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

func WithClassifier(c Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

func WithRetrier(r *retry.Retrier) Option {
	return func(o *Orchestrator) { o.retrier = r }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithChainOptions(opts ...discussion.Option) Option {
	return func(o *Orchestrator) { o.chainOpts = append(o.chainOpts, opts...) }
}

func New(cfg Config, thinkers []core.Thinker, rounds core.RoundLog, mem *memory.Memory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		thinkers:   thinkers,
		rounds:     rounds,
		memory:     mem,
		classifier: MarkerClassifier{},
		retrier:    retry.NewDefaultRetrier(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	o.committed.Store(discussion.New(o.chainOpts...))
	return o
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// setState moves to s unless the orchestrator is already stopped.
func (o *Orchestrator) setState(s State) {
	for {
		cur := o.state.Load()
		if State(cur) == StateStopped {
			return
		}
		if o.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// Snapshot returns the latest committed chain. It must not be mutated.
func (o *Orchestrator) Snapshot() *discussion.Chain {
	return o.committed.Load()
}

func (o *Orchestrator) MaxRounds() int {
	return o.cfg.MaxRounds
}

// Start rebuilds the chain from the round log. On an empty log the thesis
// becomes the first point of round 1.
func (o *Orchestrator) Start(ctx context.Context, thesis string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	logger := log.FromCtx(ctx)

	if o.State() == StateStopped {
		return ErrStopped
	}
	if len(o.thinkers) == 0 {
		return core.InvalidArgument("start", "no thinkers configured")
	}

	recs, err := o.rounds.LoadRounds(ctx)
	if err != nil {
		return core.Persistence("load rounds", err)
	}

	chain := discussion.New(o.chainOpts...)
	for _, rec := range recs {
		if err := chain.Apply(rec); err != nil {
			return fmt.Errorf("failed to replay round %d: %w", rec.RoundNum, err)
		}
	}

	thesis = strings.TrimSpace(thesis)
	switch {
	case chain.Len() > 0:
		if thesis != "" && !chain.HasContent(thesis) {
			logger.Info().Str("thesis", thesis).Msg("resuming existing debate, thesis ignored")
		}
	case thesis == "":
		return core.InvalidArgument("start", "thesis is empty and there is no debate to resume")
	default:
		o.seed = thesis
	}

	o.committed.Store(chain)
	o.started = true
	o.setState(StateIdle)

	logger.Info().
		Int("rounds", len(recs)).
		Int("points", chain.Len()).
		Int("thinkers", len(o.thinkers)).
		Msg("orchestrator started")

	return nil
}

// RunRound drives one round to commit. A round that failed to commit is
// retried under the same number before any new round is started.
func (o *Orchestrator) RunRound(ctx context.Context) (core.RoundCommitted, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case o.State() == StateStopped:
		return core.RoundCommitted{}, ErrStopped
	case !o.started:
		return core.RoundCommitted{}, ErrNotStart
	}

	if o.pending != nil {
		log.FromCtx(ctx).Warn().Int("round", o.pending.record.RoundNum).Msg("retrying uncommitted round")
		return o.commit(ctx, o.pending)
	}

	p, err := o.prepare(ctx)
	if err != nil {
		o.setState(StateIdle)
		return core.RoundCommitted{}, err
	}
	o.pending = p
	return o.commit(ctx, p)
}

// prepare runs the round on a staged copy of the committed chain.
func (o *Orchestrator) prepare(ctx context.Context) (*pendingRound, error) {
	logger := log.FromCtx(ctx)

	staged := o.Snapshot().Clone()
	round := staged.CurrentRound() + 1
	if o.cfg.MaxRounds > 0 && round > o.cfg.MaxRounds {
		return nil, ErrFinished
	}
	if err := staged.BeginRound(round); err != nil {
		return nil, err
	}

	if o.seed != "" && staged.Len() == 0 {
		if _, err := staged.CreatePoint(o.seed, round, ""); err != nil {
			return nil, err
		}
	}

	o.setState(StateRoundActive)

	active := o.selectPoints(staged)
	if len(active) == 0 {
		if err := o.synthesize(ctx, staged, round); err != nil {
			return nil, err
		}
		if o.State() == StateStopped {
			return nil, ErrStopped
		}
		active = o.selectPoints(staged)
		if len(active) == 0 {
			return nil, ErrFinished
		}
	}

	logger.Info().Int("round", round).Int("points", len(active)).Msg("round started")

	contexts := make([]memory.PromptContext, len(active))
	for i, p := range active {
		contexts[i] = o.memory.Context(ctx, p, staged.Messages(p.ID), round)
	}

	res, err := o.fanOut(ctx, round, contexts)
	if err != nil {
		o.transitionStopped()
		logger.Warn().Err(err).Int("round", round).Msg("round discarded")
		return nil, err
	}

	stored, err := o.apply(staged, round, active, res)
	if err != nil {
		return nil, err
	}

	ev := core.RoundCommitted{
		RoundNum: round,
		Messages: len(stored),
		Failures: len(res.failures),
	}
	events := staged.TakeJournal()
	for _, e := range events {
		switch e.Kind {
		case core.EventCreated:
			ev.Created = append(ev.Created, e.PointID)
		case core.EventResolved:
			ev.Resolved = append(ev.Resolved, e.PointID)
		}
	}

	touched := make([]string, len(active))
	for i, p := range active {
		touched[i] = p.ID
	}

	return &pendingRound{
		staged: staged,
		record: core.RoundRecord{
			RoundNum:    round,
			Events:      events,
			Messages:    stored,
			Failures:    res.failures,
			CommittedAt: o.now(),
		},
		touched: touched,
		event:   ev,
	}, nil
}

func (o *Orchestrator) selectPoints(c *discussion.Chain) []core.DiscussionPoint {
	ongoing := c.Ongoing()
	if o.cfg.PointsPerRound > 0 && len(ongoing) > o.cfg.PointsPerRound {
		ongoing = ongoing[:o.cfg.PointsPerRound]
	}
	return ongoing
}

// apply writes responses into the staged chain, classifies them, updates the
// counters, runs the resolution policy and derives new sub-question points.
func (o *Orchestrator) apply(staged *discussion.Chain, round int, active []core.DiscussionPoint, res fanOutResult) ([]core.Message, error) {
	type delta struct{ agree, disagree int }
	deltas := make(map[string]*delta, len(active))
	contents := make(map[string]string, len(active))
	for _, p := range active {
		deltas[p.ID] = &delta{}
		contents[p.ID] = p.Content
	}

	stored := make([]core.Message, 0, len(res.responses))
	for _, r := range res.responses {
		stance := o.classifier.Classify(contents[r.pointID], r.content)
		msg, err := staged.AppendMessage(r.pointID, core.Message{
			Model:     r.model,
			Content:   r.content,
			Stance:    stance,
			RoundNum:  round,
			Timestamp: r.at,
		})
		if err != nil {
			return nil, err
		}
		stored = append(stored, msg)

		switch stance {
		case core.StanceAgree:
			deltas[r.pointID].agree++
		case core.StanceDisagree:
			deltas[r.pointID].disagree++
		}
	}

	for _, f := range res.failures {
		if err := staged.RecordFailure(f); err != nil {
			return nil, err
		}
	}

	for _, p := range active {
		d := deltas[p.ID]
		if err := staged.UpdateCounts(p.ID, d.agree, d.disagree); err != nil {
			return nil, err
		}
		cur, err := staged.Point(p.ID)
		if err != nil {
			return nil, err
		}
		if o.cfg.Policy.ShouldResolve(cur, len(staged.Messages(p.ID)), staged.RoundsDiscussed(p.ID)) {
			if err := staged.Resolve(p.ID); err != nil {
				return nil, err
			}
		}
	}

	if o.cfg.MaxBranches > 0 {
		created := 0
		for _, m := range stored {
			for _, q := range memory.Questions(m.Content) {
				if created >= o.cfg.MaxBranches {
					break
				}
				if staged.HasContent(q) {
					continue
				}
				if _, err := staged.CreatePoint(q, round, m.PointID); err != nil {
					return nil, err
				}
				created++
			}
		}
	}

	return stored, nil
}

// synthesize opens the next unresolved sub-question when no point is
// ongoing: first from questions raised in the debate, then from the
// moderator.
func (o *Orchestrator) synthesize(ctx context.Context, staged *discussion.Chain, round int) error {
	for r := 1; r < round; r++ {
		for _, m := range staged.RoundMessages(r) {
			for _, q := range memory.Questions(m.Content) {
				if staged.HasContent(q) {
					continue
				}
				_, err := staged.CreatePoint(q, round, m.PointID)
				return err
			}
		}
	}

	if o.moderator == nil {
		return nil
	}

	logger := log.FromCtx(ctx)

	var sb strings.Builder
	sb.WriteString("The following points of the debate are settled:\n")
	for _, p := range staged.ListPoints(nil) {
		fmt.Fprintf(&sb, "- %s (agree %d, disagree %d)\n", p.Content, p.Agreements, p.Disagreements)
	}
	sb.WriteString("\nPropose the next unresolved question worth debating as a single sentence ending with '?'.")

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ThinkerTimeout)
	defer cancel()

	text, err := ask(callCtx, o.moderator, sb.String())
	if err != nil {
		logger.Warn().Err(err).Str("moderator", o.moderator.Name()).Msg("moderator failed to propose a point")
		return nil
	}
	for _, q := range memory.Questions(text) {
		if staged.HasContent(q) {
			continue
		}
		_, err := staged.CreatePoint(q, round, "")
		return err
	}
	return nil
}

// commit appends the round record and publishes the staged chain. The write
// is detached from ctx cancellation so a started commit always finishes.
func (o *Orchestrator) commit(ctx context.Context, p *pendingRound) (core.RoundCommitted, error) {
	logger := log.FromCtx(ctx)
	round := p.record.RoundNum

	o.setState(StateRoundCommitting)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.CommitTimeout)
	defer cancel()

	err := o.retrier.Do(cctx, func() error {
		p.attempts++
		err := o.rounds.AppendRound(cctx, p.record)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, core.ErrRoundCommitted):
			if p.uncertain && o.landed(cctx, p.record) {
				logger.Info().Int("round", round).Msg("round found already committed")
				return nil
			}
			return retry.Permanent(err)
		}
		p.uncertain = true
		logger.Warn().Err(err).Int("round", round).Int("attempt", p.attempts).Msg("round commit failed")
		return err
	})
	if err != nil {
		o.setState(StateIdle)
		logger.Error().Err(err).Int("round", round).Msg("round not committed")
		return core.RoundCommitted{}, core.Persistence("commit round", err)
	}

	o.pending = nil
	o.committed.Store(p.staged)
	o.setState(StateIdle)

	logger.Info().
		Int("round", round).
		Int("messages", p.event.Messages).
		Int("failures", p.event.Failures).
		Strs("resolved", p.event.Resolved).
		Strs("created", p.event.Created).
		Msg("round committed")

	for _, id := range p.touched {
		point, err := p.staged.Point(id)
		if err != nil {
			continue
		}
		if err := o.memory.Update(cctx, point, p.staged.Messages(id), round); err != nil {
			logger.Error().Err(err).Str("point_id", id).Msg("memory update failed")
		}
	}

	if o.bus != nil {
		if err := o.bus.Publish(cctx, p.event); err != nil {
			logger.Warn().Err(err).Int("round", round).Msg("failed to publish round event")
		}
	}

	return p.event, nil
}

// landed reports whether the log already holds rec exactly as staged.
func (o *Orchestrator) landed(ctx context.Context, rec core.RoundRecord) bool {
	stored, err := o.rounds.LoadRounds(ctx)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Int("round", rec.RoundNum).Msg("failed to check stored round")
		return false
	}
	for _, s := range stored {
		if s.RoundNum == rec.RoundNum {
			return sameRound(s, rec)
		}
	}
	return false
}

func sameRound(a, b core.RoundRecord) bool {
	if len(a.Messages) != len(b.Messages) || len(a.Events) != len(b.Events) || len(a.Failures) != len(b.Failures) {
		return false
	}
	for i := range a.Messages {
		x, y := a.Messages[i], b.Messages[i]
		if x.Seq != y.Seq || x.PointID != y.PointID || x.Model != y.Model || x.Content != y.Content {
			return false
		}
	}
	for i := range a.Events {
		if a.Events[i].Kind != b.Events[i].Kind || a.Events[i].PointID != b.Events[i].PointID {
			return false
		}
	}
	return true
}

// Run drives rounds until the debate finishes, ctx is done or Stop is called.
func (o *Orchestrator) Run(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.cancelMu.Lock()
	o.cancelRun = cancel
	o.cancelMu.Unlock()

	backoff := o.cfg.RoundInterval
	for {
		if runCtx.Err() != nil || o.State() == StateStopped {
			return nil
		}

		_, err := o.RunRound(runCtx)
		wait := o.cfg.RoundInterval
		switch {
		case err == nil:
			backoff = o.cfg.RoundInterval
		case errors.Is(err, ErrFinished):
			logger.Info().Msg("debate finished")
			return nil
		case errors.Is(err, ErrStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case errors.Is(err, core.ErrPersistence):
			backoff = max(2*backoff, time.Second)
			if backoff > time.Minute {
				backoff = time.Minute
			}
			wait = backoff
		default:
			return err
		}

		if wait > 0 {
			select {
			case <-runCtx.Done():
				return nil
			case <-time.After(wait):
			}
		}
	}
}

// Stop cancels in-flight thinker calls and prevents further rounds. A commit
// already in progress still completes.
func (o *Orchestrator) Stop() {
	o.transitionStopped()

	o.cancelMu.Lock()
	defer o.cancelMu.Unlock()
	if o.cancelRun != nil {
		o.cancelRun()
	}
}

func (o *Orchestrator) transitionStopped() {
	o.state.Store(int32(StateStopped))
}
