package discussion

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sandevgo/agora/internal/core"
)

// DefaultMaxContent is the per-message content bound in runes.
const DefaultMaxContent = 8000

// Chain is the discussion graph: points in creation order, each owning an
// ordered message log. It is not safe for concurrent mutation; the
// orchestrator mutates a staged clone and publishes it read-only once the
// round is committed.
type Chain struct {
	points   []*core.DiscussionPoint
	index    map[string]int
	messages map[string][]core.Message
	all      []core.Message
	failures []core.ThinkerFailure

	currentRound int
	nextSeq      int64
	journal      []core.PointEvent

	maxContent int
	newID      func() string
	now        func() time.Time
}

type Option func(*Chain)

// WithIDFunc overrides point id generation.
func WithIDFunc(fn func() string) Option {
	return func(c *Chain) { c.newID = fn }
}

func WithClock(fn func() time.Time) Option {
	return func(c *Chain) { c.now = fn }
}

func WithMaxContent(n int) Option {
	return func(c *Chain) {
		if n > 0 {
			c.maxContent = n
		}
	}
}

func New(opts ...Option) *Chain {
	c := &Chain{
		index:      make(map[string]int),
		messages:   make(map[string][]core.Message),
		nextSeq:    1,
		maxContent: DefaultMaxContent,
		newID:      newPointID,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newPointID returns a UUIDv7, which sorts by creation time.
func newPointID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (c *Chain) CurrentRound() int {
	return c.currentRound
}

// BeginRound makes n the round that accepts new messages. Rounds only move
// forward.
func (c *Chain) BeginRound(n int) error {
	if n < 1 || n < c.currentRound {
		return core.InvalidArgument("begin round", "round %d cannot follow round %d", n, c.currentRound)
	}
	c.currentRound = n
	return nil
}

func (c *Chain) CreatePoint(content string, roundNum int, parentID string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", core.InvalidArgument("create point", "content is empty")
	}
	if parentID != "" {
		if _, ok := c.index[parentID]; !ok {
			return "", core.NotFound("create point", "parent point %s", parentID)
		}
	}

	p := &core.DiscussionPoint{
		ID:        c.newID(),
		ParentID:  parentID,
		Content:   content,
		RoundNum:  roundNum,
		Status:    core.StatusOngoing,
		CreatedAt: c.now(),
	}
	c.insertPoint(p)
	c.journal = append(c.journal, core.PointEvent{
		Kind:     core.EventCreated,
		PointID:  p.ID,
		ParentID: parentID,
		Content:  content,
		RoundNum: roundNum,
		At:       p.CreatedAt,
	})
	return p.ID, nil
}

func (c *Chain) insertPoint(p *core.DiscussionPoint) {
	c.index[p.ID] = len(c.points)
	c.points = append(c.points, p)
}

// AppendMessage stores msg under pointID and returns the stored copy with
// its sequence number assigned. Content over the bound is truncated.
func (c *Chain) AppendMessage(pointID string, msg core.Message) (core.Message, error) {
	if _, ok := c.index[pointID]; !ok {
		return core.Message{}, core.NotFound("append message", "point %s", pointID)
	}
	if msg.RoundNum != c.currentRound {
		return core.Message{}, core.InvalidRound("append message", msg.RoundNum, c.currentRound)
	}

	msg.PointID = pointID
	msg.Content = truncate(msg.Content, c.maxContent)
	if msg.Stance == "" {
		msg.Stance = core.StanceNeutral
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = c.now()
	}
	msg.Seq = c.nextSeq
	c.nextSeq++

	c.insertMessage(msg)
	return msg, nil
}

func (c *Chain) insertMessage(msg core.Message) {
	log := c.messages[msg.PointID]
	i := sort.Search(len(log), func(i int) bool { return log[i].Timestamp.After(msg.Timestamp) })
	log = append(log, core.Message{})
	copy(log[i+1:], log[i:])
	log[i] = msg
	c.messages[msg.PointID] = log

	j := sort.Search(len(c.all), func(j int) bool { return messageLess(msg, c.all[j]) })
	c.all = append(c.all, core.Message{})
	copy(c.all[j+1:], c.all[j:])
	c.all[j] = msg
}

// messageLess orders by (round, timestamp, seq).
func messageLess(a, b core.Message) bool {
	if a.RoundNum != b.RoundNum {
		return a.RoundNum < b.RoundNum
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Seq < b.Seq
}

// RecordFailure keeps a thinker failure of the current round.
func (c *Chain) RecordFailure(f core.ThinkerFailure) error {
	if f.RoundNum != c.currentRound {
		return core.InvalidRound("record failure", f.RoundNum, c.currentRound)
	}
	c.failures = append(c.failures, f)
	return nil
}

// RoundFailures returns the failures recorded for round.
func (c *Chain) RoundFailures(round int) []core.ThinkerFailure {
	var out []core.ThinkerFailure
	for _, f := range c.failures {
		if f.RoundNum == round {
			out = append(out, f)
		}
	}
	return out
}

func (c *Chain) FailuresPerRound() map[int]int {
	out := make(map[int]int)
	for _, f := range c.failures {
		out[f.RoundNum]++
	}
	return out
}

func (c *Chain) UpdateCounts(pointID string, agreeDelta, disagreeDelta int) error {
	if agreeDelta < 0 || disagreeDelta < 0 {
		return core.InvalidArgument("update counts", "negative delta (%d, %d)", agreeDelta, disagreeDelta)
	}
	p, err := c.point("update counts", pointID)
	if err != nil {
		return err
	}
	if agreeDelta == 0 && disagreeDelta == 0 {
		return nil
	}
	p.Agreements += agreeDelta
	p.Disagreements += disagreeDelta
	c.journal = append(c.journal, core.PointEvent{
		Kind:          core.EventCounts,
		PointID:       pointID,
		RoundNum:      c.currentRound,
		AgreeDelta:    agreeDelta,
		DisagreeDelta: disagreeDelta,
		At:            c.now(),
	})
	return nil
}

// Resolve marks the point resolved. Resolving twice is a no-op.
func (c *Chain) Resolve(pointID string) error {
	p, err := c.point("resolve", pointID)
	if err != nil {
		return err
	}
	if p.Status == core.StatusResolved {
		return nil
	}
	p.Status = core.StatusResolved
	c.journal = append(c.journal, core.PointEvent{
		Kind:     core.EventResolved,
		PointID:  pointID,
		RoundNum: c.currentRound,
		At:       c.now(),
	})
	return nil
}

func (c *Chain) point(op, id string) (*core.DiscussionPoint, error) {
	i, ok := c.index[id]
	if !ok {
		return nil, core.NotFound(op, "point %s", id)
	}
	return c.points[i], nil
}

func (c *Chain) Point(id string) (core.DiscussionPoint, error) {
	p, err := c.point("get point", id)
	if err != nil {
		return core.DiscussionPoint{}, err
	}
	return *p, nil
}

// HasContent reports whether a point with the same content already exists.
func (c *Chain) HasContent(content string) bool {
	content = strings.TrimSpace(content)
	for _, p := range c.points {
		if strings.EqualFold(p.Content, content) {
			return true
		}
	}
	return false
}

func (c *Chain) Len() int {
	return len(c.points)
}

// ListPoints returns point summaries in creation order, optionally limited
// to points created in one round.
func (c *Chain) ListPoints(roundFilter *int) []core.PointSummary {
	out := make([]core.PointSummary, 0, len(c.points))
	for _, p := range c.points {
		if roundFilter != nil && p.RoundNum != *roundFilter {
			continue
		}
		out = append(out, core.PointSummary{
			ID:            p.ID,
			ParentID:      p.ParentID,
			Content:       p.Content,
			RoundNum:      p.RoundNum,
			Status:        p.Status,
			Agreements:    p.Agreements,
			Disagreements: p.Disagreements,
			Messages:      len(c.messages[p.ID]),
		})
	}
	return out
}

// Ongoing returns unresolved points in creation order.
func (c *Chain) Ongoing() []core.DiscussionPoint {
	var out []core.DiscussionPoint
	for _, p := range c.points {
		if p.Status == core.StatusOngoing {
			out = append(out, *p)
		}
	}
	return out
}

// Messages returns a copy of the point's log, oldest first.
func (c *Chain) Messages(pointID string) []core.Message {
	log := c.messages[pointID]
	out := make([]core.Message, len(log))
	copy(out, log)
	return out
}

func (c *Chain) History(pointID string, page, pageSize int) ([]core.Message, int, error) {
	if _, ok := c.index[pointID]; !ok {
		return nil, 0, core.NotFound("history", "point %s", pointID)
	}
	if err := ValidatePage(page, pageSize); err != nil {
		return nil, 0, err
	}
	log := c.messages[pointID]
	start, end := Bounds(len(log), page, pageSize)
	out := make([]core.Message, end-start)
	copy(out, log[start:end])
	return out, len(log), nil
}

// Agora pages through messages of all points ordered by (round, timestamp).
func (c *Chain) Agora(roundFilter *int, page, pageSize int) ([]core.Message, int, error) {
	if err := ValidatePage(page, pageSize); err != nil {
		return nil, 0, err
	}
	src := c.all
	if roundFilter != nil {
		src = c.roundSlice(*roundFilter)
	}
	start, end := Bounds(len(src), page, pageSize)
	out := make([]core.Message, end-start)
	copy(out, src[start:end])
	return out, len(src), nil
}

// RoundsDiscussed counts the distinct rounds in which the point got messages.
func (c *Chain) RoundsDiscussed(pointID string) int {
	seen := make(map[int]struct{})
	for _, m := range c.messages[pointID] {
		seen[m.RoundNum] = struct{}{}
	}
	return len(seen)
}

func (c *Chain) MessagesPerRound() map[int]int {
	out := make(map[int]int)
	for _, m := range c.all {
		out[m.RoundNum]++
	}
	return out
}

// RoundMessages returns every message of one round in agora order.
func (c *Chain) RoundMessages(round int) []core.Message {
	src := c.roundSlice(round)
	out := make([]core.Message, len(src))
	copy(out, src)
	return out
}

// roundSlice is the part of c.all belonging to round, which is sorted by
// round first.
func (c *Chain) roundSlice(round int) []core.Message {
	lo := sort.Search(len(c.all), func(i int) bool { return c.all[i].RoundNum >= round })
	hi := sort.Search(len(c.all), func(i int) bool { return c.all[i].RoundNum > round })
	return c.all[lo:hi]
}

// TakeJournal returns and clears the point events recorded since the last call.
func (c *Chain) TakeJournal() []core.PointEvent {
	j := c.journal
	c.journal = nil
	return j
}

// Clone returns a deep copy. The journal is not carried over.
func (c *Chain) Clone() *Chain {
	out := &Chain{
		points:       make([]*core.DiscussionPoint, len(c.points)),
		index:        make(map[string]int, len(c.index)),
		messages:     make(map[string][]core.Message, len(c.messages)),
		all:          make([]core.Message, len(c.all)),
		failures:     append([]core.ThinkerFailure(nil), c.failures...),
		currentRound: c.currentRound,
		nextSeq:      c.nextSeq,
		maxContent:   c.maxContent,
		newID:        c.newID,
		now:          c.now,
	}
	for i, p := range c.points {
		cp := *p
		out.points[i] = &cp
	}
	for k, v := range c.index {
		out.index[k] = v
	}
	for k, v := range c.messages {
		log := make([]core.Message, len(v))
		copy(log, v)
		out.messages[k] = log
	}
	copy(out.all, c.all)
	return out
}

// Apply replays a committed round record. It is used to rebuild the chain
// from the durable log and does not journal.
func (c *Chain) Apply(rec core.RoundRecord) error {
	if rec.RoundNum < c.currentRound {
		return core.InvalidArgument("apply round", "round %d already applied (current %d)", rec.RoundNum, c.currentRound)
	}
	c.currentRound = rec.RoundNum

	for _, ev := range rec.Events {
		switch ev.Kind {
		case core.EventCreated:
			if _, ok := c.index[ev.PointID]; ok {
				continue
			}
			c.insertPoint(&core.DiscussionPoint{
				ID:        ev.PointID,
				ParentID:  ev.ParentID,
				Content:   ev.Content,
				RoundNum:  ev.RoundNum,
				Status:    core.StatusOngoing,
				CreatedAt: ev.At,
			})
		case core.EventCounts:
			p, err := c.point("apply round", ev.PointID)
			if err != nil {
				return err
			}
			p.Agreements += ev.AgreeDelta
			p.Disagreements += ev.DisagreeDelta
		case core.EventResolved:
			p, err := c.point("apply round", ev.PointID)
			if err != nil {
				return err
			}
			p.Status = core.StatusResolved
		default:
			return core.InvalidArgument("apply round", "unknown event kind %q", ev.Kind)
		}
	}

	for _, m := range rec.Messages {
		if _, ok := c.index[m.PointID]; !ok {
			return core.NotFound("apply round", "point %s of message %d", m.PointID, m.Seq)
		}
		c.insertMessage(m)
		if m.Seq >= c.nextSeq {
			c.nextSeq = m.Seq + 1
		}
	}
	c.failures = append(c.failures, rec.Failures...)
	return nil
}

// truncate bounds s to max runes without splitting a rune.
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
