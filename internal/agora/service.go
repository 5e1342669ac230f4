package agora

import (
	"context"
	"sort"

	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/internal/discussion"
)

// Page is a page of the cross-point timeline.
type Page struct {
	Messages   []core.Message  `json:"messages"`
	Pagination core.Pagination `json:"pagination"`
	RoundNum   *int            `json:"round_num,omitempty"`
	DebugInfo  DebugInfo       `json:"debug_info"`
}

type DebugInfo struct {
	MessagesPerRound map[int]int `json:"messages_per_round"`
	FailuresPerRound map[int]int `json:"failures_per_round"`
	LatestRound      int         `json:"latest_round"`
	RoundsPresent    []int       `json:"rounds_present"`
	MaxRounds        int         `json:"max_rounds"`
	Points           int         `json:"points"`
	Resolved         int         `json:"resolved"`
}

// Service is the read API over committed debate state.
type Service struct {
	src       Source
	maxRounds int
}

func NewService(src Source, maxRounds int) *Service {
	return &Service{src: src, maxRounds: maxRounds}
}

func (s *Service) ListPoints(ctx context.Context, roundFilter *int) ([]core.PointSummary, error) {
	chain, err := s.src.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return chain.ListPoints(roundFilter), nil
}

// PointHistory pages through one point's messages, oldest first.
func (s *Service) PointHistory(ctx context.Context, pointID string, page, pageSize int) (core.MessagePage, error) {
	chain, err := s.src.Snapshot(ctx)
	if err != nil {
		return core.MessagePage{}, err
	}

	msgs, total, err := chain.History(pointID, page, pageSize)
	if err != nil {
		return core.MessagePage{}, err
	}

	return core.MessagePage{
		Messages:   msgs,
		Pagination: discussion.NewPagination(total, page, pageSize),
	}, nil
}

// Agora pages through all messages ordered by round, then completion time.
func (s *Service) Agora(ctx context.Context, roundFilter *int, page, pageSize int) (Page, error) {
	chain, err := s.src.Snapshot(ctx)
	if err != nil {
		return Page{}, err
	}

	msgs, total, err := chain.Agora(roundFilter, page, pageSize)
	if err != nil {
		return Page{}, err
	}

	return Page{
		Messages:   msgs,
		Pagination: discussion.NewPagination(total, page, pageSize),
		RoundNum:   roundFilter,
		DebugInfo:  s.debug(chain),
	}, nil
}

func (s *Service) Debug(ctx context.Context) (DebugInfo, error) {
	chain, err := s.src.Snapshot(ctx)
	if err != nil {
		return DebugInfo{}, err
	}
	return s.debug(chain), nil
}

func (s *Service) debug(chain *discussion.Chain) DebugInfo {
	perRound := chain.MessagesPerRound()

	rounds := make([]int, 0, len(perRound))
	for r := range perRound {
		rounds = append(rounds, r)
	}
	sort.Ints(rounds)

	points := chain.ListPoints(nil)
	resolved := 0
	for _, p := range points {
		if p.Status == core.StatusResolved {
			resolved++
		}
	}

	return DebugInfo{
		MessagesPerRound: perRound,
		FailuresPerRound: chain.FailuresPerRound(),
		LatestRound:      chain.CurrentRound(),
		RoundsPresent:    rounds,
		MaxRounds:        s.maxRounds,
		Points:           len(points),
		Resolved:         resolved,
	}
}
