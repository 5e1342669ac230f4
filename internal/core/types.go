package core

import (
	"time"
)

const (
	AgoraName          = "Agora"
	AgoraUserAgent     = "Agora-Orchestrator/0.1"
	AgoraRepositoryURL = "https://github.com/sandevgo/agora"
	AgoraVersion       = "0.1.0"
)

// MaxPageSize bounds every paginated read.
const MaxPageSize = 100

type PointStatus string

const (
	StatusOngoing  PointStatus = "ongoing"
	StatusResolved PointStatus = "resolved"
)

type Stance string

const (
	StanceAgree    Stance = "agree"
	StanceDisagree Stance = "disagree"
	StanceNeutral  Stance = "neutral"
)

// DiscussionPoint is a debate topic node. Content is immutable once created
// and counters only grow.
type DiscussionPoint struct {
	ID            string      `json:"id"`
	ParentID      string      `json:"parent_id,omitempty"`
	Content       string      `json:"content"`
	RoundNum      int         `json:"round_num"`
	Status        PointStatus `json:"status"`
	Agreements    int         `json:"agreements"`
	Disagreements int         `json:"disagreements"`
	CreatedAt     time.Time   `json:"created_at"`
}

// PointSummary is the listing shape exposed to readers.
type PointSummary struct {
	ID            string      `json:"id"`
	ParentID      string      `json:"parent_id,omitempty"`
	Content       string      `json:"content"`
	RoundNum      int         `json:"round_num"`
	Status        PointStatus `json:"status"`
	Agreements    int         `json:"agreements"`
	Disagreements int         `json:"disagreements"`
	Messages      int         `json:"messages"`
}

// Message is one thinker's contribution to a point in a round.
type Message struct {
	Seq       int64     `json:"seq"`
	PointID   string    `json:"point_id"`
	Model     string    `json:"model"`
	Content   string    `json:"content"`
	Stance    Stance    `json:"stance"`
	RoundNum  int       `json:"round_num"`
	Timestamp time.Time `json:"timestamp"`
}

type FailureKind string

const (
	FailureTimeout FailureKind = "timeout"
	FailureBackend FailureKind = "backend"
)

// ThinkerFailure records a missing response inside a round.
type ThinkerFailure struct {
	RoundNum int         `json:"round_num"`
	PointID  string      `json:"point_id"`
	Model    string      `json:"model"`
	Kind     FailureKind `json:"kind"`
	Error    string      `json:"error"`
}

type PointEventKind string

const (
	EventCreated  PointEventKind = "created"
	EventCounts   PointEventKind = "counts"
	EventResolved PointEventKind = "resolved"
)

// PointEvent is an append-only state record for a point. Counts events carry
// deltas, created events carry the full point.
type PointEvent struct {
	Kind          PointEventKind `json:"kind"`
	PointID       string         `json:"point_id"`
	ParentID      string         `json:"parent_id,omitempty"`
	Content       string         `json:"content,omitempty"`
	RoundNum      int            `json:"round_num"`
	AgreeDelta    int            `json:"agree_delta,omitempty"`
	DisagreeDelta int            `json:"disagree_delta,omitempty"`
	At            time.Time      `json:"at"`
}

// RoundRecord is the durable unit of one committed round.
type RoundRecord struct {
	RoundNum    int              `json:"round_num"`
	Events      []PointEvent     `json:"events"`
	Messages    []Message        `json:"messages"`
	Failures    []ThinkerFailure `json:"failures"`
	CommittedAt time.Time        `json:"committed_at"`
}

// MemoryRecord is the derived context kept per point between rounds.
type MemoryRecord struct {
	PointID      string    `json:"point_id"`
	Version      int       `json:"version"`
	Summary      string    `json:"summary"`
	WindowSeqs   []int64   `json:"window_seqs"`
	UpdatedRound int       `json:"updated_round"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Pagination mirrors the shape returned by every paginated read.
type Pagination struct {
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

type MessagePage struct {
	Messages   []Message  `json:"messages"`
	Pagination Pagination `json:"pagination"`
}
