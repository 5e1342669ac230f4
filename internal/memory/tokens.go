package memory

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	UnitChars  = "chars"
	UnitTokens = "tokens"
)

// Counter measures text against the context budget.
type Counter interface {
	Count(text string) int
	Unit() string
}

type CharCounter struct{}

func (CharCounter) Count(text string) int { return utf8.RuneCountInString(text) }
func (CharCounter) Unit() string          { return UnitChars }

var (
	tk     *tiktoken.Tiktoken
	tkErr  error
	tkOnce sync.Once
)

// TokenCounter counts cl100k_base tokens.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTokenCounter() (*TokenCounter, error) {
	tkOnce.Do(func() {
		tk, tkErr = tiktoken.GetEncoding("cl100k_base")
	})
	if tkErr != nil {
		return nil, fmt.Errorf("failed to load tiktoken: %w", tkErr)
	}
	return &TokenCounter{enc: tk}, nil
}

func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

func (c *TokenCounter) Unit() string { return UnitTokens }

func NewCounter(unit string) (Counter, error) {
	switch unit {
	case "", UnitChars:
		return CharCounter{}, nil
	case UnitTokens:
		return NewTokenCounter()
	default:
		return nil, fmt.Errorf("unknown context budget unit %q", unit)
	}
}
