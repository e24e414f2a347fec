// Package match reconciles analytical firm rows against persisted profiles
// using an ordered list of matching strategies, first match wins.
package match

import (
	"strings"

	"github.com/sells-group/ria-hunter/internal/model"
)

// Type classifies how a target was matched.
type Type string

const (
	TypeExact   Type = "exact"
	TypePartial Type = "partial"
	TypeNone    Type = "none"
)

// Target is the firm identity carried by an analytical row.
type Target struct {
	FirmName  string
	CRDNumber string
}

// Result reports the outcome of matching one target.
type Result struct {
	Type Type
	// Index into the candidate slice; valid only when Type != TypeNone.
	Index int
}

// Strategy is one matching rule. Match returns the index of the first
// matching candidate. Strategies are pure functions of their inputs.
type Strategy interface {
	Type() Type
	Match(t Target, candidates []model.Profile) (int, bool)
}

// Matcher applies strategies in order and returns the first hit.
type Matcher struct {
	strategies []Strategy
}

// NewMatcher builds a matcher from an ordered strategy list.
func NewMatcher(strategies ...Strategy) *Matcher {
	return &Matcher{strategies: strategies}
}

// Default returns the standard exact-then-partial matcher.
func Default() *Matcher {
	return NewMatcher(Exact{}, Partial{})
}

// Match runs the strategy list against the candidates.
func (m *Matcher) Match(t Target, candidates []model.Profile) Result {
	for _, s := range m.strategies {
		if idx, ok := s.Match(t, candidates); ok {
			return Result{Type: s.Type(), Index: idx}
		}
	}
	return Result{Type: TypeNone}
}

// Exact matches on CRD number equality, falling back to case-insensitive
// full-name equality. Empty identifiers never match.
type Exact struct{}

func (Exact) Type() Type { return TypeExact }

func (Exact) Match(t Target, candidates []model.Profile) (int, bool) {
	if t.CRDNumber != "" {
		for i, c := range candidates {
			if c.CRDNumber != "" && c.CRDNumber == t.CRDNumber {
				return i, true
			}
		}
	}
	name := strings.ToUpper(strings.TrimSpace(t.FirmName))
	if name == "" {
		return 0, false
	}
	for i, c := range candidates {
		if strings.ToUpper(strings.TrimSpace(c.FirmName)) == name {
			return i, true
		}
	}
	return 0, false
}

// Partial matches when a candidate name contains the first token of the
// target name, case-insensitive. Empty names never match.
type Partial struct{}

func (Partial) Type() Type { return TypePartial }

func (Partial) Match(t Target, candidates []model.Profile) (int, bool) {
	fields := strings.Fields(strings.ToUpper(t.FirmName))
	if len(fields) == 0 {
		return 0, false
	}
	token := fields[0]
	for i, c := range candidates {
		if c.FirmName == "" {
			continue
		}
		if strings.Contains(strings.ToUpper(c.FirmName), token) {
			return i, true
		}
	}
	return 0, false
}
