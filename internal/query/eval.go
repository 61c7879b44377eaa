package query

import (
	"slices"
	"strings"
)

// Subject is what the in-process evaluator needs to know about one contact.
type Subject interface {
	ID() int64
	// Text returns a scalar field; ok is false when it is null or absent.
	Text(field string) (value string, ok bool)
	List(field string) []string
	EventTypes() []string
}

// Matches evaluates c against s with the same semantics the SQL rendering
// has in Postgres.
func Matches(c Cond, s Subject) bool {
	switch c.Op {
	case OpAnd:
		for _, child := range c.Children {
			if !Matches(child, s) {
				return false
			}
		}
		return true
	case OpOr:
		for _, child := range c.Children {
			if Matches(child, s) {
				return true
			}
		}
		return false
	case OpEq:
		v, ok := s.Text(c.Field)
		return ok && v == c.Value
	case OpILike:
		v, ok := s.Text(c.Field)
		return ok && strings.Contains(strings.ToLower(v), strings.ToLower(c.Value))
	case OpIn:
		v, ok := s.Text(c.Field)
		return ok && slices.Contains(c.Values, v)
	case OpIsNull:
		_, ok := s.Text(c.Field)
		return !ok
	case OpNotTrue:
		v, ok := s.Text(c.Field)
		return !ok || v != "true"
	case OpOverlap:
		for _, have := range s.List(c.Field) {
			if slices.Contains(c.Values, have) {
				return true
			}
		}
		return false
	case OpFullText:
		doc, ok := s.Text(c.Field)
		if !ok {
			return false
		}
		words := strings.Fields(strings.ToLower(c.Value))
		if len(words) == 0 {
			return false
		}
		doc = strings.ToLower(doc)
		for _, w := range words {
			if !strings.Contains(doc, w) {
				return false
			}
		}
		return true
	case OpIDIn:
		return slices.Contains(c.IDs, s.ID())
	case OpIDNotIn:
		return !slices.Contains(c.IDs, s.ID())
	case OpEvents:
		have := s.EventTypes()
		if c.MatchAll {
			for _, want := range c.Values {
				if !slices.Contains(have, want) {
					return false
				}
			}
			return len(c.Values) > 0
		}
		for _, want := range c.Values {
			if slices.Contains(have, want) {
				return true
			}
		}
		return false
	}
	return false
}

// MatchesAll evaluates every condition of f.
func (f Fragment) MatchesAll(s Subject) bool {
	for _, c := range f.conds {
		if !Matches(c, s) {
			return false
		}
	}
	return true
}
