// Package subscription implements the subscription engine (spec §4.6): one
// worker per subscription (the number of subscriptions is not capped), each delivering events
// from a change feed serially to a user callback, with exponential-backoff
// retry and optional automatic position persistence.
package subscription

import (
	"strings"
	"time"

	"github.com/occurrent-go/occurrent/cloudevent"
)

// Op is a comparison operator used by Filter leaves.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpGt
	OpLte
	OpGte
)

type filterField int

const (
	fieldID filterField = iota
	fieldType
	fieldSource
	fieldSubject
	fieldTime
)

type filterConnective int

const (
	connLeaf filterConnective = iota
	connAnd
	connOr
	connNot
)

// Filter decides which events a subscription receives. It is either a
// structured predicate tree over the id/type/source/subject/time attributes
// (spec §6 Filter DSL), or a raw, vendor-native string handed through
// uninterpreted to the underlying store (here: a literal SQL boolean
// expression evaluated against the events table's columns). A zero Filter
// matches every event.
type Filter struct {
	connective filterConnective
	children   []Filter

	field filterField
	op    Op
	str   string
	t     time.Time

	raw string
}

// ID builds a leaf filter comparing the CloudEvent id attribute.
func ID(op Op, value string) Filter { return Filter{field: fieldID, op: op, str: value} }

// Type builds a leaf filter comparing the CloudEvent type attribute.
func Type(op Op, value string) Filter { return Filter{field: fieldType, op: op, str: value} }

// Source builds a leaf filter comparing the CloudEvent source attribute.
func Source(op Op, value string) Filter { return Filter{field: fieldSource, op: op, str: value} }

// Subject builds a leaf filter comparing the CloudEvent subject attribute.
func Subject(op Op, value string) Filter { return Filter{field: fieldSubject, op: op, str: value} }

// Time builds a leaf filter comparing the CloudEvent time attribute.
func Time(op Op, value time.Time) Filter { return Filter{field: fieldTime, op: op, t: value} }

// And combines filters, matching only when every child matches.
func And(filters ...Filter) Filter { return Filter{connective: connAnd, children: filters} }

// Or combines filters, matching when any child matches.
func Or(filters ...Filter) Filter { return Filter{connective: connOr, children: filters} }

// Not negates a filter.
func Not(filter Filter) Filter { return Filter{connective: connNot, children: []Filter{filter}} }

// Raw wraps a vendor-native filter expression, passed through uninterpreted
// by the core. The changefeed/Postgres adapter treats it as a literal SQL
// boolean expression over the events table's columns (streamid, event_id,
// event_type, event_time); callers are responsible for it being both valid
// SQL and trusted (it is never derived from untrusted input in this repo).
func Raw(expression string) Filter { return Filter{raw: expression} }

// IsRaw reports whether this Filter was built via Raw.
func (f Filter) IsRaw() bool { return f.raw != "" }

// RawExpression returns the raw SQL expression if IsRaw, else "".
func (f Filter) RawExpression() string { return f.raw }

// IsZero reports whether f is the zero Filter (matches everything).
func (f Filter) IsZero() bool {
	return f.connective == connLeaf && f.raw == "" && f.str == "" && f.t.IsZero()
}

// Matches evaluates the structured predicate tree against event. Raw
// filters always match in Go (the SQL form does the real filtering at the
// source); see changefeed's Matcher wiring.
func (f Filter) Matches(event cloudevent.Event) bool {
	if f.raw != "" {
		return true
	}

	if f.IsZero() {
		return true
	}

	switch f.connective {
	case connAnd:
		for _, child := range f.children {
			if !child.Matches(event) {
				return false
			}
		}
		return true

	case connOr:
		for _, child := range f.children {
			if child.Matches(event) {
				return true
			}
		}
		return len(f.children) == 0

	case connNot:
		return !f.children[0].Matches(event)

	default:
		return f.matchesLeaf(event)
	}
}

func (f Filter) matchesLeaf(event cloudevent.Event) bool {
	switch f.field {
	case fieldID:
		return compareStrings(f.op, event.ID, f.str)
	case fieldType:
		return compareStrings(f.op, event.Type, f.str)
	case fieldSource:
		return compareStrings(f.op, event.Source, f.str)
	case fieldSubject:
		return compareStrings(f.op, event.Subject, f.str)
	case fieldTime:
		return compareTimes(f.op, event.Time, f.t)
	default:
		return true
	}
}

func compareStrings(op Op, actual, operand string) bool {
	cmp := strings.Compare(actual, operand)

	switch op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpGt:
		return cmp > 0
	case OpLte:
		return cmp <= 0
	case OpGte:
		return cmp >= 0
	default:
		return false
	}
}

func compareTimes(op Op, actual, operand time.Time) bool {
	switch op {
	case OpEq:
		return actual.Equal(operand)
	case OpNe:
		return !actual.Equal(operand)
	case OpLt:
		return actual.Before(operand)
	case OpGt:
		return actual.After(operand)
	case OpLte:
		return actual.Before(operand) || actual.Equal(operand)
	case OpGte:
		return actual.After(operand) || actual.Equal(operand)
	default:
		return false
	}
}
