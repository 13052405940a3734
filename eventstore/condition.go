package eventstore

import "strings"

// conditionOp is the comparison a leaf WriteCondition applies to the
// stream's current version.
type conditionOp int

const (
	opEq conditionOp = iota
	opNe
	opLt
	opGt
	opLte
	opGte
)

// connective combines nested WriteConditions.
type connective int

const (
	connNone connective = iota
	connAnd
	connOr
	connNot
)

// WriteCondition is a predicate over a stream's current version, evaluated
// before a write is committed. The zero value, AnyStreamVersion, always
// holds. Conditions compose via And/Or/Not into an arbitrarily nested tree;
// Eval and Render walk that tree without ever touching a storage API.
// postgresengine fetches a stream's version and calls Eval on it; no
// translation of a condition into a storage filter exists.
type WriteCondition struct {
	isAny      bool
	op         conditionOp
	operand    uint64
	connective connective
	children   []WriteCondition
}

// AnyStreamVersion is the WriteCondition that always holds — an unconditional
// write. It is the only condition that a None-guarantee store accepts.
func AnyStreamVersion() WriteCondition {
	return WriteCondition{isAny: true}
}

func leaf(op conditionOp, version uint64) WriteCondition {
	return WriteCondition{op: op, operand: version}
}

func StreamVersionEq(version uint64) WriteCondition  { return leaf(opEq, version) }
func StreamVersionNe(version uint64) WriteCondition  { return leaf(opNe, version) }
func StreamVersionLt(version uint64) WriteCondition  { return leaf(opLt, version) }
func StreamVersionGt(version uint64) WriteCondition  { return leaf(opGt, version) }
func StreamVersionLte(version uint64) WriteCondition { return leaf(opLte, version) }
func StreamVersionGte(version uint64) WriteCondition { return leaf(opGte, version) }

// And combines conditions such that all of them must hold.
func And(conditions ...WriteCondition) WriteCondition {
	return WriteCondition{connective: connAnd, children: conditions}
}

// Or combines conditions such that at least one of them must hold.
func Or(conditions ...WriteCondition) WriteCondition {
	return WriteCondition{connective: connOr, children: conditions}
}

// Not negates a condition.
func Not(condition WriteCondition) WriteCondition {
	return WriteCondition{connective: connNot, children: []WriteCondition{condition}}
}

// IsAny reports whether c is the unconditional AnyStreamVersion.
func (c WriteCondition) IsAny() bool {
	return c.isAny
}

// Eval reports whether c holds against actualVersion.
func (c WriteCondition) Eval(actualVersion uint64) bool {
	if c.isAny {
		return true
	}

	switch c.connective {
	case connAnd:
		for _, child := range c.children {
			if !child.Eval(actualVersion) {
				return false
			}
		}
		return true
	case connOr:
		for _, child := range c.children {
			if child.Eval(actualVersion) {
				return true
			}
		}
		return false
	case connNot:
		return !c.children[0].Eval(actualVersion)
	default:
		return c.evalLeaf(actualVersion)
	}
}

func (c WriteCondition) evalLeaf(actualVersion uint64) bool {
	switch c.op {
	case opEq:
		return actualVersion == c.operand
	case opNe:
		return actualVersion != c.operand
	case opLt:
		return actualVersion < c.operand
	case opGt:
		return actualVersion > c.operand
	case opLte:
		return actualVersion <= c.operand
	case opGte:
		return actualVersion >= c.operand
	default:
		return false
	}
}

// Render produces the phrase that fills the "<phrase>" slot in the canonical
// WriteConditionNotFulfilledError message (spec §4.2): the bare comparison
// for a leaf, e.g. "equal to 3"; for a composite, each clause after the
// first carries its own "to be"/"to not be", e.g.
// "greater than or equal to 0 and to be less than 100 and to not be equal to 40".
func (c WriteCondition) Render() string {
	if c.isAny {
		return "any version"
	}

	switch c.connective {
	case connAnd:
		return c.join(" and ")
	case connOr:
		return c.join(" or ")
	}

	negated, phrase := c.decompose()
	if negated {
		return "not " + phrase
	}

	return phrase
}

// decompose reduces c to a single (negated, phrase) pair, so a Not wrapper
// or a Ne leaf can fold into the surrounding clause's "to be"/"to not be"
// instead of nesting its own "not ". And/Or composites collapse to one
// parenthesized phrase when nested inside another composite or a Not — the
// top-level spec examples never need this, but it keeps nesting well-defined.
func (c WriteCondition) decompose() (negated bool, phrase string) {
	switch c.connective {
	case connAnd:
		return false, "(" + c.join(" and ") + ")"
	case connOr:
		return false, "(" + c.join(" or ") + ")"
	case connNot:
		childNegated, childPhrase := c.children[0].decompose()
		return !childNegated, childPhrase
	default:
		return c.decomposeLeaf()
	}
}

func (c WriteCondition) decomposeLeaf() (negated bool, phrase string) {
	switch c.op {
	case opEq:
		return false, "equal to " + formatVersion(c.operand)
	case opNe:
		return true, "equal to " + formatVersion(c.operand)
	case opLt:
		return false, "less than " + formatVersion(c.operand)
	case opGt:
		return false, "greater than " + formatVersion(c.operand)
	case opLte:
		return false, "less than or equal to " + formatVersion(c.operand)
	case opGte:
		return false, "greater than or equal to " + formatVersion(c.operand)
	default:
		return false, "unknown"
	}
}

// join renders c's children as and/or-joined clauses: the first clause is
// bare, every later clause carries an explicit "to be"/"to not be" so the
// joined phrase reads naturally after "Expected version to be ".
func (c WriteCondition) join(connector string) string {
	parts := make([]string, 0, len(c.children))

	for i, child := range c.children {
		negated, phrase := child.decompose()
		parts = append(parts, clauseText(negated, phrase, i == 0))
	}

	return strings.Join(parts, connector)
}

func clauseText(negated bool, phrase string, first bool) string {
	switch {
	case first && negated:
		return "not " + phrase
	case first:
		return phrase
	case negated:
		return "to not be " + phrase
	default:
		return "to be " + phrase
	}
}
