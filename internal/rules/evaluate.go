package rules

import (
	"strconv"
	"strings"

	"productimport/internal/catalog"
)

type Operator string

const (
	OpEq        Operator = "eq"
	OpNeq       Operator = "neq"
	OpStarts    Operator = "starts"
	OpEnds      Operator = "ends"
	OpContains  Operator = "contains"
	OpNContains Operator = "ncontains"
	OpBetween   Operator = "between"
)

var operatorAliases = map[string]Operator{
	"equals":       OpEq,
	"not_equals":   OpNeq,
	"starts_with":  OpStarts,
	"ends_with":    OpEnds,
	"not_contains": OpNContains,
}

// Canonical maps an alias onto its operator. Unknown names are returned
// as-is and evaluate to false.
func (o Operator) Canonical() Operator {
	name := strings.ToLower(strings.TrimSpace(string(o)))
	if op, ok := operatorAliases[name]; ok {
		return op
	}
	return Operator(name)
}

// Evaluate tests a resolved value against one condition. An unresolved
// value never matches.
func Evaluate(v Value, found bool, op Operator, condValue string) bool {
	if !found {
		return false
	}
	op = op.Canonical()
	if op == OpBetween {
		return evaluateBetween(v, condValue)
	}
	want := normalize(condValue)
	if v.IsList {
		return evaluateList(v.List, op, want)
	}
	return compare(normalize(v.Scalar), op, want)
}

func evaluateList(items []string, op Operator, want string) bool {
	switch op {
	case OpNeq:
		return !anyItem(items, OpEq, want)
	case OpNContains:
		return !anyItem(items, OpContains, want)
	case OpEq, OpStarts, OpEnds, OpContains:
		return anyItem(items, op, want)
	}
	return false
}

func anyItem(items []string, op Operator, want string) bool {
	for _, item := range items {
		if compare(normalize(item), op, want) {
			return true
		}
	}
	return false
}

func compare(got string, op Operator, want string) bool {
	switch op {
	case OpEq:
		return got == want
	case OpNeq:
		return got != want
	case OpStarts:
		return strings.HasPrefix(got, want)
	case OpEnds:
		return strings.HasSuffix(got, want)
	case OpContains:
		return strings.Contains(got, want)
	case OpNContains:
		return !strings.Contains(got, want)
	}
	return false
}

// evaluateBetween reads condValue as "<min>-<max>". A max of zero means
// there is no upper bound.
func evaluateBetween(v Value, condValue string) bool {
	lower, upper, ok := parseRange(condValue)
	if !ok {
		return false
	}
	in := func(raw string) bool {
		d, ok := catalog.ParsePrice(raw)
		if !ok {
			return false
		}
		n := d.InexactFloat64()
		return n >= lower && (upper == 0 || n <= upper)
	}
	if !v.IsList {
		return in(v.Scalar)
	}
	for _, item := range v.List {
		if in(item) {
			return true
		}
	}
	return false
}

func parseRange(s string) (float64, float64, bool) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, 0, false
	}
	lower, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return 0, 0, false
	}
	hi = strings.TrimSpace(hi)
	if hi == "" {
		return lower, 0, true
	}
	upper, err := strconv.ParseFloat(hi, 64)
	if err != nil {
		return 0, 0, false
	}
	return lower, upper, true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
