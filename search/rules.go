package search

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/mission-search-api/models"
)

// Rule operators as stored on widgets
const (
	RuleIs             = "is"
	RuleIsNot          = "is_not"
	RuleContains       = "contains"
	RuleDoesNotContain = "does_not_contain"
	RuleGreaterThan    = "is_greater_than"
	RuleLessThan       = "is_less_than"
	RuleExists         = "exists"
	RuleDoesNotExist   = "does_not_exist"
	RuleStartsWith     = "starts_with"
)

// Rule combinators
const (
	CombinatorAnd = "and"
	CombinatorOr  = "or"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// CompileRules turns a widget's stored rules into a predicate.
//
// Rules missing a field, an operator or a required value are dropped. When
// at least two rules remain, the first rule takes the combinator of the
// second one before grouping. Rules combined with "and" are conjoined, rules
// combined with "or" are disjoined, and both groups are conjoined.
func CompileRules(rules []models.Rule) Predicate {
	valid := make([]models.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Field == "" || r.Operator == "" {
			continue
		}
		if r.Value == "" && r.Operator != RuleExists && r.Operator != RuleDoesNotExist {
			continue
		}
		valid = append(valid, r)
	}
	if len(valid) > 1 {
		valid[0].Combinator = valid[1].Combinator
	}

	var and, or []Predicate
	for _, r := range valid {
		leaf, ok := compileRule(r)
		if !ok {
			zap.S().Debugw("dropping widget rule",
				"field", r.Field,
				"operator", r.Operator,
				"value", r.Value)
			continue
		}
		if r.Combinator == CombinatorOr {
			or = append(or, leaf)
		} else {
			and = append(and, leaf)
		}
	}

	b := Builder{}.And(AllOf(and...))
	if len(or) > 0 {
		b = b.And(AnyOf(or...))
	}
	return b.Build()
}

func compileRule(r models.Rule) (Predicate, bool) {
	field, ok := LookupRuleField(r.Field)
	if !ok {
		return nil, false
	}
	kind, _ := KindOf(field)

	switch r.Operator {
	case RuleExists:
		return Leaf{Field: field, Op: OpExists}, true
	case RuleDoesNotExist:
		return Leaf{Field: field, Op: OpNotExists}, true
	case RuleIs, RuleIsNot:
		v, ok := ruleValue(kind, r.Value)
		if !ok {
			return nil, false
		}
		op := OpEq
		if r.Operator == RuleIsNot {
			op = OpNe
		}
		return Leaf{Field: field, Op: op, Value: v}, true
	case RuleContains, RuleDoesNotContain, RuleStartsWith:
		if kind == KindNumber || kind == KindDate {
			return nil, false
		}
		pattern := ContainsPattern(r.Value)
		if r.Operator == RuleStartsWith {
			pattern = PrefixPattern(r.Value)
		}
		op := OpMatch
		if r.Operator == RuleDoesNotContain {
			op = OpNotMatch
		}
		return Leaf{Field: field, Op: op, Value: pattern}, true
	case RuleGreaterThan, RuleLessThan:
		if kind == KindArray {
			return nil, false
		}
		v, ok := ruleValue(kind, r.Value)
		if !ok {
			return nil, false
		}
		op := OpGt
		if r.Operator == RuleLessThan {
			op = OpLt
		}
		return Leaf{Field: field, Op: op, Value: v}, true
	}
	return nil, false
}

// ruleValue converts the stored string to the Go type the field kind compares with
func ruleValue(kind Kind, raw string) (interface{}, bool) {
	switch kind {
	case KindNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case KindDate:
		t, ok := parseDate(raw)
		return t, ok
	}
	return raw, true
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
