package connector

import "strings"

// Declarative policy rules as they appear in stack configuration. Translation
// to the ODRL wire shape happens in BuildRules.
type Rule struct {
	Action      string       `json:"action"`
	Constraints []Constraint `json:"constraints"`
	// LogicalOperator combines multiple constraints: and, or, xone.
	// May carry an odrl: prefix in configuration.
	LogicalOperator string `json:"logicalConstraint,omitempty"`
}

type Constraint struct {
	LeftOperand  string `json:"leftOperand"`
	Operator     string `json:"operator"`
	RightOperand string `json:"rightOperand"`
}

// PolicyDefinition is the declarative form of a connector policy: a context
// plus permission/prohibition/obligation rule sets.
type PolicyDefinition struct {
	Context     map[string]any `json:"context,omitempty"`
	Permission  []Rule         `json:"permission,omitempty"`
	Prohibition []Rule         `json:"prohibition,omitempty"`
	Obligation  []Rule         `json:"obligation,omitempty"`
}

// DefaultPolicyContext is used when a policy definition carries no context.
func DefaultPolicyContext() map[string]any {
	return map[string]any{
		"odrl":      "http://www.w3.org/ns/odrl/2/",
		"cx-policy": "https://w3id.org/catenax/policy/",
	}
}

// EmptyPolicy is the open policy: no permissions, prohibitions or obligations.
func EmptyPolicy() PolicyDefinition {
	return PolicyDefinition{Context: DefaultPolicyContext()}
}

var validOperators = map[string]bool{"and": true, "or": true, "xone": true}

// BuildRules converts declarative rules into their ODRL wire form.
//
// A rule with no constraints contributes nothing enforceable and is dropped.
// A rule with exactly one constraint and no declared combinator becomes a
// simple Constraint wrapper. Everything else becomes a LogicalConstraint with
// the declared combinator when valid, defaulting to "and".
func BuildRules(rules []Rule) []map[string]any {
	formatted := make([]map[string]any, 0, len(rules))
	for _, rule := range rules {
		if len(rule.Constraints) == 0 {
			continue
		}
		op := strings.ToLower(strings.TrimPrefix(rule.LogicalOperator, "odrl:"))

		var wrapped map[string]any
		if op == "" && len(rule.Constraints) == 1 {
			wrapped = wrapConstraint(rule.Constraints[0])
		} else {
			if !validOperators[op] {
				op = "and"
			}
			members := make([]map[string]any, 0, len(rule.Constraints))
			for _, c := range rule.Constraints {
				members = append(members, wrapConstraint(c))
			}
			wrapped = map[string]any{
				"@type":      "LogicalConstraint",
				"odrl:" + op: members,
			}
		}

		formatted = append(formatted, map[string]any{
			"odrl:action":     map[string]any{"@id": rule.Action},
			"odrl:constraint": wrapped,
		})
	}
	return formatted
}

func wrapConstraint(c Constraint) map[string]any {
	return map[string]any{
		"@type":             "Constraint",
		"odrl:leftOperand":  map[string]any{"@id": c.LeftOperand},
		"odrl:operator":     map[string]any{"@id": c.Operator},
		"odrl:rightOperand": c.RightOperand,
	}
}
