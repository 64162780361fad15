// Package rules implements pattern-based rejection of tool arguments and
// rendered commands. A rule is a regular expression plus a human-readable
// message; a match means the value is rejected.
package rules

import (
	"fmt"
	"regexp"
)

// Rule pairs a pattern with the message returned when the pattern matches.
type Rule struct {
	Pattern string `json:"pattern" yaml:"pattern" mapstructure:"pattern"`
	Message string `json:"message" yaml:"message" mapstructure:"message"`
}

type compiledRule struct {
	re      *regexp.Regexp
	message string
}

// Set is a compiled, ordered collection of rules.
type Set struct {
	rules []compiledRule
}

// Compile builds a Set from rule definitions. An invalid pattern is a
// configuration error, not a rule to be skipped.
func Compile(defs []Rule) (*Set, error) {
	s := &Set{rules: make([]compiledRule, 0, len(defs))}
	for _, def := range defs {
		if def.Pattern == "" {
			continue
		}
		re, err := regexp.Compile(def.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid validation rule pattern %q: %w", def.Pattern, err)
		}
		message := def.Message
		if message == "" {
			message = fmt.Sprintf("Validation failed for pattern: %s", def.Pattern)
		}
		s.rules = append(s.rules, compiledRule{re: re, message: message})
	}
	return s, nil
}

// Check runs the value through every rule in order. The first match rejects
// the value and returns that rule's message.
func (s *Set) Check(value string) (bool, string) {
	if s == nil {
		return true, ""
	}
	for _, rule := range s.rules {
		if rule.re.MatchString(value) {
			return false, rule.message
		}
	}
	return true, ""
}

// Len returns the number of compiled rules.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}
