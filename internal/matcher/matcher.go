// Package matcher evaluates OSC payloads against named regular expressions.
package matcher

import (
	"fmt"
	"regexp"
)

// Definition is one uncompiled matcher as supplied by the CLI or a
// matcher file: a unique name and a regular expression source.
type Definition struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// Spec is a compiled matcher.
type Spec struct {
	Name    string
	Pattern *regexp.Regexp
}

// Match is the result of one spec firing against a payload.
type Match struct {
	Name  string
	Value string
}

// Set holds the compiled matchers for one session. The set is fixed at
// startup and read-only afterwards.
type Set struct {
	specs []Spec
}

// Compile validates definitions and compiles their patterns. Names must be
// non-empty and unique. Any failure here is fatal for the session, so it
// happens before the target command is spawned.
func Compile(defs []Definition) (*Set, error) {
	seen := make(map[string]struct{}, len(defs))
	specs := make([]Spec, 0, len(defs))

	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("matcher with pattern %q has no name", d.Pattern)
		}
		if _, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("duplicate matcher name %q", d.Name)
		}
		re, err := regexp.Compile(d.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern for matcher %q: %w", d.Name, err)
		}
		seen[d.Name] = struct{}{}
		specs = append(specs, Spec{Name: d.Name, Pattern: re})
	}

	return &Set{specs: specs}, nil
}

// Len returns the number of compiled matchers.
func (s *Set) Len() int {
	return len(s.specs)
}

// Eval runs every matcher against the payload, in registration order.
// Each matcher fires at most once per payload, on its first (unanchored)
// match. If the pattern has a capture group, the extracted value is group 1;
// otherwise it is the whole matched substring.
func (s *Set) Eval(payload string) []Match {
	var matches []Match
	for _, spec := range s.specs {
		sub := spec.Pattern.FindStringSubmatch(payload)
		if sub == nil {
			continue
		}
		value := sub[0]
		if spec.Pattern.NumSubexp() > 0 {
			value = sub[1]
		}
		matches = append(matches, Match{Name: spec.Name, Value: value})
	}
	return matches
}
