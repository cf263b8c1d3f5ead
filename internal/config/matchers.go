package config

import (
	"github.com/yosagi/osc-tap/internal/matcher"
)

// MatcherFile is the YAML matcher-definition file format:
//
//	matchers:
//	  - name: TITLE
//	    pattern: "0;(.*)"
type MatcherFile struct {
	Matchers []matcher.Definition `yaml:"matchers"`
}

// LoadMatcherFile loads matcher definitions from a YAML file. Patterns are
// validated later, when the whole set is compiled.
func LoadMatcherFile(path string) ([]matcher.Definition, error) {
	var f MatcherFile
	if err := LoadYAML(path, &f); err != nil {
		return nil, err
	}
	return f.Matchers, nil
}
