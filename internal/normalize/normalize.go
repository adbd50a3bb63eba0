// Package normalize rewrites pose text with an ordered list of regular
// expression rules.
package normalize

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/spboyer/posegen/internal/models"
	"gopkg.in/yaml.v3"
)

// Fields lists the pose fields rules can be applied to.
var Fields = []string{"sanskrit", "translation", "etymology", "description", "anatomical"}

// RuleSpec is a rule as written in a rules file.
type RuleSpec struct {
	Name    string `yaml:"name,omitempty"`
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`
}

// RulesFile is the document read by LoadRules.
type RulesFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// Rule is a compiled rewrite. Replace may refer to capture groups as $1 or ${name}.
type Rule struct {
	Name    string
	re      *regexp.Regexp
	replace string
}

// NewRule compiles a rule.
func NewRule(name, pattern, replace string) (Rule, error) {
	if pattern == "" {
		return Rule{}, errors.New("rule pattern is empty")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", name, err)
	}
	return Rule{Name: name, re: re, replace: replace}, nil
}

func (r Rule) Apply(s string) string {
	return r.re.ReplaceAllString(s, r.replace)
}

// RuleSet applies its rules in order.
type RuleSet []Rule

func (rs RuleSet) Apply(s string) string {
	for _, r := range rs {
		s = r.Apply(s)
	}
	return s
}

// DefaultRules only cleans up whitespace.
func DefaultRules() RuleSet {
	return RuleSet{
		mustRule("collapse-spaces", `[ \t]+`, " "),
		mustRule("trim-lines", `[ \t]*\n[ \t]*`, "\n"),
		mustRule("trim", `^\s+|\s+$`, ""),
	}
}

func mustRule(name, pattern, replace string) Rule {
	r, err := NewRule(name, pattern, replace)
	if err != nil {
		panic(err)
	}
	return r
}

// LoadRules reads a YAML rules file. An empty path returns DefaultRules.
func LoadRules(path string) (RuleSet, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) (RuleSet, error) {
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}

	rules := make(RuleSet, 0, len(file.Rules))
	for i, spec := range file.Rules {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("rule %d", i+1)
		}
		r, err := NewRule(name, spec.Pattern, spec.Replace)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// CheckFields returns an error naming the first unknown field.
func CheckFields(fields []string) error {
	for _, f := range fields {
		if !slices.Contains(Fields, f) {
			return fmt.Errorf("unknown pose field %q (expected one of %s)", f, strings.Join(Fields, ", "))
		}
	}
	return nil
}

// Catalog applies rules to the given fields of every pose in cat, in place,
// and returns how many field values changed.
func Catalog(cat *models.PoseCatalog, rules RuleSet, fields []string) (int, error) {
	if err := CheckFields(fields); err != nil {
		return 0, err
	}

	changed := 0
	for si := range cat.Sections {
		poses := cat.Sections[si].Poses
		for pi := range poses {
			for _, f := range fields {
				p := fieldOf(&poses[pi], f)
				if out := rules.Apply(*p); out != *p {
					*p = out
					changed++
				}
			}
		}
	}
	return changed, nil
}

func fieldOf(p *models.Pose, name string) *string {
	switch name {
	case "sanskrit":
		return &p.Sanskrit
	case "translation":
		return &p.Translation
	case "etymology":
		return &p.Etymology
	case "anatomical":
		return &p.Anatomical
	default:
		return &p.Description
	}
}
