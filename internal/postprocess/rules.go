// Package postprocess implements the deterministic SQL Post-processor from
// spec §4.8 as a YAML rules file evaluated with github.com/expr-lang/expr,
// per SPEC_FULL.md §4.13: each rule is a name, an expr boolean condition
// evaluated against a small typed env, and an action naming a built-in
// rewrite, so ops can enable, disable or re-gate each rewrite per profile
// without a code change.
package postprocess

import (
	"fmt"
	"os"

	"github.com/expr-lang/expr"
	"gopkg.in/yaml.v3"
)

// Profile is the recommendPostprocessProfile result from spec §4.8.
type Profile string

const (
	ProfileConservative Profile = "conservative"
	ProfileRelaxed       Profile = "relaxed"
	ProfileAggressive    Profile = "aggressive"
)

// Env is the typed environment rule conditions are evaluated against:
// question features and the current SQL text.
type Env struct {
	Question  string
	QuestionEn string
	SQL       string
	Profile   string
}

// Rule is one YAML-configured deterministic rewrite gate. Condition is an
// expr-lang boolean expression over Env; Action names which built-in
// rewrite function to apply (see apply.go).
type Rule struct {
	Name      string `yaml:"name"`
	Condition string `yaml:"condition"`
	Action    string `yaml:"action"`
	Profiles  []string `yaml:"profiles,omitempty"`

	program *expr.Program
}

// RuleSet is the loaded, compiled rules file.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads and compiles the rules file at path. A missing file is not
// an error; it yields the DefaultRules set (matching the teacher's tolerant
// file-probing pattern), in which time_window and schema_alias_hints run only
// under the relaxed and aggressive profiles.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return compiledDefaults()
		}
		return nil, fmt.Errorf("postprocess: read rules file: %w", err)
	}
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("postprocess: parse rules file: %w", err)
	}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	return &rs, nil
}

func compiledDefaults() (*RuleSet, error) {
	rs := &RuleSet{Rules: DefaultRules}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	return rs, nil
}

func (rs *RuleSet) compile() error {
	for i := range rs.Rules {
		p, err := expr.Compile(rs.Rules[i].Condition, expr.Env(Env{}))
		if err != nil {
			return fmt.Errorf("postprocess: compile rule %q: %w", rs.Rules[i].Name, err)
		}
		rs.Rules[i].program = p
	}
	return nil
}

// DefaultRules mirrors spec §4.8's named rules, each optional and governed
// by this file.
var DefaultRules = []Rule{
	{
		Name:      "diagnosis_procedure_rewrite",
		Condition: `true`,
		Action:    "diagnosis_procedure_rewrite",
		Profiles:  []string{"conservative", "relaxed", "aggressive"},
	},
	{
		Name:      "mortality_ratio",
		Condition: `true`,
		Action:    "mortality_ratio",
		Profiles:  []string{"conservative", "relaxed", "aggressive"},
	},
	{
		Name:      "time_window",
		Condition: `true`,
		Action:    "time_window",
		Profiles:  []string{"relaxed", "aggressive"},
	},
	{
		Name:      "admissions_icustays_alignment",
		Condition: `true`,
		Action:    "admissions_icustays_alignment",
		Profiles:  []string{"conservative", "relaxed", "aggressive"},
	},
	{
		Name:      "schema_alias_hints",
		Condition: `true`,
		Action:    "schema_alias_hints",
		Profiles:  []string{"relaxed", "aggressive"},
	},
}

// Eval runs cond against env.
func (r Rule) Eval(env Env) (bool, error) {
	out, err := expr.Run(r.program, env)
	if err != nil {
		return false, err
	}
	b, _ := out.(bool)
	return b, nil
}

// Enabled reports whether r applies under profile.
func (r Rule) Enabled(profile Profile) bool {
	if len(r.Profiles) == 0 {
		return true
	}
	for _, p := range r.Profiles {
		if Profile(p) == profile {
			return true
		}
	}
	return false
}
