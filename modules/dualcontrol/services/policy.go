package services

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"
)

// Policy declares one sensitive action: the roles either party must hold
// and an optional CEL condition narrowing when the two-person rule applies.
// The condition is evaluated over a string map named ctx.
type Policy struct {
	Action        string   `yaml:"action"`
	RequiredRoles []string `yaml:"required_roles"`
	Condition     string   `yaml:"condition,omitempty"`
}

type policyFile struct {
	Version int      `yaml:"version"`
	Actions []Policy `yaml:"actions"`
}

// PolicySet is the caller-declared registry of actions requiring dual
// control. Built once at startup; immutable afterwards.
type PolicySet struct {
	actions  map[string]Policy
	programs sync.Map
}

// LoadPolicies reads the policy declaration from a YAML file.
func LoadPolicies(path string) (*PolicySet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePolicies(b)
}

// ParsePolicies builds a policy set from raw YAML. Conditions are compiled
// eagerly so a malformed expression fails at boot, not at first use.
func ParsePolicies(b []byte) (*PolicySet, error) {
	var pf policyFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return nil, err
	}
	if pf.Version != 1 {
		return nil, errors.New("dualcontrol: unsupported policy version")
	}
	if len(pf.Actions) == 0 {
		return nil, errors.New("dualcontrol: empty policy set")
	}

	ps := &PolicySet{actions: make(map[string]Policy, len(pf.Actions))}
	for _, p := range pf.Actions {
		action := strings.ToLower(strings.TrimSpace(p.Action))
		if action == "" {
			return nil, errors.New("dualcontrol: policy with empty action")
		}
		if _, dup := ps.actions[action]; dup {
			return nil, fmt.Errorf("dualcontrol: action %q declared twice", action)
		}
		if len(p.RequiredRoles) == 0 {
			return nil, fmt.Errorf("dualcontrol: action %q has no required roles", action)
		}
		if p.Condition != "" {
			if _, err := ps.compileCondition(p.Condition); err != nil {
				return nil, fmt.Errorf("dualcontrol: action %q: %w", action, err)
			}
		}
		p.Action = action
		ps.actions[action] = p
	}
	return ps, nil
}

// Lookup returns the policy declared for an action, if any.
func (ps *PolicySet) Lookup(action string) (Policy, bool) {
	p, ok := ps.actions[strings.ToLower(strings.TrimSpace(action))]
	return p, ok
}

// RequiresDualControl reports whether the action needs the two-person rule
// for the given context. Actions outside the policy set are not sensitive.
// A condition that fails to evaluate resolves to "required" — ambiguity
// never relaxes the rule — and the error is surfaced alongside.
func (ps *PolicySet) RequiresDualControl(action string, ctx map[string]string) (bool, Policy, error) {
	p, ok := ps.Lookup(action)
	if !ok {
		return false, Policy{}, nil
	}
	if p.Condition == "" {
		return true, p, nil
	}
	program, err := ps.compileCondition(p.Condition)
	if err != nil {
		return true, p, err
	}
	if ctx == nil {
		ctx = map[string]string{}
	}
	out, _, err := program.Eval(map[string]any{"ctx": ctx})
	if err != nil {
		return true, p, err
	}
	required, ok := out.Value().(bool)
	if !ok {
		return true, p, errors.New("dualcontrol: condition did not yield a bool")
	}
	return required, p, nil
}

func newConditionEnv() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)))
}

func (ps *PolicySet) compileCondition(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("condition required")
	}
	if cached, ok := ps.programs.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newConditionEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.New("condition output type must be bool")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	ps.programs.Store(expr, program)
	return program, nil
}
