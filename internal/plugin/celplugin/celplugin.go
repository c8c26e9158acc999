// Package celplugin is an example non-terminal policy plugin: it evaluates
// a CEL boolean expression against the (client, user, privilege) triple and
// optionally escalates to an agent for confirmation before answering,
// demonstrating the full ANSWER_READY/ANSWER_NOTREADY/ERROR contract of
// §4.5 end-to-end. It is grounded on the teacher's CEL expression evaluator
// (internal/adapter/outbound/cel/evaluator.go), narrowed from the full
// request-context environment to the three identity variables a policy
// check exposes.
package celplugin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/privd/privd/internal/apperr"
	"github.com/privd/privd/internal/domain/plugin"
	"github.com/privd/privd/internal/domain/policy"
)

// maxExpressionLength bounds a stored expression, mirroring the teacher's
// SECU-05 guard against pathological CEL programs.
const maxExpressionLength = 1024

// maxCostBudget and evalTimeout bound one evaluation, mirroring the
// teacher's HARDEN-02 cost-exhaustion guard.
const (
	maxCostBudget = 100_000
	evalTimeout   = 2 * time.Second
)

// agentPrefix marks an expression whose false result escalates to an agent
// for confirmation rather than answering DENY immediately, e.g.
// "agent:human-confirm|privilege == 'shutdown'".
const agentPrefix = "agent:"

// Plugin implements plugin.Handler by compiling and evaluating a CEL
// expression carried in the policy Result's Metadata.
type Plugin struct {
	env *cel.Env
}

// New builds the CEL environment exposing client/user/privilege as string
// variables, the only context a bucketed policy check has available.
func New() (*Plugin, error) {
	env, err := cel.NewEnv(
		cel.Variable("client", cel.StringType),
		cel.Variable("user", cel.StringType),
		cel.Variable("privilege", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("build CEL environment: %w", err)
	}
	return &Plugin{env: env}, nil
}

func (p *Plugin) compile(expr string) (cel.Program, error) {
	if len(expr) > maxExpressionLength {
		return nil, fmt.Errorf("expression too long: %d characters", len(expr))
	}
	ast, issues := p.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	prg, err := p.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	return prg, nil
}

func (p *Plugin) evaluate(prg cel.Program, client, user, privilege string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()
	out, _, err := prg.ContextEval(ctx, map[string]any{
		"client":    client,
		"user":      user,
		"privilege": privilege,
	})
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to a bool")
	}
	return b, nil
}

func splitMetadata(metadata string) (agentType, expr string) {
	if rest, ok := strings.CutPrefix(metadata, agentPrefix); ok {
		if agent, expr, ok := strings.Cut(rest, "|"); ok {
			return agent, expr
		}
	}
	return "", metadata
}

// Check implements plugin.Handler (§4.5). A true expression answers ALLOW
// immediately. A false expression answers DENY immediately unless the
// stored metadata names an agent to confirm with, in which case the check
// suspends (ANSWER_NOTREADY) with the expression text as the agent payload.
func (p *Plugin) Check(client, user, privilege string, in policy.Result) (plugin.Status, policy.Result, string, string) {
	agentType, expr := splitMetadata(in.Metadata)

	prg, err := p.compile(expr)
	if err != nil {
		return plugin.Error, policy.Result{}, "", ""
	}
	matched, err := p.evaluate(prg, client, user, privilege)
	if err != nil {
		return plugin.Error, policy.Result{}, "", ""
	}
	if matched {
		return plugin.AnswerReady, policy.ResultAllow, "", ""
	}
	if agentType == "" {
		return plugin.AnswerReady, policy.ResultDeny, "", ""
	}
	return plugin.AnswerNotReady, policy.Result{}, agentType, expr
}

// Update implements plugin.Handler: the agent's payload is a literal
// "allow" or "deny" confirming or overriding the expression's false
// result.
func (p *Plugin) Update(client, user, privilege, agentPayload string) (plugin.Status, policy.Result) {
	switch strings.ToLower(strings.TrimSpace(agentPayload)) {
	case "allow":
		return plugin.AnswerReady, policy.ResultAllow
	case "deny":
		return plugin.AnswerReady, policy.ResultDeny
	default:
		return plugin.Error, policy.Result{}
	}
}

// Name is the description registered for this plugin's policy type (§4.5
// list_descriptions).
const Name = "CEL"

// DefaultType is the policy type this plugin is registered under unless
// the daemon picks a different slot in the plugin range.
const DefaultType = policy.PluginTypeMin

// ValidateMetadata reports whether metadata's CEL expression compiles, so
// a caller can reject a malformed CEL policy before it reaches the store
// (§4.2 insert validation is otherwise purely structural; this adds the
// plugin's own well-formedness check ahead of a failed Check at
// evaluation time). Neither the daemon's insert path nor privadm calls it.
func ValidateMetadata(p *Plugin, metadata string) error {
	_, expr := splitMetadata(metadata)
	if _, err := p.compile(expr); err != nil {
		return apperr.Wrap(apperr.CodeInvalidParam, "invalid CEL expression", err)
	}
	return nil
}
