package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sso312/querylens/internal/llm"
	"github.com/sso312/querylens/internal/promptkit"
)

// RepairStage names which repair source produced the final attempt, for
// the audit trail attached to OrchestratorResult.
type RepairStage string

const (
	RepairNone         RepairStage = "none"
	RepairLearnedFix   RepairStage = "learned_fix"
	RepairErrorTemplate RepairStage = "error_template"
	RepairLLM          RepairStage = "llm_repair"
)

// Attempt records one execution attempt inside the repair loop.
type Attempt struct {
	SQL         string
	Stage       RepairStage
	RulesFired  []string
	Error       string
	StaticError string
}

// RepairResult is the outcome of running the full execute-then-repair loop.
type RepairResult struct {
	Result    Result
	FinalSQL  string
	Succeeded bool
	Attempts  []Attempt
}

// RepairLoop wires together the learned-fix store, the ORA-/DPY-/DPI- error
// templates, and an LLM repair pass, in that priority order, per spec
// §4.12: a learned fix is cheapest and most specific, templates are
// deterministic and free, and the LLM pass is the last resort.
type RepairLoop struct {
	Pool      *Pool
	Fixes     *LearnedFixStore
	LLM       llm.Client
	Kit       *promptkit.Kit
	Model     string
	RowCap    int
	MaxAttempts int
}

// NewRepairLoop wires maxAttempts from cfg.SQLAutoRepairMaxAttempts (spec
// §4.11: "a single attempt (configurable)", default 1). Callers pass 0 to
// disable repair entirely per cfg.SQLAutoRepairEnabled: the loop then
// executes once and returns the first failure with no recovery attempt.
func NewRepairLoop(pool *Pool, fixes *LearnedFixStore, llmClient llm.Client, kit *promptkit.Kit, model string, rowCap, maxAttempts int) *RepairLoop {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &RepairLoop{Pool: pool, Fixes: fixes, LLM: llmClient, Kit: kit, Model: model, RowCap: rowCap, MaxAttempts: maxAttempts}
}

// Run executes sql on behalf of userKey, repairing on failure up to
// MaxAttempts times. dbType, plannerIntent, and retrievedContext are passed
// through to the LLM repair prompt only; question feeds that prompt and the
// error templates' top-N intent check. Earlier stages never call the LLM.
func (r *RepairLoop) Run(ctx context.Context, userKey, question, dbType, plannerIntent, retrievedContext, sql string, opts Options) (RepairResult, error) {
	attempts := make([]Attempt, 0, r.MaxAttempts+1)
	current := sql

	maxAttempts := r.MaxAttempts
	if maxAttempts < 0 {
		maxAttempts = 0
	}

	for i := 0; i <= maxAttempts; i++ {
		if err := StaticCheck(current); err != nil {
			attempts = append(attempts, Attempt{SQL: current, Stage: stageForAttempt(attempts), StaticError: err.Error()})
			if i == maxAttempts {
				return RepairResult{FinalSQL: current, Succeeded: false, Attempts: attempts}, err
			}
			next, rules, repaired := r.repair(ctx, userKey, question, dbType, plannerIntent, retrievedContext, current, err.Error())
			if !repaired {
				return RepairResult{FinalSQL: current, Succeeded: false, Attempts: attempts}, err
			}
			current = next
			attempts[len(attempts)-1].RulesFired = rules
			continue
		}

		res, err := r.Pool.Execute(ctx, userKey, current, opts, r.RowCap)
		if err == nil {
			attempts = append(attempts, Attempt{SQL: current, Stage: stageForAttempt(attempts)})
			return RepairResult{Result: res, FinalSQL: current, Succeeded: true, Attempts: attempts}, nil
		}

		attempts = append(attempts, Attempt{SQL: current, Stage: stageForAttempt(attempts), Error: err.Error()})
		if i == maxAttempts {
			return RepairResult{FinalSQL: current, Succeeded: false, Attempts: attempts}, err
		}

		next, rules, repaired := r.repair(ctx, userKey, question, dbType, plannerIntent, retrievedContext, current, err.Error())
		if !repaired {
			return RepairResult{FinalSQL: current, Succeeded: false, Attempts: attempts}, err
		}
		current = next
		attempts[len(attempts)-1].RulesFired = rules
	}

	return RepairResult{FinalSQL: current, Succeeded: false, Attempts: attempts}, fmt.Errorf("repair loop exhausted")
}

// stageForAttempt labels the next attempt by the repair source whose rules
// were recorded on the previous attempt.
func stageForAttempt(attempts []Attempt) RepairStage {
	if len(attempts) == 0 {
		return RepairNone
	}
	rules := attempts[len(attempts)-1].RulesFired
	if len(rules) > 0 && strings.HasPrefix(rules[0], "learned_fix:") {
		return RepairLearnedFix
	}
	if len(rules) > 0 && rules[0] == "llm_repair" {
		return RepairLLM
	}
	return RepairErrorTemplate
}

// repair tries, in order: a previously learned fix, the deterministic error
// templates, then an LLM repair pass. It returns the repaired SQL, the
// names of any rules that fired, and whether a repair was produced at all.
func (r *RepairLoop) repair(ctx context.Context, userKey, question, dbType, plannerIntent, retrievedContext, failedSQL, errorMessage string) (string, []string, bool) {
	failedHash := HashSQL(failedSQL)
	signature := errorSignature(errorMessage)

	if r.Fixes != nil {
		if fix, ok := r.Fixes.Lookup(failedHash, signature); ok && fix.FixedSQL != failedSQL {
			return fix.FixedSQL, []string{"learned_fix:" + fix.ID}, true
		}
	}

	if templated, rules := ApplySQLErrorTemplates(question, failedSQL, errorMessage); len(rules) > 0 && templated != failedSQL {
		if r.Fixes != nil {
			_ = r.Fixes.Record(failedHash+":"+signature, failedHash, signature, templated, HashSQL(templated), "template repair")
		}
		return templated, rules, true
	}

	if r.LLM == nil || r.Kit == nil {
		return failedSQL, nil, false
	}

	prompt, err := r.Kit.Render("repair", map[string]any{
		"DBType":        dbType,
		"Question":      question,
		"FailedSQL":     failedSQL,
		"ErrorMessage":  errorMessage,
		"ErrorDetail":   "",
		"PlannerIntent": plannerIntent,
		"Context":       retrievedContext,
	})
	if err != nil {
		return failedSQL, nil, false
	}

	resp, err := r.LLM.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, r.Model, 0, true)
	if err != nil {
		return failedSQL, nil, false
	}

	var envelope struct {
		FinalSQL string `json:"finalSql"`
	}
	content := strings.TrimSpace(resp.Content)
	content = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(content, "```json"), "```"), "```")
	content = strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(content), &envelope); err != nil || envelope.FinalSQL == "" {
		return failedSQL, nil, false
	}

	if r.Fixes != nil {
		_ = r.Fixes.Record(failedHash+":"+signature, failedHash, signature, envelope.FinalSQL, HashSQL(envelope.FinalSQL), "llm repair")
	}
	return envelope.FinalSQL, []string{"llm_repair"}, true
}

// errorSignature reduces a raw driver error string to a stable key so
// similar failures (same ORA/DPY/DPI code, different bind values) share a
// learned fix.
func errorSignature(errorMessage string) string {
	for _, marker := range append(append(append(append(timeoutMarkers, invalidIdentifierMarkers...), invalidNumberMarkers...), tableNotExistMarkers...), missingKeywordMarkers...) {
		if strings.Contains(strings.ToUpper(errorMessage), marker) {
			return marker
		}
	}
	lower := strings.ToLower(errorMessage)
	if len(lower) > 80 {
		return lower[:80]
	}
	return lower
}
