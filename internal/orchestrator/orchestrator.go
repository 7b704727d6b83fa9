// Package orchestrator assembles Core A's pipeline (spec §2) in strict
// stage order: Clarifier -> Translator -> Risk -> Retriever -> Budgeter ->
// Planner -> Engineer -> Expert -> Post-processor -> Intent Guard -> Policy
// Gate -> Executor+Repair. It is the single place that knows the full
// stage order; every package it calls stays ignorant of its neighbors,
// mirroring how the teacher's inference/pipeline.go composes react.go,
// verify_sql_tool.go, and update_context_tool.go without any of them
// knowing about the others.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sso312/querylens/internal/apperr"
	"github.com/sso312/querylens/internal/budget"
	"github.com/sso312/querylens/internal/clarifier"
	"github.com/sso312/querylens/internal/config"
	"github.com/sso312/querylens/internal/docstore"
	"github.com/sso312/querylens/internal/executor"
	"github.com/sso312/querylens/internal/intentguard"
	"github.com/sso312/querylens/internal/planner"
	"github.com/sso312/querylens/internal/policy"
	"github.com/sso312/querylens/internal/postprocess"
	"github.com/sso312/querylens/internal/retrieval"
	"github.com/sso312/querylens/internal/risk"
	"github.com/sso312/querylens/internal/sqlgen"
	"github.com/sso312/querylens/internal/translator"
)

// Mode names the orchestrator's top-level outcome per spec §3's
// OrchestratorResult.
type Mode string

const (
	ModeAdvanced Mode = "advanced"
	ModeDemo     Mode = "demo"
	ModeClarify  Mode = "clarify"
)

// Final is the OrchestratorResult.final shape from spec §3.
type Final struct {
	FinalSQL                string
	Postprocess             []postprocess.Outcome
	IntentAlignmentIssues   []string
	IntentAlignmentRepaired bool
}

// Result is spec §3's OrchestratorResult, minus the request-tracing fields
// that belong to the HTTP layer.
type Result struct {
	Question        string
	QuestionEn      string
	Planner         *planner.Intent
	PlannerDecision planner.Decision
	Risk            risk.Result
	Context         string
	Draft           sqlgen.Draft
	Final           Final
	Policy          *policy.Decision
	Mode            Mode
	Assumptions     []string
	Execution       *executor.RepairResult
	Clarification   *clarifier.Result
}

// StageCallback streams one pipeline stage's name and a short status,
// generalizing the teacher's StepCallback/ReActStep mechanism (pipeline.go)
// so an HTTP handler can forward progress over SSE/long-poll.
type StageCallback func(stage, status string, detail any)

// Dependencies bundles every stage collaborator the Orchestrator needs.
// Each field is the out-of-scope interface (or its demo implementation)
// consumed read-only by Run.
type Dependencies struct {
	Clarifier  *clarifier.Clarifier
	Translator *translator.Translator
	Retriever  *retrieval.Retriever
	Planner    *planner.Planner
	Generator  *sqlgen.Generator
	PostRules  *postprocess.RuleSet
	RepairLoop *executor.RepairLoop
	Catalog    []string // full table catalog, for EffectiveScope
}

// Orchestrator runs Core A end to end.
type Orchestrator struct {
	deps Dependencies
	cfg  *config.Config
}

func New(deps Dependencies, cfg *config.Config) *Orchestrator {
	return &Orchestrator{deps: deps, cfg: cfg}
}

// docTypes is the fixed retrieval scan list from spec §2/§4.4.
var docTypes = []docstore.DocType{
	docstore.TypeSchema, docstore.TypeExample, docstore.TypeTemplate, docstore.TypeGlossary,
	docstore.TypeDiagnosisMap, docstore.TypeProcedureMap, docstore.TypeLabelIntent,
	docstore.TypeColumnValue, docstore.TypeTableProfile,
}

// Run executes the full Core A pipeline for one question, honoring userKey
// for pool/settings scoping (spec §5) and userScope for the policy table
// whitelist (spec §4.10).
func (o *Orchestrator) Run(ctx context.Context, userKey, question string, history []clarifier.Turn, userScope []string, emit StageCallback) (Result, error) {
	if emit == nil {
		emit = func(string, string, any) {}
	}
	res := Result{Question: question}

	emit("clarifier", "start", nil)
	if o.deps.Clarifier != nil {
		clar, err := o.deps.Clarifier.Clarify(ctx, question, history)
		if err != nil {
			emit("clarifier", "error", err.Error())
		} else {
			res.Clarification = &clar
			res.Assumptions = append(res.Assumptions, clar.Assumptions...)
			if clar.NeedClarification {
				res.Mode = ModeClarify
				emit("clarifier", "needs_clarification", clar.ClarificationQuestion)
				return res, nil
			}
			if clar.RefinedQuestion != "" {
				question = clar.RefinedQuestion
				res.Question = question
			}
		}
	}
	emit("clarifier", "done", nil)

	questionEn := question
	if o.cfg.TranslateKoToEn && o.deps.Translator != nil && containsHangul(question) {
		emit("translator", "start", nil)
		if translated, err := o.deps.Translator.Translate(ctx, question); err == nil {
			questionEn = translated
		} else {
			emit("translator", "error", err.Error())
		}
		emit("translator", "done", nil)
	}
	res.QuestionEn = questionEn

	emit("risk", "start", nil)
	riskResult := risk.Classify(question)
	res.Risk = riskResult
	emit("risk", "done", riskResult)

	emit("retriever", "start", nil)
	scope, isAllTables := policy.EffectiveScope(userScope, o.deps.Catalog)
	var contextText string
	var budgetItems []budget.Item
	var icdHints []postprocess.ICDHint
	var remaps []retrieval.Remap
	if o.deps.Retriever != nil {
		hits, err := o.deps.Retriever.Retrieve(ctx, questionEn, docTypes, retrieval.Options{
			Mode:             retrieval.Mode(o.cfg.RAGRetrievalMode),
			TopK:             o.cfg.RAGTopK,
			BM25MaxDocs:      o.cfg.RAGBM25MaxDocs,
			DenseCandidates:  o.cfg.RAGDenseCandidates,
			TableScope:       scope,
			ScopeIsAllTables: isAllTables,
		})
		if err != nil {
			emit("retriever", "error", err.Error())
		} else {
			for _, h := range hits {
				budgetItems = append(budgetItems, budget.Item{Doc: h.Doc, Score: h.Score})
			}
		}

		// The diagnosis/procedure ICD mapper and column-value matcher scan
		// the full dictionary rather than rank candidates (spec §4.4), so
		// they run against the store directly instead of the scored hits.
		icdMatches, _, cvRemaps, dmErr := retrieval.DictionaryMatches(ctx, o.deps.Retriever.Store(), questionEn)
		if dmErr != nil {
			emit("retriever", "dictionary_match_error", dmErr.Error())
		} else {
			for _, m := range icdMatches {
				icdHints = append(icdHints, postprocess.ICDHint{Prefixes: m.ICDPrefixes, Version: m.Version})
			}
			remaps = cvRemaps
		}
	}
	emit("retriever", "done", len(budgetItems))

	emit("budgeter", "start", nil)
	tok := budget.NewTokenizer()
	quotas := budget.DefaultQuotas(isAllTables)
	budgeted := budget.Allocate(budgetItems, defaultTokenBudget, tok, quotas)
	contextText = renderContext(budgeted)
	res.Context = contextText
	emit("budgeter", "done", len(budgeted))

	emit("planner", "start", nil)
	decision := planner.Gate(question, riskResult, o.cfg)
	res.PlannerDecision = decision
	var plannerIntent *planner.Intent
	if decision.Ran && o.deps.Planner != nil {
		intent, err := o.deps.Planner.Plan(ctx, question, contextText)
		if err != nil {
			emit("planner", "error", err.Error())
		} else {
			plannerIntent = &intent
		}
	} else {
		plannerIntent = planner.SynthesizeSkippedIntent(question)
	}
	res.Planner = plannerIntent
	emit("planner", "done", plannerIntent)

	emit("engineer", "start", nil)
	if o.deps.Generator == nil {
		return res, apperr.Generation("no SQL generator configured", nil)
	}
	draft, err := o.deps.Generator.Engineer(ctx, sqlgen.EngineerInput{
		DBType:        o.dbType(),
		Question:      question,
		QuestionEn:    questionEn,
		Context:       contextText,
		PlannerIntent: intentSummary(plannerIntent),
	}, o.cfg.EngineerModel, o.cfg.EngineerMaxTokens)
	if err != nil {
		emit("engineer", "error", err.Error())
		return res, apperr.Generation("engineer draft failed", err)
	}
	res.Draft = draft
	emit("engineer", "done", draft.FinalSQL)

	expertRan := false
	if sqlgen.ShouldRunExpert(o.cfg.ExpertTriggerMode, riskResult.Risk, riskResult.Complexity, o.cfg.ExpertScoreThreshold) {
		emit("expert", "start", nil)
		revised, err := o.deps.Generator.Expert(ctx, sqlgen.ExpertInput{
			DBType:   o.dbType(),
			Question: question,
			DraftSQL: draft.FinalSQL,
			Context:  contextText,
		}, o.cfg.ExpertModel, o.cfg.ExpertMaxTokens)
		if err == nil && revised.FinalSQL != "" {
			draft = revised
			expertRan = true
		} else if err != nil {
			emit("expert", "error", err.Error())
		}
		emit("expert", "done", draft.FinalSQL)
	}

	finalSQL := draft.FinalSQL
	var outcomes []postprocess.Outcome
	if o.cfg.OneshotPostprocessEnabled && o.deps.PostRules != nil {
		emit("postprocess", "start", nil)
		profile, _ := postprocess.RecommendProfile(question, finalSQL, postprocess.ProfileConservative)
		out := postprocess.Run(o.deps.PostRules, postprocess.Input{
			Question:       question,
			QuestionEn:     questionEn,
			SQL:            finalSQL,
			Profile:        profile,
			DiagnosisHints: icdHints,
			Remaps:         remaps,
		})
		finalSQL = out.SQL
		outcomes = out.Outcomes
		for _, rm := range out.Remaps {
			res.Assumptions = append(res.Assumptions, fmt.Sprintf("column_value_remap:%s->%s", rm.From, rm.To))
		}
		emit("postprocess", "done", len(outcomes))
	}

	var issues []string
	realigned := false
	if o.cfg.OneshotIntentGuardEnabled {
		emit("intentguard", "start", nil)
		issues = intentguard.Check(question, finalSQL)
		if len(issues) > 0 && o.cfg.OneshotIntentRealignEnabled && !expertRan {
			revised, err := o.deps.Generator.Expert(ctx, sqlgen.ExpertInput{
				DBType:   o.dbType(),
				Question: question,
				DraftSQL: finalSQL,
				Issues:   issues,
				Context:  contextText,
			}, o.cfg.ExpertModel, o.cfg.ExpertMaxTokens)
			if err == nil && revised.FinalSQL != "" {
				newIssues := intentguard.Check(question, revised.FinalSQL)
				if len(newIssues) < len(issues) {
					finalSQL = revised.FinalSQL
					issues = newIssues
					realigned = true
				}
			}
		}
		emit("intentguard", "done", issues)
	}

	res.Final = Final{
		FinalSQL:                finalSQL,
		Postprocess:             outcomes,
		IntentAlignmentIssues:   issues,
		IntentAlignmentRepaired: realigned,
	}

	emit("policy", "start", nil)
	policyDecision, err := policy.Evaluate(finalSQL, policy.Options{
		JoinCountCap: o.cfg.JoinCountCap,
		TableScope:   scope,
		Question:     question,
	})
	if err != nil {
		emit("policy", "error", err.Error())
		return res, err
	}
	res.Policy = &policyDecision
	emit("policy", "done", policyDecision.Allowed)
	if !policyDecision.Allowed {
		return res, apperr.Policy(policyDecision.Message, nil).WithField("reason", policyDecision.Reason)
	}

	emit("executor", "start", nil)
	if o.deps.RepairLoop == nil {
		return res, apperr.Infrastructure("no executor configured", nil)
	}
	plannerIntentText := intentSummary(plannerIntent)
	execResult, err := o.deps.RepairLoop.Run(ctx, userKey, question, o.dbType(), plannerIntentText, contextText, finalSQL, executor.Options{
		AccuracyMode: "exact",
		TimeoutMs:    o.cfg.CallTimeoutMs,
		Tag:          "oneshot",
	})
	res.Execution = &execResult
	res.Final.FinalSQL = execResult.FinalSQL
	if err != nil {
		emit("executor", "error", err.Error())
		return res, apperr.ExecError("query execution failed after repair attempts", err)
	}
	emit("executor", "done", execResult.Result.RowCount)

	res.Mode = ModeAdvanced
	return res, nil
}

// RunSQL implements the two-phase /query/run path from spec §6: given SQL
// the caller already holds (either echoed back from a prior oneshot qid or
// supplied raw), it runs only Policy Gate + Executor + Repair, skipping the
// drafting stages Run already performed.
func (o *Orchestrator) RunSQL(ctx context.Context, userKey, question, sql string, userScope []string) (Result, error) {
	res := Result{Question: question, Final: Final{FinalSQL: sql}}

	scope, _ := policy.EffectiveScope(userScope, o.deps.Catalog)
	policyDecision, err := policy.Evaluate(sql, policy.Options{
		JoinCountCap: o.cfg.JoinCountCap,
		TableScope:   scope,
		Question:     question,
	})
	if err != nil {
		return res, err
	}
	res.Policy = &policyDecision
	if !policyDecision.Allowed {
		return res, apperr.Policy(policyDecision.Message, nil).WithField("reason", policyDecision.Reason)
	}

	if o.deps.RepairLoop == nil {
		return res, apperr.Infrastructure("no executor configured", nil)
	}
	execResult, err := o.deps.RepairLoop.Run(ctx, userKey, question, o.dbType(), "", "", sql, executor.Options{
		AccuracyMode: "exact",
		TimeoutMs:    o.cfg.CallTimeoutMs,
		Tag:          "run",
	})
	res.Execution = &execResult
	res.Final.FinalSQL = execResult.FinalSQL
	if err != nil {
		return res, apperr.ExecError("query execution failed after repair attempts", err)
	}
	res.Mode = ModeAdvanced
	return res, nil
}

const defaultTokenBudget = 6000

func (o *Orchestrator) dbType() string {
	if o.deps.RepairLoop != nil && o.deps.RepairLoop.Pool != nil {
		return "Oracle"
	}
	return "Oracle"
}

func intentSummary(intent *planner.Intent) string {
	if intent == nil {
		return ""
	}
	return intent.IntentSummary
}

func renderContext(items []budget.Item) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "[%s score=%.3f] %s\n", it.Doc.Type(), it.Score, it.Doc.GetText())
	}
	return b.String()
}

func containsHangul(s string) bool {
	for _, r := range s {
		if r >= 0xAC00 && r <= 0xD7A3 {
			return true
		}
	}
	return false
}
