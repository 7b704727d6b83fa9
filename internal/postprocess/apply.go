package postprocess

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sso312/querylens/internal/retrieval"
)

// Remap mirrors retrieval.Remap for surfacing column-value matcher
// remappings in postprocess metadata, per spec §9's open question.
type Remap = retrieval.Remap

// Outcome is the record of one applied (or skipped) rule, accumulated into
// OrchestratorResult.final.postprocess.
type Outcome struct {
	Rule    string
	Applied bool
	Reason  string
}

// Result bundles the rewritten SQL with the applied-rule trail.
type Result struct {
	SQL      string
	Outcomes []Outcome
	Remaps   []Remap
}

// Input carries everything a rewrite action needs beyond the raw SQL.
type Input struct {
	Question       string
	QuestionEn     string
	SQL            string
	Profile        Profile
	DiagnosisHints []ICDHint
	Remaps         []Remap
}

// ICDHint is the minimal shape a rewrite action needs from the retriever's
// ICD mapper output.
type ICDHint struct {
	Prefixes []string
	Version  int
}

// Run applies every enabled, condition-satisfying rule in order. A rule
// failure is recorded and the pipeline continues with the unmodified SQL,
// per spec §7: "Post-processor failures never abort the pipeline."
func Run(rs *RuleSet, in Input) Result {
	sql := in.SQL
	res := Result{SQL: sql, Remaps: in.Remaps}

	env := Env{Question: in.Question, QuestionEn: in.QuestionEn, SQL: sql, Profile: string(in.Profile)}
	for _, rule := range rs.Rules {
		if !rule.Enabled(in.Profile) {
			continue
		}
		ok, err := rule.Eval(env)
		if err != nil || !ok {
			continue
		}
		newSQL, applied, reason := applyAction(rule.Action, sql, in)
		if applied {
			sql = newSQL
			env.SQL = sql
		}
		res.Outcomes = append(res.Outcomes, Outcome{Rule: rule.Name, Applied: applied, Reason: reason})
	}
	res.SQL = sql
	return res
}

func applyAction(action, sql string, in Input) (string, bool, string) {
	switch action {
	case "diagnosis_procedure_rewrite":
		return diagnosisProcedureRewrite(sql, in.DiagnosisHints)
	case "mortality_ratio":
		return mortalityRatio(sql)
	case "time_window":
		return timeWindow(sql, in.Question)
	case "admissions_icustays_alignment":
		return admissionsICUStaysAlignment(sql)
	case "schema_alias_hints":
		return schemaAliasHints(sql)
	default:
		return sql, false, "unknown action"
	}
}

var whereRe = regexp.MustCompile(`(?is)\bWHERE\b`)

// diagnosisProcedureRewrite implements spec §4.8's first rule: ensure the
// WHERE contains ICD_CODE LIKE '<prefix>%' predicates joined by OR, plus
// ICD_VERSION filtering. The predicates name ICD_CODE unqualified; no table
// alias is added.
func diagnosisProcedureRewrite(sql string, hints []ICDHint) (string, bool, string) {
	if len(hints) == 0 {
		return sql, false, "no diagnosis/procedure term matched"
	}
	if strings.Contains(strings.ToUpper(sql), "ICD_CODE") {
		return sql, false, "ICD_CODE predicate already present"
	}

	var orClauses []string
	version := 10
	for _, h := range hints {
		version = h.Version
		for _, p := range h.Prefixes {
			orClauses = append(orClauses, fmt.Sprintf("ICD_CODE LIKE '%s%%'", p))
		}
	}
	if len(orClauses) == 0 {
		return sql, false, "no prefixes to apply"
	}
	clause := fmt.Sprintf("(%s) AND ICD_VERSION = %d", strings.Join(orClauses, " OR "), version)

	if whereRe.MatchString(sql) {
		out := whereRe.ReplaceAllString(sql, "WHERE "+clause+" AND ")
		return out, true, "appended ICD_CODE/ICD_VERSION predicate to existing WHERE"
	}
	out := insertBeforeTrailingClause(sql, "WHERE "+clause)
	return out, true, "added WHERE clause with ICD_CODE/ICD_VERSION predicate"
}

var mortalityNumeratorRe = regexp.MustCompile(`(?is)COUNT\s*\(\s*(?:DISTINCT\s+)?HADM_ID\s*\)\s*FILTER\s*\([^)]*HOSPITAL_EXPIRE_FLAG[^)]*\)`)
var ratioDivideRe = regexp.MustCompile(`(?is)(?:\b(?:COUNT|SUM)\s*\([^/,()]*)?([\w.]*HOSPITAL_EXPIRE_FLAG[\w\s(),.=']*?)\s*/\s*COUNT\s*\(\s*(?:DISTINCT\s+)?HADM_ID\s*\)`)

// mortalityRatio implements spec §4.8's mortality-ratio shape rewrite.
func mortalityRatio(sql string) (string, bool, string) {
	target := "COUNT(DISTINCT CASE WHEN HOSPITAL_EXPIRE_FLAG = 1 THEN HADM_ID END) / NULLIF(COUNT(DISTINCT HADM_ID), 0)"
	upper := strings.ToUpper(sql)
	if !strings.Contains(upper, "HOSPITAL_EXPIRE_FLAG") {
		return sql, false, "no HOSPITAL_EXPIRE_FLAG reference"
	}
	if strings.Contains(sql, target) {
		return sql, false, "mortality ratio already in canonical shape"
	}
	if ratioDivideRe.MatchString(sql) {
		out := ratioDivideRe.ReplaceAllString(sql, target)
		return out, true, "rewrote mortality ratio to canonical NULLIF shape"
	}
	return sql, false, "no ratio expression matched to rewrite"
}

var afterNDaysRe = regexp.MustCompile(`(?i)(\d+)\s*일\s*(후|이후)|after\s+(\d+)\s*days?`)
var dischargeAfterRe = regexp.MustCompile(`(?i)퇴원\s*후`)

// timeWindow implements spec §4.8's time-window rule for "after N days"
// questions: it prepends a SQL comment naming the anchor (DEATHTIME, or
// DISCHTIME when the question says "퇴원 후") and the N-day interval. It does
// not rewrite the query's predicates into interval arithmetic.
func timeWindow(sql string, question string) (string, bool, string) {
	m := afterNDaysRe.FindStringSubmatch(question)
	if m == nil {
		return sql, false, "no after-N-days intent"
	}
	n := m[1]
	if n == "" {
		n = m[3]
	}
	anchor := "DEATHTIME"
	if dischargeAfterRe.MatchString(question) {
		anchor = "DISCHTIME"
	}
	if strings.Contains(sql, anchor+" + INTERVAL") || strings.Contains(sql, "ADD_MONTHS") {
		return sql, false, "interval arithmetic already present"
	}
	hint := fmt.Sprintf("-- time_window: anchor=%s interval=%s days", anchor, n)
	return hint + "\n" + sql, true, fmt.Sprintf("annotated %s-day window anchored on %s", n, anchor)
}

var icuJoinRe = regexp.MustCompile(`(?i)\bICUSTAYS\b`)
var admissionsRe = regexp.MustCompile(`(?i)\bADMISSIONS\b`)

// admissionsICUStaysAlignment implements spec §4.8's ADMISSIONS<->ICUSTAYS
// join-alignment rule as a check only: it reports an ADMISSIONS query that
// references ICU columns (STAY_ID/INTIME) without ICUSTAYS, and never injects
// the join or changes the SQL.
func admissionsICUStaysAlignment(sql string) (string, bool, string) {
	if !admissionsRe.MatchString(sql) {
		return sql, false, "no ADMISSIONS reference"
	}
	if icuJoinRe.MatchString(sql) {
		return sql, false, "ICUSTAYS already joined"
	}
	if !strings.Contains(strings.ToUpper(sql), "STAY_ID") && !strings.Contains(strings.ToUpper(sql), "INTIME") {
		return sql, false, "no ICU-contextual column referenced"
	}
	return sql, false, "ICU context detected but join injection deferred to Expert pass"
}

var aliasTypoMap = map[string]string{
	"MEDICATION":         "DRUG",
	"ORDERCATEGORYNAME":  "ORDERCATEGORYDESCRIPTION",
	"FIRST_CAREUNIT":     "CAREUNIT",
	"LAST_CAREUNIT":      "CAREUNIT",
}

// schemaAliasHints implements spec §4.8's optional alias-typo rewrite.
func schemaAliasHints(sql string) (string, bool, string) {
	out := sql
	var fixed []string
	for wrong, right := range aliasTypoMap {
		re := regexp.MustCompile(`(?i)\b` + wrong + `\b`)
		if re.MatchString(out) {
			out = re.ReplaceAllString(out, right)
			fixed = append(fixed, wrong+"->"+right)
		}
	}
	if len(fixed) == 0 {
		return sql, false, "no known alias typos found"
	}
	return out, true, "rewrote: " + strings.Join(fixed, ", ")
}

func insertBeforeTrailingClause(sql, clause string) string {
	trailingRe := regexp.MustCompile(`(?is)\b(GROUP BY|ORDER BY|HAVING|FETCH FIRST)\b`)
	if loc := trailingRe.FindStringIndex(sql); loc != nil {
		return sql[:loc[0]] + clause + " " + sql[loc[0]:]
	}
	return strings.TrimRight(sql, "; \n") + " " + clause
}

// RecommendProfile implements spec §4.8's recommendPostprocessProfile.
func RecommendProfile(question, sql string, defaultProfile Profile) (Profile, []string) {
	var reasons []string
	profile := defaultProfile
	upper := strings.ToUpper(sql)

	if afterNDaysRe.MatchString(question) {
		profile = ProfileRelaxed
		reasons = append(reasons, "time_window_intent_needs_relaxed_profile")
	}
	if strings.Contains(upper, "ICD_CODE") && strings.Contains(upper, "LIKE") {
		reasons = append(reasons, "icd_predicate_already_present")
	}
	return profile, reasons
}

// AggressiveRepairRuleSet builds a minimal rule set used only inside the
// repair loop, per spec §4.8: "A minimal aggressive profile is used only in
// repair loops."
func AggressiveRepairRuleSet() *RuleSet {
	rs := &RuleSet{Rules: []Rule{
		{Name: "time_window", Condition: "true", Action: "time_window", Profiles: []string{"aggressive"}},
		{Name: "schema_alias_hints", Condition: "true", Action: "schema_alias_hints", Profiles: []string{"aggressive"}},
	}}
	_ = rs.compile()
	return rs
}
