package chart

import "regexp"

// postDaysPattern matches an explicit "N일 후"/"N days after" style elapsed
// window, distinguishing it from a bare "후" (spec §4.12: "bare '후' alone
// is insufficient").
var postDaysPattern = regexp.MustCompile(`(?i)\d+\s*(일|day|days)\s*(후|after|later)`)

// ValidationIssue names one validatePlan failure from spec §4.12.
type ValidationIssue string

const (
	IssueMissingStayID       ValidationIssue = "icu_trend_missing_stay_id"
	IssueMissingElapsedTime  ValidationIssue = "icu_trend_missing_elapsed_time"
	IssueIdentifierAsGroup   ValidationIssue = "identifier_used_as_group"
	IssueMissingAdmitTime    ValidationIssue = "admit_context_missing_admittime"
	IssueBadTrendGroup       ValidationIssue = "trend_group_must_be_low_cardinality_or_stay"
	IssueMissingPostDaysCol  ValidationIssue = "post_days_intent_missing_elapsed_column"
)

// lowCardinalityMax bounds a categorical group column's distinct-value count
// before it is considered usable as a chart group: at most 12 distinct values.
const lowCardinalityMax = 12

// ElapsedTimeColumn returns the name of the first column in df that looks
// like a derived elapsed-time-since-anchor column, or "" if none exists.
// Grounded in naming conventions MIMIC derivations commonly use.
func ElapsedTimeColumn(df DataFrame) string {
	for _, c := range df.Columns {
		switch c.Name {
		case "ELAPSED_DAYS", "ELAPSED_HOURS", "DAYS_SINCE_INTIME", "DAYS_SINCE_ADMIT",
			"HOURS_SINCE_INTIME", "ICU_DAY", "POST_ADMIT_DAY":
			return c.Name
		}
	}
	return ""
}

// validatePlan enforces spec §4.12's validatePlan contract for one candidate
// (x, group) pair under req's context flags. An empty return means the plan
// passes.
func validatePlan(req Request, df DataFrame, x, group string) []ValidationIssue {
	var issues []ValidationIssue

	if req.ContextFlags.ICUContext {
		if _, ok := df.Col("STAY_ID"); !ok {
			issues = append(issues, IssueMissingStayID)
		}
		if _, ok := df.Col("INTIME"); !ok {
			issues = append(issues, IssueMissingElapsedTime)
		}
		elapsed := ElapsedTimeColumn(df)
		if elapsed == "" {
			issues = append(issues, IssueMissingElapsedTime)
		} else if x != "" && x != elapsed {
			issues = append(issues, IssueMissingElapsedTime)
		}
		if group == "SUBJECT_ID" || group == "PATIENT_ID" {
			issues = append(issues, IssueIdentifierAsGroup)
		}
		if group != "" && group != "STAY_ID" && group != "HADM_ID" {
			issues = append(issues, IssueBadTrendGroup)
		}
	}

	if req.ContextFlags.AdmitContext {
		if _, ok := df.Col("ADMITTIME"); !ok {
			issues = append(issues, IssueMissingAdmitTime)
		}
		if group != "" && group != "STAY_ID" && group != "HADM_ID" {
			issues = append(issues, IssueBadTrendGroup)
		}
	}

	if !req.ContextFlags.ICUContext && !req.ContextFlags.AdmitContext && group != "" {
		if IsIdentifier(group) {
			issues = append(issues, IssueIdentifierAsGroup)
		} else if col, ok := df.Col(group); ok && col.NUnique > lowCardinalityMax {
			issues = append(issues, IssueBadTrendGroup)
		}
	}

	if postDaysPattern.MatchString(req.UserQuery) && ElapsedTimeColumn(df) == "" {
		issues = append(issues, IssueMissingPostDaysCol)
	}

	return issues
}

// requiresElapsedTime reports whether the question asks a "N일 후" style
// elapsed-window question strongly enough to require an elapsed-time column
// (vs. a bare "후" which is not sufficient per spec §4.12).
func requiresElapsedTime(question string) bool {
	return postDaysPattern.MatchString(question)
}

// validGroup rejects identifier columns as comparison/distribution groups
// per spec §4.12 ("comparison/distribution groups must not be identifier
// columns") and spec §8 invariant 7.
func validGroup(name string) bool {
	return name != "" && !IsIdentifier(name)
}
