// Package intentguard implements the Intent Guard from spec §4.9: pattern-
// based checks on the final SELECT clause that catch semantic mismatches
// between the question's intent and the generated SQL, grounded in the
// original's intent_guard.py regex-table approach (compiled-once patterns,
// no per-call allocation).
package intentguard

import "regexp"

// Issue codes, named exactly as spec §4.9 enumerates them.
const (
	IssueRatioWithoutExpression           = "ratio_intent_without_expression"
	IssueQuartileWithoutNtile             = "quartile_intent_without_ntile"
	IssueStratifyWithoutGroupBy           = "stratify_intent_without_group_by"
	IssueYearlyMonthlyMissingExtract      = "yearly_monthly_intent_missing_extract"
	IssueWindowMissingInterval            = "window_intent_missing_interval"
	IssueAgeMappedToAnchorYearGroup       = "age_intent_mapped_to_anchor_year_group"
	IssueAgeExtremaMissingAgeProjection   = "age_group_extrema_missing_age_projection"
	IssueServiceMappedToDiagnosisOrProc   = "service_intent_mapped_to_diagnosis_or_procedure"
	IssueICUMortalityHospitalFlagOnly     = "icu_mortality_mapped_to_hospital_expire_flag_only"
	IssueFirstICUForcedWithoutIntent      = "first_icu_forced_without_intent"
)

var (
	ratioIntentRe     = regexp.MustCompile(`(?i)비율|ratio|율\b`)
	ratioExprRe       = regexp.MustCompile(`(?i)/|AVG\s*\(|%|ratio|rate|pct`)
	quartileIntentRe  = regexp.MustCompile(`(?i)사분위|quartile`)
	ntileRe           = regexp.MustCompile(`(?i)NTILE\s*\(|\bQ[1-4]\b`)
	stratifyIntentRe  = regexp.MustCompile(`(?i)별로|그룹|stratif|by\s+\w+`)
	groupByRe         = regexp.MustCompile(`(?i)GROUP BY|PARTITION BY`)
	yearlyMonthlyRe   = regexp.MustCompile(`(?i)연도별|월별|yearly|monthly`)
	extractOrToCharRe = regexp.MustCompile(`(?i)EXTRACT\s*\(\s*(YEAR|MONTH)|TO_CHAR\s*\([^)]*'YYYY`)
	windowIntentRe    = regexp.MustCompile(`(?i)최근\s*\d+\s*일|after\s+\d+\s*days?|지난\s*\d+`)
	intervalRe        = regexp.MustCompile(`(?i)INTERVAL|ADD_MONTHS|BETWEEN\s+`)
	ageIntentRe       = regexp.MustCompile(`(?i)연령|나이|\bage\b`)
	yearIntentRe      = regexp.MustCompile(`(?i)연도|year|anchor_year`)
	anchorYearRe      = regexp.MustCompile(`(?i)ANCHOR_YEAR_GROUP`)
	anchorAgeRe       = regexp.MustCompile(`(?i)ANCHOR_AGE`)
	extremaIntentRe   = regexp.MustCompile(`(?i)최고|최저|가장\s*(많|적)|highest|lowest|top|bottom`)
	ageColumnInSelect = regexp.MustCompile(`(?is)SELECT\s+(.*?)\s+FROM`)
	serviceIntentRe   = regexp.MustCompile(`(?i)진료과|service`)
	diagnosisOrProcRe = regexp.MustCompile(`(?i)ICD_CODE|DIAGNOSES_ICD|PROCEDURES_ICD`)
	icuIntentRe       = regexp.MustCompile(`(?i)ICU|중환자`)
	mortalityIntentRe = regexp.MustCompile(`(?i)사망|mortality|death`)
	hospitalFlagRe    = regexp.MustCompile(`(?i)HOSPITAL_EXPIRE_FLAG`)
	deathtimeAlignRe  = regexp.MustCompile(`(?i)DEATHTIME\s+BETWEEN\s+INTIME\s+AND\s+OUTTIME`)
	rowNumberOverRe   = regexp.MustCompile(`(?is)ROW_NUMBER\s*\(\s*\)\s*OVER\s*\(\s*PARTITION BY\s+[\w.]*SUBJECT_ID[\w.]*\s+ORDER BY\s+[\w.]*INTIME`)
	firstICUIntentRe  = regexp.MustCompile(`(?i)첫\s*icu|처음\s*icu|first\s*icu`)
)

// Check runs every pattern-based check from spec §4.9 and returns the list
// of issue codes found. An empty slice means the SQL is aligned.
func Check(question, sql string) []string {
	var issues []string

	if ratioIntentRe.MatchString(question) && !ratioExprRe.MatchString(sql) {
		issues = append(issues, IssueRatioWithoutExpression)
	}
	if quartileIntentRe.MatchString(question) && !ntileRe.MatchString(sql) {
		issues = append(issues, IssueQuartileWithoutNtile)
	}
	if stratifyIntentRe.MatchString(question) && !groupByRe.MatchString(sql) {
		issues = append(issues, IssueStratifyWithoutGroupBy)
	}
	if yearlyMonthlyRe.MatchString(question) && !extractOrToCharRe.MatchString(sql) {
		issues = append(issues, IssueYearlyMonthlyMissingExtract)
	}
	if windowIntentRe.MatchString(question) && !intervalRe.MatchString(sql) {
		issues = append(issues, IssueWindowMissingInterval)
	}

	ageWithoutYear := ageIntentRe.MatchString(question) && !yearIntentRe.MatchString(question)
	if ageWithoutYear && anchorYearRe.MatchString(sql) && !anchorAgeRe.MatchString(sql) {
		issues = append(issues, IssueAgeMappedToAnchorYearGroup)
	}
	if ageWithoutYear && extremaIntentRe.MatchString(question) {
		if m := ageColumnInSelect.FindStringSubmatch(sql); m == nil || !anchorAgeRe.MatchString(m[1]) {
			issues = append(issues, IssueAgeExtremaMissingAgeProjection)
		}
	}

	if serviceIntentRe.MatchString(question) && diagnosisOrProcRe.MatchString(sql) {
		issues = append(issues, IssueServiceMappedToDiagnosisOrProc)
	}

	if icuIntentRe.MatchString(question) && mortalityIntentRe.MatchString(question) &&
		hospitalFlagRe.MatchString(sql) && !deathtimeAlignRe.MatchString(sql) {
		issues = append(issues, IssueICUMortalityHospitalFlagOnly)
	}

	if rowNumberOverRe.MatchString(sql) && !firstICUIntentRe.MatchString(question) {
		issues = append(issues, IssueFirstICUForcedWithoutIntent)
	}

	return issues
}
