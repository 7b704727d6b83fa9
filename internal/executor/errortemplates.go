package executor

import (
	"regexp"
	"strings"
)

// Error-signature markers that select which template family applies, ported
// from the original implementation's sql_error_templates module.
var (
	timeoutMarkers            = []string{"DPY-4024", "DPI-1067", "ORA-03156", "TIMEOUT"}
	invalidIdentifierMarkers  = []string{"ORA-00904", "INVALID IDENTIFIER"}
	invalidNumberMarkers      = []string{"ORA-01722", "INVALID NUMBER"}
	tableNotExistMarkers      = []string{"ORA-00942", "TABLE OR VIEW DOES NOT EXIST"}
	missingKeywordMarkers     = []string{"ORA-00905", "MISSING KEYWORD"}
)

func containsAny(text string, markers []string) bool {
	upper := strings.ToUpper(text)
	for _, m := range markers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

var (
	errIdentRe  = regexp.MustCompile(`(?i)ORA-00904:\s*(?:"([A-Za-z0-9_]+)"\."([A-Za-z0-9_]+)"|"([A-Za-z0-9_]+)")`)
	tableAliasRe = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_$#]*)(?:\s+(?:AS\s+)?([A-Za-z_][A-Za-z0-9_$#]*))?`)
	orderByRe    = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
	topNIntentRe = regexp.MustCompile(`(?i)\btop\s+\d+\b|상위\s*\d+|탑\s*\d+`)
	caseCntRe    = regexp.MustCompile(`(?i)\bCNT\s+1\s+END\b`)
	toNumberRe   = regexp.MustCompile(`(?i)TO_NUMBER\s*\(\s*([A-Za-z_][A-Za-z0-9_$#]*\.[A-Za-z_][A-Za-z0-9_$#]*)\s*\)`)
)

// findAliases returns the set of aliases (plus the table name itself) that
// refer to tableName within sql.
func findAliases(sql, tableName string) map[string]bool {
	target := strings.ToUpper(tableName)
	aliases := map[string]bool{target: true}
	for _, m := range tableAliasRe.FindAllStringSubmatch(sql, -1) {
		table := strings.ToUpper(strings.TrimSpace(m[1]))
		if table != target {
			continue
		}
		if alias := strings.ToUpper(strings.TrimSpace(m[2])); alias != "" {
			aliases[alias] = true
		}
	}
	return aliases
}

func declaredAliases(sql string) map[string]bool {
	out := map[string]bool{}
	for _, m := range tableAliasRe.FindAllStringSubmatch(sql, -1) {
		if table := strings.ToUpper(strings.TrimSpace(m[1])); table != "" {
			out[table] = true
		}
		if alias := strings.ToUpper(strings.TrimSpace(m[2])); alias != "" {
			out[alias] = true
		}
	}
	return out
}

func replaceAliasCol(sql string, aliases map[string]bool, sourceCol, targetCol string) string {
	text := sql
	for alias := range aliases {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(alias) + `\.` + regexp.QuoteMeta(sourceCol) + `\b`)
		text = re.ReplaceAllString(text, alias+"."+targetCol)
	}
	return text
}

// stripTopLevelOrderBy removes a top-level (paren-depth 0, outside string
// literals) ORDER BY clause, used by the timeout repair template.
func stripTopLevelOrderBy(sql string) (string, bool) {
	text := strings.TrimRight(strings.TrimSpace(sql), ";")
	if text == "" {
		return text, false
	}
	upper := strings.ToUpper(text)
	depth := 0
	inSingle := false
	orderPos := -1
	for i := 0; i < len(upper); i++ {
		ch := upper[i]
		if inSingle {
			if ch == '\'' {
				if i+1 < len(upper) && upper[i+1] == '\'' {
					i++
					continue
				}
				inSingle = false
			}
			continue
		}
		switch ch {
		case '\'':
			inSingle = true
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && strings.HasPrefix(upper[i:], "ORDER BY") {
				prev := byte(' ')
				if i > 0 {
					prev = upper[i-1]
				}
				if !isIdentByte(prev) {
					orderPos = i
				}
			}
		}
	}
	if orderPos < 0 {
		return text, false
	}
	return strings.TrimRight(text[:orderPos], " \t\n\r"), true
}

// replaceUnqualified replaces bare occurrences of word with replacement,
// skipping any occurrence immediately preceded by a dot (i.e. already
// table/alias-qualified). Go's regexp lacks lookbehind, so this walks
// match positions directly instead of the original's (?<!\.) pattern.
func replaceUnqualified(text, word, replacement string) string {
	re := regexp.MustCompile(`(?i)\b` + word + `\b`)
	matches := re.FindAllStringIndex(text, -1)
	if matches == nil {
		return text
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > 0 && text[start-1] == '.' {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(replacement)
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

func isIdentByte(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_' || b == '$' || b == '#'
}

func repairInvalidIdentifier(sql, errorMessage string) (string, []string) {
	text := sql
	upper := strings.ToUpper(text)
	errUpper := strings.ToUpper(errorMessage)
	var rules []string

	if strings.Contains(errUpper, "MEDICATION") && strings.Contains(upper, "PRESCRIPTIONS") {
		aliases := findAliases(text, "PRESCRIPTIONS")
		rewritten := replaceAliasCol(text, aliases, "MEDICATION", "DRUG")
		rewritten = replaceUnqualified(rewritten, "MEDICATION", "DRUG")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_00904_prescriptions_medication_to_drug")
		}
	}

	if strings.Contains(errUpper, "ORDERCATEGORYNAME") {
		rewritten := regexp.MustCompile(`(?i)\bORDERCATEGORYNAME\b`).ReplaceAllString(text, "ORDERCATEGORYDESCRIPTION")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_00904_ordercategoryname_to_description")
		}
	}

	if (strings.Contains(errUpper, "FIRST_CAREUNIT") || strings.Contains(errUpper, "LAST_CAREUNIT")) && strings.Contains(upper, "TRANSFERS") {
		aliases := findAliases(text, "TRANSFERS")
		rewritten := replaceAliasCol(text, aliases, "FIRST_CAREUNIT", "CAREUNIT")
		rewritten = replaceAliasCol(rewritten, aliases, "LAST_CAREUNIT", "CAREUNIT")
		rewritten = regexp.MustCompile(`(?i)\bFIRST_CAREUNIT\b`).ReplaceAllString(rewritten, "CAREUNIT")
		rewritten = regexp.MustCompile(`(?i)\bLAST_CAREUNIT\b`).ReplaceAllString(rewritten, "CAREUNIT")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_00904_transfers_careunit_fix")
		}
	}

	if strings.Contains(errUpper, "LONG_TITLE") && (strings.Contains(upper, "D_ITEMS") || strings.Contains(upper, "D_LABITEMS")) {
		rewritten := regexp.MustCompile(`(?i)\bLONG_TITLE\b`).ReplaceAllString(text, "LABEL")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_00904_long_title_to_label")
		}
	}

	if strings.Contains(errUpper, "ICD_CODE") && (strings.Contains(upper, "D_ITEMS") || strings.Contains(upper, "D_LABITEMS")) {
		rewritten := regexp.MustCompile(`(?i)(\b[A-Za-z_][A-Za-z0-9_$#]*\.)ICD_CODE\b`).ReplaceAllString(text, "${1}ITEMID")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_00904_itemid_icd_code_mismatch_fix")
		}
	}

	if strings.Contains(errUpper, "INSERTIONS") && regexp.MustCompile(`(?i)\bAS\s+CNT\b`).MatchString(text) {
		rewritten := regexp.MustCompile(`(?i)\bINSERTIONS\b`).ReplaceAllString(text, "CNT")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_00904_projection_alias_to_cnt")
		}
	}

	if m := errIdentRe.FindStringSubmatch(errorMessage); m != nil {
		errAlias := strings.ToUpper(strings.TrimSpace(m[1]))
		errCol := strings.ToUpper(strings.TrimSpace(m[2]))
		if errCol == "" {
			errCol = strings.ToUpper(strings.TrimSpace(m[3]))
		}

		if errCol == "MEDICATION" && strings.Contains(upper, "PRESCRIPTIONS") && !containsRule(rules, "template_00904_prescriptions_medication_to_drug") {
			rewritten := regexp.MustCompile(`(?i)\bMEDICATION\b`).ReplaceAllString(text, "DRUG")
			if rewritten != text {
				text = rewritten
				rules = append(rules, "template_00904_generic_medication_to_drug")
			}
		}

		switch errCol {
		case "PROCEDURE_COUNT", "DIAGNOSIS_COUNT", "AVERAGE_VALUE":
			if regexp.MustCompile(`(?i)\bAS\s+CNT\b`).MatchString(text) {
				rewritten := regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(errCol)+`\b`).ReplaceAllString(text, "CNT")
				if rewritten != text {
					text = rewritten
					rules = append(rules, "template_00904_outer_alias_to_cnt")
				}
			}
		case "CNT":
			for _, candidate := range []string{"PROCEDURE_COUNT", "DIAGNOSIS_COUNT", "ADMISSION_COUNT", "EVENT_COUNT", "RX_ORDER_CNT"} {
				if regexp.MustCompile(`(?i)\bAS\s+` + candidate + `\b`).MatchString(text) {
					rewritten := regexp.MustCompile(`(?i)\bCNT\b`).ReplaceAllString(text, candidate)
					if rewritten != text {
						text = rewritten
						rules = append(rules, "template_00904_cnt_to_named_alias")
					}
					break
				}
			}
		}

		if errAlias != "" {
			declared := declaredAliases(text)
			if !declared[errAlias] {
				re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(errAlias) + `\.` + regexp.QuoteMeta(errCol) + `\b`)
				rewritten := re.ReplaceAllString(text, errCol)
				if rewritten != text {
					text = rewritten
					rules = append(rules, "template_00904_drop_alias_prefix")
				}
			}
		}
	}

	return text, rules
}

func containsRule(rules []string, name string) bool {
	for _, r := range rules {
		if r == name {
			return true
		}
	}
	return false
}

func repairInvalidNumber(sql, errorMessage string) (string, []string) {
	text := sql
	upper := strings.ToUpper(text)
	var rules []string

	heavyEventRe := regexp.MustCompile(`(?i)\bPROCEDUREEVENTS\b|\bCHARTEVENTS\b`)

	if strings.Contains(upper, "D_ICD_DIAGNOSES") && heavyEventRe.MatchString(upper) {
		rewritten := regexp.MustCompile(`(?i)\bD_ICD_DIAGNOSES\b`).ReplaceAllString(text, "D_ITEMS")
		rewritten = regexp.MustCompile(`(?i)(\b[A-Za-z_][A-Za-z0-9_$#]*\.)ICD_CODE\b`).ReplaceAllString(rewritten, "${1}ITEMID")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_01722_event_to_items_join_fix")
		}
	}

	if strings.Contains(upper, "D_ICD_PROCEDURES") && heavyEventRe.MatchString(upper) {
		rewritten := regexp.MustCompile(`(?i)\bD_ICD_PROCEDURES\b`).ReplaceAllString(text, "D_ITEMS")
		rewritten = regexp.MustCompile(`(?i)(\b[A-Za-z_][A-Za-z0-9_$#]*\.)ICD_CODE\b`).ReplaceAllString(rewritten, "${1}ITEMID")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_01722_event_to_items_proc_fix")
		}
	}

	if strings.Contains(strings.ToUpper(errorMessage), "INVALID NUMBER") {
		rewritten := toNumberRe.ReplaceAllString(text, "$1")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_01722_strip_unnecessary_to_number")
		}
	}

	return text, rules
}

func repairTableNotExists(sql, _ string) (string, []string) {
	text := sql
	var rules []string

	simple := []struct {
		pattern, replacement, rule string
	}{
		{`(?i)\bPROCEDUREEVENTS_ICD\b`, "PROCEDURES_ICD", "template_00942_procedureevents_icd_to_procedures_icd"},
		{`(?i)\bDIAGNOSIS_ICD\b`, "DIAGNOSES_ICD", "template_00942_diagnosis_icd_to_diagnoses_icd"},
		{`(?i)\bPROCEDUREEVENT\b`, "PROCEDUREEVENTS", "template_00942_procedureevent_to_procedureevents"},
		{`(?i)\bDLABITEMS\b`, "D_LABITEMS", "template_00942_dlabitems_to_d_labitems"},
		{`(?i)\bDITEMS\b`, "D_ITEMS", "template_00942_ditems_to_d_items"},
	}
	for _, r := range simple {
		rewritten := regexp.MustCompile(r.pattern).ReplaceAllString(text, r.replacement)
		if rewritten != text {
			text = rewritten
			rules = append(rules, r.rule)
		}
	}

	fromJoin := []struct {
		pattern, replacement, rule string
	}{
		{`(?i)(\b(?:FROM|JOIN)\s+)ADMISSION\b`, "${1}ADMISSIONS", "template_00942_fromjoin_admission_to_admissions"},
		{`(?i)(\b(?:FROM|JOIN)\s+)PATIENT\b`, "${1}PATIENTS", "template_00942_fromjoin_patient_to_patients"},
		{`(?i)(\b(?:FROM|JOIN)\s+)TRANSFER\b`, "${1}TRANSFERS", "template_00942_fromjoin_transfer_to_transfers"},
		{`(?i)(\b(?:FROM|JOIN)\s+)LABEVENT\b`, "${1}LABEVENTS", "template_00942_fromjoin_labevent_to_labevents"},
		{`(?i)(\b(?:FROM|JOIN)\s+)CHARTEVENT\b`, "${1}CHARTEVENTS", "template_00942_fromjoin_chartevent_to_chartevents"},
	}
	for _, r := range fromJoin {
		rewritten := regexp.MustCompile(r.pattern).ReplaceAllString(text, r.replacement)
		if rewritten != text {
			text = rewritten
			rules = append(rules, r.rule)
		}
	}

	return text, rules
}

func repairMissingKeyword(sql, _ string) (string, []string) {
	text := sql
	var rules []string
	rewritten := caseCntRe.ReplaceAllString(text, "THEN 1 END")
	if rewritten != text {
		text = rewritten
		rules = append(rules, "template_00905_case_cnt_to_then")
	}
	return text, rules
}

func repairTimeout(question, sql string) (string, []string) {
	text := strings.TrimRight(strings.TrimSpace(sql), ";")
	if text == "" {
		return text, nil
	}
	var rules []string
	if !topNIntentRe.MatchString(question) {
		stripped, changed := stripTopLevelOrderBy(text)
		if changed {
			text = stripped
			rules = append(rules, "template_timeout_strip_order_by")
		}
	}
	return text, rules
}

// ApplySQLErrorTemplates rewrites sql according to whichever ORA-/DPY-/DPI-
// error family errorMessage matches, ported from the original
// sql_error_templates module. Returns the rewritten SQL plus the names of
// every template rule that fired, for repair-audit logging.
func ApplySQLErrorTemplates(question, sql, errorMessage string) (string, []string) {
	text := strings.TrimSpace(sql)
	if text == "" {
		return text, nil
	}

	var rules []string
	errUpper := errorMessage

	if containsAny(errUpper, timeoutMarkers) {
		var r []string
		text, r = repairTimeout(question, text)
		rules = append(rules, r...)
	}
	if containsAny(errUpper, invalidIdentifierMarkers) {
		var r []string
		text, r = repairInvalidIdentifier(text, errUpper)
		rules = append(rules, r...)
	}
	if containsAny(errUpper, invalidNumberMarkers) {
		var r []string
		text, r = repairInvalidNumber(text, errUpper)
		rules = append(rules, r...)
	}
	if containsAny(errUpper, tableNotExistMarkers) {
		var r []string
		text, r = repairTableNotExists(text, errUpper)
		rules = append(rules, r...)
	}
	if containsAny(errUpper, missingKeywordMarkers) {
		var r []string
		text, r = repairMissingKeyword(text, errUpper)
		rules = append(rules, r...)
	}

	return text, rules
}
