// Package policy implements the Policy Gate from spec §4.10: read-only
// enforcement, join-count cap, table-scope whitelist, and the WHERE
// requirement with its aggregate/status exemptions.
package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sso312/querylens/internal/apperr"
)

// Decision is the Policy Gate's verdict, including the human-facing message
// spec §8 scenario 6 names verbatim ("Aggregate question: WHERE optional").
type Decision struct {
	Allowed bool
	Message string
	Reason  string
}

var writeKeywordsRe = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE|MERGE|GRANT|REVOKE|CREATE)\b`)
var selectOrWithRe = regexp.MustCompile(`(?i)^\s*(SELECT|WITH)\b`)
var joinRe = regexp.MustCompile(`(?i)\bJOIN\b`)
var whereRe = regexp.MustCompile(`(?i)\bWHERE\b`)
var groupByRe = regexp.MustCompile(`(?i)\bGROUP BY\b`)
var rownumCapRe = regexp.MustCompile(`(?i)ROWNUM\s*<=\s*\d+|FETCH FIRST\s+\d+|LIMIT\s+\d+`)
var statusFlagRe = regexp.MustCompile(`(?i)HOSPITAL_EXPIRE_FLAG\s*=|STATUS\s*=`)
var aggregateFuncRe = regexp.MustCompile(`(?i)\b(COUNT|SUM|AVG|MIN|MAX)\s*\(`)
var aggregateQuestionRe = regexp.MustCompile(`(?i)몇\s*명|몇\s*건|얼마나|how many|count of|총\s*(수|건수)`)
var sampleListingRe = regexp.MustCompile(`(?i)목록|list\b|상위\s*\d+|top\s*\d+`)
// cteNameRe matches both the first CTE after WITH and every subsequent
// comma-chained CTE (WITH a AS (...), b AS (...), c AS (...)) so none of
// them are missed from the table-scope allow-list.
var cteNameRe = regexp.MustCompile(`(?is)(?:\bWITH\s+|,\s*)([\w"]+)\s+AS\s*\(`)
var fromJoinTableRe = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][\w$#.]*)`)

// StripCommentsAndLiterals removes -- line comments, /* block comments */,
// and single-quoted string literal contents so write-keyword and table-name
// scanning does not false-positive on data that merely mentions them.
func StripCommentsAndLiterals(sql string) string {
	var out strings.Builder
	runes := []rune(sql)
	i := 0
	for i < len(runes) {
		switch {
		case i+1 < len(runes) && runes[i] == '-' && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case i+1 < len(runes) && runes[i] == '/' && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i += 2
		case runes[i] == '\'':
			out.WriteRune(' ')
			i++
			for i < len(runes) && runes[i] != '\'' {
				i++
			}
			i++
		default:
			out.WriteRune(runes[i])
			i++
		}
	}
	return out.String()
}

// Options configures one Evaluate call.
type Options struct {
	JoinCountCap      int
	TableScope        []string // empty means no scope restriction
	Question          string
}

// Evaluate implements the full Policy Gate contract from spec §4.10.
func Evaluate(sql string, opts Options) (Decision, error) {
	clean := StripCommentsAndLiterals(sql)
	trimmed := strings.TrimSpace(clean)

	if trimmed == "" {
		return Decision{}, apperr.Validation("empty SQL", nil)
	}

	if writeKeywordsRe.MatchString(clean) {
		return Decision{}, apperr.Policy("write keyword detected", nil).WithField("reason", "write_keyword")
	}

	if !selectOrWithRe.MatchString(trimmed) {
		return Decision{}, apperr.Policy("only SELECT/WITH statements are allowed", nil).WithField("reason", "unsupported_statement_type")
	}
	if strings.HasPrefix(strings.ToUpper(trimmed), "WITH") && !regexp.MustCompile(`(?i)\bSELECT\b`).MatchString(clean) {
		return Decision{}, apperr.Policy("WITH statement must contain a SELECT", nil).WithField("reason", "with_without_select")
	}

	joinCount := len(joinRe.FindAllStringIndex(clean, -1))
	if opts.JoinCountCap > 0 && joinCount > opts.JoinCountCap {
		return Decision{}, apperr.Policy(fmt.Sprintf("join count %d exceeds cap %d", joinCount, opts.JoinCountCap), nil).WithField("reason", "join_limit_exceeded")
	}

	cteNames := extractCTENames(clean)
	if len(opts.TableScope) > 0 {
		for _, table := range extractTables(clean) {
			if isAllowed(table, opts.TableScope, cteNames) {
				continue
			}
			return Decision{}, apperr.Policy(fmt.Sprintf("table %q is outside the allowed scope", table), nil).WithField("reason", "table_scope_violation").WithField("table", table)
		}
	}

	if !whereRe.MatchString(clean) {
		if groupByRe.MatchString(clean) || aggregateFuncRe.MatchString(clean) {
			return Decision{Allowed: true, Message: "Aggregate question: WHERE optional", Reason: "aggregate_exempt"}, nil
		}
		if rownumCapRe.MatchString(clean) {
			return Decision{Allowed: true, Message: "Row-capped query: WHERE optional", Reason: "row_cap_exempt"}, nil
		}
		if statusFlagRe.MatchString(clean) {
			return Decision{Allowed: true, Message: "Status-flag projection: WHERE optional", Reason: "status_flag_exempt"}, nil
		}
		if aggregateQuestionRe.MatchString(opts.Question) || sampleListingRe.MatchString(opts.Question) {
			return Decision{Allowed: true, Message: "Aggregate/sample-listing question: WHERE optional", Reason: "question_hint_exempt"}, nil
		}
		return Decision{}, apperr.Policy("WHERE clause is required", nil).WithField("reason", "where_required")
	}

	return Decision{Allowed: true, Message: "ok"}, nil
}

func extractCTENames(sql string) map[string]bool {
	names := map[string]bool{"DUAL": true}
	for _, m := range cteNameRe.FindAllStringSubmatch(sql, -1) {
		names[strings.ToUpper(strings.Trim(m[1], `"`))] = true
	}
	return names
}

func extractTables(sql string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range fromJoinTableRe.FindAllStringSubmatch(sql, -1) {
		t := strings.ToUpper(strings.TrimSpace(m[1]))
		if idx := strings.LastIndex(t, "."); idx >= 0 {
			t = t[idx+1:]
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func isAllowed(table string, scope []string, ctes map[string]bool) bool {
	if ctes[strings.ToUpper(table)] {
		return true
	}
	for _, s := range scope {
		if strings.EqualFold(s, table) {
			return true
		}
	}
	return false
}

// EffectiveScope implements spec §4.4/§4.10's "effectively all tables" rule:
// a per-user scope counts as unrestricted once it covers >=80% of the full
// catalog.
func EffectiveScope(userScope, fullCatalog []string) (scope []string, isAllTables bool) {
	if len(userScope) == 0 {
		return nil, true
	}
	if len(fullCatalog) == 0 {
		return userScope, false
	}
	coverage := float64(len(userScope)) / float64(len(fullCatalog))
	if coverage >= 0.80 {
		return userScope, true
	}
	return userScope, false
}
