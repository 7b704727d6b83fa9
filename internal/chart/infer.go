package chart

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// InferDataFrame derives a DataFrame schema from a row set decoded from the
// /visualize request body, since the HTTP caller sends raw SQL result rows
// rather than a pre-computed schema. Column order follows first-row key
// order is not guaranteed by Go's map iteration, so callers that care about
// display order should pass an explicit column list; InferDataFrame only
// needs kind and cardinality, which Core B's rules consume regardless of
// order.
func InferDataFrame(rows []map[string]any) DataFrame {
	if len(rows) == 0 {
		return DataFrame{}
	}
	names := make([]string, 0)
	seen := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}

	var cols []Column
	for _, name := range names {
		distinct := map[string]bool{}
		numeric, datetime, total := 0, 0, 0
		for _, row := range rows {
			v, ok := row[name]
			if !ok || v == nil {
				continue
			}
			total++
			distinct[toComparable(v)] = true
			if isNumeric(v) {
				numeric++
			}
			if isDatetime(v) {
				datetime++
			}
		}
		cols = append(cols, Column{Name: name, Kind: classify(name, total, numeric, datetime), NUnique: len(distinct)})
	}
	return DataFrame{Columns: cols}
}

func classify(name string, total, numeric, datetime int) ColumnKind {
	if IsIdentifier(strings.ToUpper(name)) || identifierNameRe.MatchString(name) {
		return KindIdentifier
	}
	if total > 0 && datetime == total {
		return KindDatetime
	}
	if total > 0 && numeric == total {
		return KindNumeric
	}
	return KindCategorical
}

var identifierNameRe = regexp.MustCompile(`(?i)_id$|^id$|^row_id$`)

func isNumeric(v any) bool {
	switch n := v.(type) {
	case float64, float32, int, int64:
		return true
	case string:
		_, err := strconv.ParseFloat(n, 64)
		return err == nil
	}
	return false
}

var datetimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

func isDatetime(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	if !datetimeRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return true
	}
	_, err = time.Parse("2006-01-02", s)
	return err == nil
}

// toComparable reduces a decoded JSON cell to a string key for distinct-
// value counting.
func toComparable(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'g', -1, 32)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case bool:
		return strconv.FormatBool(n)
	default:
		return ""
	}
}

var (
	icuContextRe   = regexp.MustCompile(`(?i)icu|중환자실`)
	admitContextRe = regexp.MustCompile(`(?i)입원|admission|admit`)
)

// InferRequest builds a Core B Request from the user's question and the
// inferred DataFrame, choosing a primary outcome (first numeric,
// non-identifier column) and time/group candidates the way the out-of-scope
// upstream PlannerIntent would, per spec §4.12's input-tuple description.
func InferRequest(question string, intent Intent, df DataFrame) Request {
	req := Request{Intent: intent, UserQuery: question}

	for _, c := range df.Columns {
		if c.Kind == KindDatetime && req.TimeVar == "" {
			req.TimeVar = c.Name
		}
	}
	if req.TimeVar == "" {
		if elapsed := ElapsedTimeColumn(df); elapsed != "" {
			req.TimeVar = elapsed
		}
	}

	for _, c := range df.Columns {
		if c.Kind == KindNumeric {
			req.PrimaryOutcome = c.Name
			break
		}
	}

	for _, c := range df.Columns {
		if c.Kind == KindCategorical && c.Name != req.PrimaryOutcome {
			req.GroupVar = c.Name
			break
		}
	}

	req.ContextFlags = ContextFlags{
		ICUContext:   icuContextRe.MatchString(question),
		AdmitContext: admitContextRe.MatchString(question),
	}
	return req
}
