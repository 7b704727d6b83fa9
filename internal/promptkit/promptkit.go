// Package promptkit replaces the teacher's ad-hoc strings.Builder prompt
// assembly (inference/react.go's buildPrompt) with reusable, testable
// text/template templates, one per LLM role (clarifier, planner, engineer,
// expert, repair; the translator builds its own messages), enriched with
// sprig helpers the way
// the teacher's pack sibling (switchAILocal) uses Masterminds/sprig for
// config templating.
package promptkit

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Kit owns one parsed template set, built once and executed per request.
type Kit struct {
	tmpl *template.Template
}

// New parses every role template named in the templates map. Names are used
// as the key passed to Render.
func New(templates map[string]string) (*Kit, error) {
	root := template.New("promptkit").Funcs(sprig.TxtFuncMap())
	for name, body := range templates {
		if _, err := root.New(name).Parse(body); err != nil {
			return nil, fmt.Errorf("promptkit: parse %q: %w", name, err)
		}
	}
	return &Kit{tmpl: root}, nil
}

// Render executes the named template against data.
func (k *Kit) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := k.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("promptkit: render %q: %w", name, err)
	}
	return buf.String(), nil
}

// Default templates, grounded in the teacher's buildPrompt sections: DB
// type, schema/context insertion, an SQL best-practices block (engineer), and
// a JSON output-format block.
var Default = map[string]string{
	"engineer": `You are a careful SQL engineer for a {{.DBType}} clinical research database.
Question: {{.Question}}
{{- if .QuestionEn}}
Question (English): {{.QuestionEn}}
{{- end}}

Schema and retrieved context:
{{.Context}}

{{- if .PlannerIntent}}
Planner intent: {{.PlannerIntent}}
{{- end}}

SQL best practices:
- Only SELECT or WITH statements. Never write data.
- Cast TEXT-typed numeric columns explicitly before comparison.
- Prefer COUNT(DISTINCT ...) when the question implies unique entities.
- For extrema ties, use a subquery pattern rather than ORDER BY ... LIMIT 1.
- Match string values case-insensitively unless the question requires exact case.

Respond with a single JSON object: {"finalSql": "...", "usedTables": ["..."]}.`,

	"expert": `You are a senior SQL expert reviewing a draft query for a {{.DBType}} clinical research database.
Question: {{.Question}}
Draft SQL:
{{.DraftSQL}}

{{- if .Issues}}
Known issues to fix:
{{- range .Issues}}
- {{.}}
{{- end}}
{{- end}}

Context:
{{.Context}}

Revise the SQL to fix any issues while preserving the original intent. Respond with a single JSON
object: {"finalSql": "...", "usedTables": ["..."]}.`,

	"planner": `Summarize the analytical intent of this clinical question as structured fields.
Question: {{.Question}}
Context:
{{.Context}}

Respond with a single JSON object:
{"intent": {"cohort": "...", "metric": "...", "time": "...", "grain": "...", "comparison": "...",
"outputShape": "...", "filters": ["..."], "intentSummary": "..."}}`,

	"clarifier": `Decide whether this clinical question needs a clarifying follow-up before it can be
answered unambiguously.
Question: {{.Question}}
Recent conversation:
{{.History}}

Respond with a single JSON object:
{"needClarification": true|false, "reason": "...", "clarificationQuestion": "...",
"options": ["..."], "exampleInputs": ["..."], "refinedQuestion": "..."}`,

	"repair": `The following SQL failed against a {{.DBType}} clinical research database.
Question: {{.Question}}
Failed SQL:
{{.FailedSQL}}
Error: {{.ErrorMessage}}
Detail: {{.ErrorDetail}}
{{- if .PlannerIntent}}
Planner intent: {{.PlannerIntent}}
{{- end}}

Context:
{{.Context}}

Produce a corrected SQL statement that addresses the error. Respond with a single JSON object:
{"finalSql": "..."}`,
}
