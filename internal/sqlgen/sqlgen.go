// Package sqlgen implements the Engineer and Expert LLM roles from spec
// §4.7: both are strict-JSON LLM calls, the Expert conditionally triggered
// by risk/complexity or a prior intent-alignment failure. extractSQL mirrors
// the teacher's inference/react.go SQL-extraction heuristic (markdown-fence
// stripping, Final Answer prefix stripping, explanatory-text cutoff).
package sqlgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sso312/querylens/internal/config"
	"github.com/sso312/querylens/internal/llm"
	"github.com/sso312/querylens/internal/promptkit"
)

// Draft is the Engineer/Expert output shape from spec §6.
type Draft struct {
	FinalSQL   string   `json:"finalSql"`
	UsedTables []string `json:"usedTables,omitempty"`
}

type Generator struct {
	llm              llm.Client
	kit              *promptkit.Kit
	maxRetryAttempts int
}

// New builds a Generator that retries a generation call up to
// maxRetryAttempts times (spec §7) when the model returns non-JSON output
// with no extractable SQL, or an empty finalSql. Values below 1 are raised
// to 1 so a misconfigured knob never disables generation outright.
func New(client llm.Client, kit *promptkit.Kit, maxRetryAttempts int) *Generator {
	if maxRetryAttempts < 1 {
		maxRetryAttempts = 1
	}
	return &Generator{llm: client, kit: kit, maxRetryAttempts: maxRetryAttempts}
}

// EngineerInput is the Engineer's input shape from spec §4.7.
type EngineerInput struct {
	DBType        string
	Question      string
	QuestionEn    string
	Context       string
	PlannerIntent string
}

func (g *Generator) Engineer(ctx context.Context, in EngineerInput, model string, maxTokens int) (Draft, error) {
	prompt, err := g.kit.Render("engineer", in)
	if err != nil {
		return Draft{}, fmt.Errorf("sqlgen: render engineer prompt: %w", err)
	}
	return g.call(ctx, prompt, model, maxTokens)
}

// ExpertInput is the Expert's input shape: the engineer's draft plus any
// known intent-alignment issues to fix.
type ExpertInput struct {
	DBType   string
	Question string
	DraftSQL string
	Issues   []string
	Context  string
}

func (g *Generator) Expert(ctx context.Context, in ExpertInput, model string, maxTokens int) (Draft, error) {
	prompt, err := g.kit.Render("expert", in)
	if err != nil {
		return Draft{}, fmt.Errorf("sqlgen: render expert prompt: %w", err)
	}
	return g.call(ctx, prompt, model, maxTokens)
}

// call drives one Engineer/Expert prompt to a Draft, retrying up to
// g.maxRetryAttempts times while the model's response yields no SQL: neither
// a non-empty finalSql in valid JSON nor an extractable SQL statement
// (spec §7). A transport-level LLM error is not retried; it is returned at
// once; the orchestrator aborts the run on an Engineer error and keeps the
// Engineer draft on an Expert error.
func (g *Generator) call(ctx context.Context, prompt, model string, maxTokens int) (Draft, error) {
	var draft Draft
	var lastErr error
	for attempt := 0; attempt < g.maxRetryAttempts; attempt++ {
		resp, err := g.llm.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, model, maxTokens, true)
		if err != nil {
			return Draft{}, fmt.Errorf("sqlgen: llm call: %w", err)
		}
		draft = Draft{}
		raw := stripFences(resp.Content)
		if err := json.Unmarshal([]byte(raw), &draft); err != nil {
			// Fall back to the teacher's permissive text-extraction heuristic
			// when the model didn't return clean JSON despite expectJSON.
			draft.FinalSQL = ExtractSQL(resp.Content)
		}
		if draft.FinalSQL != "" {
			return draft, nil
		}
		lastErr = fmt.Errorf("sqlgen: empty finalSql")
	}
	return draft, lastErr
}

// ShouldRunExpert implements spec §4.7's trigger rule.
func ShouldRunExpert(mode config.ExpertTriggerMode, risk, complexity, scoreThreshold int) bool {
	switch mode {
	case config.ExpertTriggerOff:
		return false
	case config.ExpertTriggerAlways:
		return true
	default:
		threshold := scoreThreshold - 2
		if threshold < 2 {
			threshold = 2
		}
		return risk >= scoreThreshold || complexity >= threshold
	}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```sql")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var explanatoryPrefixes = []string{"This ", "The ", "Since ", "Note:"}

// ExtractSQL mirrors the teacher's inference/react.go extractSQL: strips a
// "Final Answer:" prefix, trims markdown fences, and for a multi-line SQL
// statement truncates at the first line that looks like trailing prose.
func ExtractSQL(response string) string {
	s := response
	if idx := strings.Index(s, "Final Answer:"); idx >= 0 {
		s = s[idx+len("Final Answer:"):]
	}
	s = stripFences(s)

	if strings.Contains(s, "`") && !strings.HasPrefix(s, "```") {
		if start := strings.Index(s, "`"); start >= 0 {
			if end := strings.Index(s[start+1:], "`"); end >= 0 {
				s = s[start+1 : start+1+end]
			}
		}
	}

	lines := strings.Split(s, "\n")
	if len(lines) > 0 {
		first := strings.TrimSpace(strings.ToUpper(lines[0]))
		isSQLStart := strings.HasPrefix(first, "SELECT") || strings.HasPrefix(first, "WITH") ||
			strings.HasPrefix(first, "INSERT") || strings.HasPrefix(first, "UPDATE") || strings.HasPrefix(first, "DELETE")
		if isSQLStart {
			cut := len(lines)
			for i, l := range lines {
				trimmed := strings.TrimSpace(l)
				for _, p := range explanatoryPrefixes {
					if strings.HasPrefix(trimmed, p) {
						cut = i
					}
				}
				if cut != len(lines) {
					break
				}
			}
			lines = lines[:cut]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
