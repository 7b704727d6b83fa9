// Package translator implements spec §4.2: Korean->English translation
// that preserves admission-type category fidelity by running a
// deterministic post-pass over the LLM's output, never trusting the model
// alone to keep 응급/긴급/예약/선택 mapped correctly.
package translator

import (
	"context"
	"regexp"
	"strings"

	"github.com/sso312/querylens/internal/llm"
)

// admissionMapping is the exact, order-sensitive category map from spec
// §4.2: never swap EMERGENCY<->URGENT; ELECTIVE preferred over
// SCHEDULED/OPTIONAL/SELECTIVE.
var admissionMapping = []struct {
	Korean  string
	English string
}{
	{"응급", "EMERGENCY"},
	{"긴급", "URGENT"},
	{"예약", "ELECTIVE"},
	{"선택", "ELECTIVE"},
}

// wrongSynonyms catches cases where the LLM used a synonym instead of the
// canonical mapping and must be corrected.
var wrongSynonyms = map[string]string{
	"SCHEDULED": "ELECTIVE",
	"OPTIONAL":  "ELECTIVE",
	"SELECTIVE": "ELECTIVE",
}

type Translator struct {
	llm   llm.Client
	model string
}

func New(client llm.Client, model string) *Translator {
	return &Translator{llm: client, model: model}
}

// Translate converts a Korean question to English, enforcing admission-type
// fidelity afterward. If the LLM client is nil or errors, it falls through
// with the original question unmodified (spec §7 Infrastructure: translator
// "falls through" rather than aborting the pipeline).
func (t *Translator) Translate(ctx context.Context, question string) (string, error) {
	if !containsHangul(question) {
		return question, nil
	}
	if t.llm == nil {
		return question, nil
	}

	resp, err := t.llm.Chat(ctx, []llm.Message{
		{Role: "system", Content: "Translate Korean clinical-analytics questions to English. Preserve admission type terms exactly: 응급=EMERGENCY, 긴급=URGENT, 예약/선택=ELECTIVE."},
		{Role: "user", Content: question},
	}, t.model, 512, false)
	if err != nil {
		return question, nil
	}

	return enforceAdmissionFidelity(question, resp.Content), nil
}

// enforceAdmissionFidelity is the deterministic post-pass: for every
// admission-type Korean term present in the source, ensure the translated
// output contains its canonical English mapping, swapping out any wrong
// synonym the LLM introduced.
func enforceAdmissionFidelity(source, translated string) string {
	out := translated
	for syn, canon := range wrongSynonyms {
		out = regexp.MustCompile(`(?i)\b`+syn+`\b`).ReplaceAllString(out, canon)
	}

	upper := strings.ToUpper(out)
	for _, m := range admissionMapping {
		if strings.Contains(source, m.Korean) && !strings.Contains(upper, m.English) {
			out = out + " [" + m.English + "]"
			upper = strings.ToUpper(out)
		}
	}
	return out
}

var hangulRe = regexp.MustCompile(`\p{Hangul}`)

func containsHangul(s string) bool { return hangulRe.MatchString(s) }
