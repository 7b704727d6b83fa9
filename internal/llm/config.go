// Package llm provides the out-of-scope LLM provider contract from spec §6
// (Chat) plus a langchaingo-backed client keyed by named model profiles, in
// the style of the teacher's ModelConfig/ConfigFile pair. Unlike the
// teacher's package-level init() (which panics if llm_config.json is
// missing — unsuitable for a library used by a server), named profiles load
// from config.Config and missing ones are a normal error.
package llm

import (
	"os"
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/llms/openai"
)

// ModelConfig names one deployable model endpoint.
type ModelConfig struct {
	ModelName       string `json:"model_name"`
	Token           string `json:"token"`
	BaseURL         string `json:"base_url"`
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
}

// Profiles is a named set of model configs, generalizing the teacher's
// ConfigFile (DeepSeekV3/QwenMax/...) into an open map so operators can add
// profiles without a code change.
type Profiles map[string]ModelConfig

func (p Profiles) Get(name string) (ModelConfig, bool) {
	mc, ok := p[name]
	return mc, ok
}

// newOpenAIClient builds a langchaingo llms.Model for one profile, mirroring
// the teacher's CreateLLM.
func newOpenAIClient(mc ModelConfig) (*openai.LLM, error) {
	opts := []openai.Option{openai.WithModel(mc.ModelName)}
	if mc.Token != "" {
		opts = append(opts, openai.WithToken(mc.Token))
	}
	if mc.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(mc.BaseURL))
	}
	return openai.New(opts...)
}

// LoadProfilesFromEnv builds a Profiles set for the given model names (as
// named by config.Config's *Model fields) from environment variables,
// generalizing the teacher's llm_config.json into env vars so the server
// never reads a provider secret from a file on disk. Each model falls back
// to the generic LLM_API_TOKEN / LLM_BASE_URL when no model-specific
// override (LLM_<MODEL>_TOKEN / LLM_<MODEL>_BASE_URL) is set.
func LoadProfilesFromEnv(modelNames []string) Profiles {
	defaultToken := os.Getenv("LLM_API_TOKEN")
	defaultBaseURL := os.Getenv("LLM_BASE_URL")

	profiles := make(Profiles, len(modelNames))
	for _, name := range modelNames {
		if name == "" {
			continue
		}
		key := envKey(name)
		token := os.Getenv("LLM_" + key + "_TOKEN")
		if token == "" {
			token = defaultToken
		}
		baseURL := os.Getenv("LLM_" + key + "_BASE_URL")
		if baseURL == "" {
			baseURL = defaultBaseURL
		}
		profiles[name] = ModelConfig{ModelName: name, Token: token, BaseURL: baseURL}
	}
	return profiles
}

func envKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
