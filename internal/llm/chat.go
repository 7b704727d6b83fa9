package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tmc/langchaingo/llms"

	"github.com/sso312/querylens/internal/apperr"
)

// Message is one chat turn, matching spec §6's Chat contract shape.
type Message struct {
	Role    string
	Content string
}

// Usage reports token accounting for one Chat call.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
}

// Response is the Chat contract's return shape.
type Response struct {
	Content string
	Usage   Usage
}

// Client is the out-of-scope LLM provider contract: Chat(messages, model,
// maxTokens, expectJSON). Concrete model selection happens via the `model`
// profile name, resolved against the Client's Profiles.
type Client interface {
	Chat(ctx context.Context, messages []Message, model string, maxTokens int, expectJSON bool) (Response, error)
}

// LangchainClient implements Client over langchaingo, one breaker-guarded
// llms.Model per profile, matching the teacher's per-model CreateLLM
// factory generalized to many named profiles instead of one global.
type LangchainClient struct {
	profiles Profiles
	models   map[string]llms.Model
	breakers map[string]*gobreaker.CircuitBreaker
	timeout  time.Duration
}

func NewLangchainClient(profiles Profiles, timeout time.Duration) *LangchainClient {
	return &LangchainClient{
		profiles: profiles,
		models:   make(map[string]llms.Model),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		timeout:  timeout,
	}
}

func (c *LangchainClient) modelFor(profile string) (llms.Model, *gobreaker.CircuitBreaker, error) {
	if m, ok := c.models[profile]; ok {
		return m, c.breakers[profile], nil
	}
	mc, ok := c.profiles.Get(profile)
	if !ok {
		return nil, nil, apperr.Infrastructure(fmt.Sprintf("unknown model profile %q", profile), nil)
	}
	client, err := newOpenAIClient(mc)
	if err != nil {
		return nil, nil, apperr.Infrastructure("create llm client", err)
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm:" + profile,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	c.models[profile] = client
	c.breakers[profile] = cb
	return client, cb, nil
}

// Chat calls the profile's model. When expectJSON is set and the first
// response does not parse as a single JSON object, it retries once with the
// JSON-format hint dropped from the prompt, per spec §6.
func (c *LangchainClient) Chat(ctx context.Context, messages []Message, model string, maxTokens int, expectJSON bool) (Response, error) {
	m, cb, err := c.modelFor(model)
	if err != nil {
		return Response{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := render(messages, expectJSON)
	resp, err := callWithBreaker(ctx, cb, m, prompt, maxTokens)
	if err != nil {
		return Response{}, apperr.Infrastructure("llm call failed", err)
	}

	if expectJSON && !isJSONObject(resp) {
		fallbackPrompt := render(messages, false)
		resp, err = callWithBreaker(ctx, cb, m, fallbackPrompt, maxTokens)
		if err != nil {
			return Response{}, apperr.Infrastructure("llm call failed on json-fallback retry", err)
		}
	}

	return Response{Content: resp, Usage: estimateUsage(prompt, resp)}, nil
}

func callWithBreaker(ctx context.Context, cb *gobreaker.CircuitBreaker, m llms.Model, prompt string, maxTokens int) (string, error) {
	out, err := cb.Execute(func() (any, error) {
		opts := []llms.CallOption{}
		if maxTokens > 0 {
			opts = append(opts, llms.WithMaxTokens(maxTokens))
		}
		return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func render(messages []Message, expectJSON bool) string {
	var sb strings.Builder
	for _, msg := range messages {
		sb.WriteString(strings.ToUpper(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}
	if expectJSON {
		sb.WriteString("Respond with a single JSON object and nothing else.\n")
	}
	return sb.String()
}

func isJSONObject(s string) bool {
	trimmed := strings.TrimSpace(stripFences(s))
	var v map[string]any
	return json.Unmarshal([]byte(trimmed), &v) == nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// estimateUsage is a cheap whitespace-token estimate; the budget package
// uses the real cl100k tokenizer where accuracy matters. Chat's usage field
// is advisory only, matching spec §6.
func estimateUsage(prompt, completion string) Usage {
	p := len(strings.Fields(prompt))
	c := len(strings.Fields(completion))
	return Usage{Prompt: p, Completion: c, Total: p + c}
}
