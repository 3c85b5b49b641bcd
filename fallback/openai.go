package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const systemPrompt = `You repair lines from OCR scans of printed genealogical descendancy charts.
A chart line is either a person ("<generation>--<name> (<birth>-<death>)") or a
spouse ("sp-<name> (<birth>-<death>)"). OCR noise may garble the marker, merge
two records onto one line, or corrupt the dates.

Given one raw line and the previous record's generation and name, respond with
a JSON array of the records you can recover, in document order. Each element:
{"generation": int or null, "name": string, "birth_year": int or null,
"death_year": int or null, "birth_approx": bool, "death_approx": bool,
"is_spouse": bool, "confidence": float between 0 and 1}.
Use null generation when the line does not state one. Respond with [] when the
line is not a person or spouse record. Respond with JSON only.`

// OpenAIResolver resolves flagged lines through an OpenAI-compatible chat
// endpoint (OpenAI, Ollama, OpenRouter). Calls are best effort and bounded by
// Timeout; callers treat any error as "no fallback available".
type OpenAIResolver struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewOpenAIResolver builds a resolver against baseURL (empty for the OpenAI
// default). apiKey may be a placeholder for local endpoints.
func NewOpenAIResolver(baseURL, apiKey, model string, timeout time.Duration, log *zap.SugaredLogger) *OpenAIResolver {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &OpenAIResolver{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		log:     log,
	}
}

// ResolveLine implements LineResolver.
func (r *OpenAIResolver) ResolveLine(ctx context.Context, raw string, lineCtx LineContext) ([]Candidate, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	user := fmt.Sprintf("Previous generation: %d\nPrevious name: %s\nLine: %s",
		lineCtx.PreviousGeneration, lineCtx.PreviousName, raw)

	resp, err := r.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fallback chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("fallback returned no choices")
	}

	text := stripCodeBlock(resp.Choices[0].Message.Content)
	var candidates []Candidate
	if err := json.Unmarshal([]byte(text), &candidates); err != nil {
		return nil, fmt.Errorf("decode fallback candidates: %w (raw: %s)", err, truncate(text, 200))
	}

	valid := candidates[:0]
	for _, c := range candidates {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		valid = append(valid, c)
	}
	r.log.Debugw("fallback resolved line", "line", truncate(raw, 80), "candidates", len(valid))
	return valid, nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
