package lmprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/genai"
)

// DefaultModel is used when GeminiConfig.Model is empty.
const DefaultModel = "gemini-2.5-flash-lite"

const cacheNamespace = "genai"

// ResponseCache stores raw model responses keyed by request payload.
type ResponseCache interface {
	Response(namespace string, payload []byte) ([]byte, bool)
	SetResponse(namespace string, payload, data []byte) error
}

// generator is the slice of genai.Models the client calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig selects the backend. An API key uses the Gemini API;
// without one, Vertex AI is used with application default credentials.
type GeminiConfig struct {
	APIKey   string
	Project  string
	Location string
	Model    string
	Attempts uint
}

type scoreResponse struct {
	Scores []tokenScore `json:"scores"`
}

type tokenScore struct {
	Token       string  `json:"token"`
	Probability float64 `json:"probability"`
}

// Gemini is an Unmasker that asks a Gemini model for a probability per
// candidate filler.
type Gemini struct {
	models   generator
	cache    ResponseCache
	logger   *slog.Logger
	model    string
	attempts uint
}

// NewGemini connects to the configured backend. cache may be nil.
func NewGemini(ctx context.Context, cfg GeminiConfig, cache ResponseCache, logger *slog.Logger) (*Gemini, error) {
	var cc *genai.ClientConfig
	if cfg.APIKey != "" {
		cc = &genai.ClientConfig{Backend: genai.BackendGeminiAPI, APIKey: cfg.APIKey}
		logger.Info("using Gemini API with API key")
	} else {
		project := cfg.Project
		if project == "" {
			project = os.Getenv("GOOGLE_CLOUD_PROJECT")
		}
		if project == "" {
			return nil, errors.New("no API key and no GCP project configured")
		}
		location := cfg.Location
		if location == "" {
			location = "us-central1"
		}
		cc = &genai.ClientConfig{Backend: genai.BackendVertexAI, Project: project, Location: location}
		logger.Info("using Vertex AI with application default credentials", "project", project, "location", location)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return newGemini(client.Models, cfg, cache, logger), nil
}

func newGemini(models generator, cfg GeminiConfig, cache ResponseCache, logger *slog.Logger) *Gemini {
	model := strings.TrimPrefix(cfg.Model, "models/")
	if model == "" {
		model = DefaultModel
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 4
	}
	return &Gemini{models: models, cache: cache, logger: logger, model: model, attempts: attempts}
}

// Fill implements Unmasker.
func (g *Gemini) Fill(ctx context.Context, text string, candidates []string) (map[string]float64, error) {
	prompt := buildPrompt(text, candidates)
	payload := []byte(g.model + "\x00" + prompt)

	if g.cache != nil {
		if data, ok := g.cache.Response(cacheNamespace, payload); ok {
			scores, err := parseScores(data, candidates)
			if err == nil {
				g.logger.Debug("gemini cache hit", "text", text)
				return scores, nil
			}
			g.logger.Warn("cached gemini response unusable, fetching fresh", "error", err)
		}
	}

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	scores, err := parseScores([]byte(raw), candidates)
	if err != nil {
		g.logger.Warn("failed to parse gemini response", "error", err, "response_text", raw)
		return nil, err
	}

	if g.cache != nil {
		if err := g.cache.SetResponse(cacheNamespace, payload, []byte(raw)); err != nil {
			g.logger.Debug("failed to cache gemini response", "error", err)
		}
	}
	return scores, nil
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	temperature := float32(0)
	cfg := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  2048,
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}

	var text string
	var lastErr error
	err := retry.Do(
		func() error {
			resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
			if err != nil {
				lastErr = err
				return err
			}
			text, err = responseText(resp)
			lastErr = err
			return err
		},
		retry.Context(ctx),
		retry.Attempts(g.attempts),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.RetryIf(isTransientError),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Debug("retrying gemini call", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		if lastErr != nil {
			return "", fmt.Errorf("gemini call: %w", lastErr)
		}
		return "", fmt.Errorf("gemini call: %w", err)
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("empty response from gemini")
	}
	c := resp.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return "", errors.New("no content in gemini response")
	}
	text := c.Content.Parts[0].Text
	if text == "" {
		return "", errors.New("empty text in gemini response")
	}
	return text, nil
}

// isTransientError reports whether err is worth another attempt.
func isTransientError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"rate limit", "quota", "timeout", "deadline", "unavailable",
		"internal server error", "502", "503", "504",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func buildPrompt(text string, candidates []string) string {
	var b strings.Builder
	b.WriteString("The sentence below has one token replaced by ")
	b.WriteString(MaskToken)
	b.WriteString(".\n\nSentence: ")
	b.WriteString(text)
	b.WriteString("\n\nFor each candidate token, give the probability that it is the replaced token. ")
	b.WriteString("Probabilities should sum to at most 1.\n\nCandidates: ")
	b.WriteString(strings.Join(candidates, ", "))
	b.WriteString("\n")
	return b.String()
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"scores": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"token":       {Type: genai.TypeString, Description: "A candidate token, verbatim"},
						"probability": {Type: genai.TypeNumber, Description: "Probability in [0, 1]"},
					},
					PropertyOrdering: []string{"token", "probability"},
					Required:         []string{"token", "probability"},
				},
			},
		},
		Required: []string{"scores"},
	}
}

// parseScores decodes a response, falling back to the first JSON object
// found in free text.
func parseScores(data []byte, candidates []string) (map[string]float64, error) {
	var r scoreResponse
	if err := json.Unmarshal(data, &r); err != nil {
		js, xerr := extractJSON(string(data))
		if xerr != nil {
			return nil, fmt.Errorf("parsing gemini response: %w", err)
		}
		if err := json.Unmarshal([]byte(js), &r); err != nil {
			return nil, fmt.Errorf("parsing extracted gemini response: %w", err)
		}
	}
	scores := make(map[string]float64, len(r.Scores))
	for _, s := range r.Scores {
		tok := strings.TrimSpace(s.Token)
		if s.Probability > 0 && slices.Contains(candidates, tok) {
			scores[tok] += s.Probability
		}
	}
	return scores, nil
}

func extractJSON(text string) (string, error) {
	for _, fence := range []string{"```json", "```"} {
		if start := strings.Index(text, fence); start != -1 {
			start += len(fence)
			if end := strings.Index(text[start:], "```"); end != -1 {
				if js := strings.TrimSpace(text[start : start+end]); json.Valid([]byte(js)) {
					return js, nil
				}
			}
		}
	}
	if start := strings.Index(text, "{"); start != -1 {
		if end := strings.LastIndex(text, "}"); end > start {
			if js := text[start : end+1]; json.Valid([]byte(js)) {
				return js, nil
			}
		}
	}
	return "", errors.New("no valid JSON found in response")
}
