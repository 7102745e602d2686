package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"jobcompass/internal/config"
	"jobcompass/internal/errcode"
	"jobcompass/internal/logger"
)

const defaultModel = "gemini-1.5-pro"

// ErrNotConfigured is returned by the generator built without an API key.
var ErrNotConfigured = errors.New("gemini api key is not configured")

// GenerateOptions overrides the configured generation parameters for one call.
type GenerateOptions struct {
	Temperature *float32
}

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator calls the Gemini API through google.golang.org/genai.
type GeminiGenerator struct {
	models contentGenerator
	model  string
	cfg    config.GeminiConfig
	logger *zap.Logger
}

// NewGenerator returns a Gemini-backed generator, or one that always fails with
// ErrNotConfigured when no API key is set.
func NewGenerator(ctx context.Context, cfg config.GeminiConfig, log *zap.Logger) (Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return unconfigured{}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiGenerator(client.Models, cfg, log), nil
}

func newGeminiGenerator(models contentGenerator, cfg config.GeminiConfig, log *zap.Logger) *GeminiGenerator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	return &GeminiGenerator{
		models: models,
		model:  model,
		cfg:    cfg,
		logger: logger.OrNop(log).With(zap.String("model", model)),
	}
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	g.logger.Debug("gemini request", zap.String("prompt", logger.TruncateForLog(prompt, 500)))

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), g.contentConfig(opts))
	if err != nil {
		return "", errcode.Upstream("Failed to generate text with Gemini", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	g.logger.Debug("gemini response", zap.String("text", logger.TruncateForLog(text, 500)))
	return text, nil
}

func (g *GeminiGenerator) contentConfig(opts GenerateOptions) *genai.GenerateContentConfig {
	temperature := g.cfg.Temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(temperature),
		SafetySettings: safetySettings(),
	}
	if g.cfg.TopP > 0 {
		cfg.TopP = genai.Ptr(g.cfg.TopP)
	}
	if g.cfg.TopK > 0 {
		cfg.TopK = genai.Ptr(g.cfg.TopK)
	}
	if g.cfg.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = g.cfg.MaxOutputTokens
	}
	return cfg
}

func safetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	out := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		out = append(out, &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockThresholdBlockOnlyHigh})
	}
	return out
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", errcode.Upstream(fmt.Sprintf("Content blocked due to %s", resp.PromptFeedback.BlockReason), nil)
		}
		return "", errcode.Upstream("No response from Gemini API", nil)
	}

	candidate := resp.Candidates[0]
	for _, rating := range candidate.SafetyRatings {
		if rating != nil && rating.Blocked {
			return "", errcode.Upstream(fmt.Sprintf("Content blocked due to %s", rating.Category), nil)
		}
	}
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", errcode.Upstream("Content blocked due to SAFETY", nil)
	}

	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errcode.Upstream("No content in response", nil)
	}

	texts := make([]string, 0, len(candidate.Content.Parts))
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		texts = append(texts, part.Text)
	}
	if len(texts) == 0 {
		return "", errcode.Upstream("No content in response", nil)
	}
	return strings.Join(texts, "\n"), nil
}

type unconfigured struct{}

func (unconfigured) Generate(context.Context, string, GenerateOptions) (string, error) {
	return "", errcode.Upstream("Gemini API key is not configured", ErrNotConfigured)
}
