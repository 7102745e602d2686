// Package ai scores profile/listing pairs and writes cover letters with a generative model.
package ai

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
	"jobcompass/internal/logger"
	"jobcompass/internal/metrics"
)

// analysisTemperature keeps the JSON answer stable across calls.
const analysisTemperature float32 = 0.1

// Cover letter tones and lengths.
const (
	ToneProfessional = "professional"
	ToneEnthusiastic = "enthusiastic"
	ToneFriendly     = "friendly"
	ToneFormal       = "formal"

	LengthShort  = "short"
	LengthMedium = "medium"
	LengthLong   = "long"
)

var toneInstructions = map[string]string{
	ToneProfessional: "Use a professional and business-appropriate tone.",
	ToneEnthusiastic: "Use an enthusiastic and energetic tone.",
	ToneFriendly:     "Use a friendly and approachable tone.",
	ToneFormal:       "Use a formal and respectful tone.",
}

var lengthInstructions = map[string]string{
	LengthShort:  "Keep it concise, around 200-250 words.",
	LengthMedium: "Aim for a moderate length, around 300-400 words.",
	LengthLong:   "Be detailed, around 500-600 words.",
}

// CoverLetterOptions tune the generated letter. Unknown tone or length fall back to the defaults.
type CoverLetterOptions struct {
	Tone                      string `json:"tone"`
	Length                    string `json:"length"`
	HighlightSkills           bool   `json:"highlight_skills"`
	IncludeSalaryExpectations bool   `json:"include_salary_expectations"`
	CustomInstructions        string `json:"custom_instructions"`
}

func (o CoverLetterOptions) normalized() CoverLetterOptions {
	o.Tone = strings.ToLower(strings.TrimSpace(o.Tone))
	if _, ok := toneInstructions[o.Tone]; !ok {
		o.Tone = ToneProfessional
	}
	o.Length = strings.ToLower(strings.TrimSpace(o.Length))
	if _, ok := lengthInstructions[o.Length]; !ok {
		o.Length = LengthMedium
	}
	return o
}

// Engine builds prompts, calls the generator and parses its answers.
type Engine struct {
	gen    Generator
	strict bool
	logger *zap.Logger
}

// NewEngine returns an engine; strict clamps scores into 0..100 instead of trusting the model.
func NewEngine(gen Generator, strict bool, log *zap.Logger) *Engine {
	return &Engine{gen: gen, strict: strict, logger: logger.OrNop(log)}
}

// Score rates how well profile fits listing, optionally in light of the criteria that found it.
func (e *Engine) Score(ctx context.Context, l database.Listing, p database.UserProfile, c *database.SearchCriteria) (*MatchResult, error) {
	res, err := e.score(ctx, l, p, c)
	metrics.ObserveAIRequest("score", err)
	return res, err
}

// Analyze is Score without search criteria, used by the on-demand analysis endpoint.
func (e *Engine) Analyze(ctx context.Context, l database.Listing, p database.UserProfile) (*MatchResult, error) {
	res, err := e.score(ctx, l, p, nil)
	metrics.ObserveAIRequest("analyze", err)
	return res, err
}

func (e *Engine) score(ctx context.Context, l database.Listing, p database.UserProfile, c *database.SearchCriteria) (*MatchResult, error) {
	log := e.logger.With(zap.Uint("listing_id", l.ID), zap.Uint("user_profile_id", p.ID))

	prompt, err := buildMatchPrompt(l, p, c)
	if err != nil {
		return nil, err
	}

	temperature := analysisTemperature
	text, err := e.gen.Generate(ctx, prompt, GenerateOptions{Temperature: &temperature})
	if err != nil {
		log.Error("match analysis failed", zap.Error(err))
		return nil, err
	}

	res, err := ParseMatchResult(text, e.strict)
	if err != nil {
		log.Error("match analysis unparsable",
			zap.Error(err),
			zap.String("response", logger.TruncateForLog(text, 500)),
		)
		return nil, err
	}
	return res, nil
}

// CoverLetter writes a letter for profile applying to listing.
func (e *Engine) CoverLetter(ctx context.Context, l database.Listing, p database.UserProfile, opts CoverLetterOptions) (string, error) {
	letter, err := e.coverLetter(ctx, l, p, opts.normalized())
	metrics.ObserveAIRequest("cover_letter", err)
	return letter, err
}

func (e *Engine) coverLetter(ctx context.Context, l database.Listing, p database.UserProfile, opts CoverLetterOptions) (string, error) {
	prompt, err := buildCoverLetterPrompt(l, p, opts)
	if err != nil {
		return "", err
	}

	text, err := e.gen.Generate(ctx, prompt, GenerateOptions{})
	if err != nil {
		e.logger.Error("cover letter generation failed",
			zap.Uint("listing_id", l.ID),
			zap.Uint("user_profile_id", p.ID),
			zap.Error(err),
		)
		return "", err
	}

	letter := strings.TrimSpace(text)
	if letter == "" {
		return "", errcode.Upstream("No content in response", nil)
	}
	return letter, nil
}
