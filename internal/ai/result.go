package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gorm.io/datatypes"

	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
)

var errNoJSON = errors.New("no JSON object in response")

// MatchResult is the structured analysis of one profile/listing pair.
type MatchResult struct {
	OverallScore      int             `json:"overall_score"`
	SkillsMatch       SkillsMatch     `json:"skills_match"`
	ExperienceMatch   ExperienceMatch `json:"experience_match"`
	EducationMatch    EducationMatch  `json:"education_match"`
	CompanyCultureFit CultureFit      `json:"company_culture_fit"`
	Strengths         []string        `json:"strengths"`
	Weaknesses        []string        `json:"weaknesses"`
	Recommendations   []string        `json:"recommendations"`
	Summary           string          `json:"summary,omitempty"`
	ApplicationAdvice string          `json:"application_advice,omitempty"`
	// Raw is the JSON object exactly as the model returned it.
	Raw json.RawMessage `json:"-"`
}

type SkillsMatch struct {
	MatchingSkills []string `json:"matching_skills"`
	MissingSkills  []string `json:"missing_skills"`
	Score          *int     `json:"score"`
}

type ExperienceMatch struct {
	YearsExperienceMatch    *bool `json:"years_experience_match,omitempty"`
	IndustryExperienceMatch *bool `json:"industry_experience_match,omitempty"`
	Score                   *int  `json:"score"`
}

type EducationMatch struct {
	DegreeRequired string `json:"degree_required,omitempty"`
	DegreeMatched  *bool  `json:"degree_matched,omitempty"`
	Score          *int   `json:"score"`
}

type CultureFit struct {
	ValuesAlignment string `json:"values_alignment,omitempty"`
	WorkStyleMatch  string `json:"work_style_match,omitempty"`
	Score           *int   `json:"score"`
}

// Apply copies scores and findings onto m. Status and interest flags are untouched.
func (r *MatchResult) Apply(m *database.Match) {
	m.OverallScore = r.OverallScore
	m.SkillsScore = r.SkillsMatch.Score
	m.ExperienceScore = r.ExperienceMatch.Score
	m.EducationScore = r.EducationMatch.Score
	m.CompanyFitScore = r.CompanyCultureFit.Score
	m.Strengths = datatypes.JSONSlice[string](r.Strengths)
	m.Weaknesses = datatypes.JSONSlice[string](r.Weaknesses)
	m.MatchingSkills = datatypes.JSONSlice[string](r.SkillsMatch.MatchingSkills)
	m.MissingSkills = datatypes.JSONSlice[string](r.SkillsMatch.MissingSkills)
	m.MatchSummary = r.summary()
	m.ImprovementSuggestions = strings.Join(r.Recommendations, "\n")
	m.ApplicationAdvice = r.ApplicationAdvice
	if len(r.Raw) > 0 {
		m.RawAnalysis = datatypes.JSON(r.Raw)
	}
}

func (r *MatchResult) summary() string {
	if s := strings.TrimSpace(r.Summary); s != "" {
		return s
	}
	out := fmt.Sprintf("Overall match %d/100.", r.OverallScore)
	if len(r.Strengths) > 0 {
		out += " Strengths: " + strings.Join(r.Strengths, "; ") + "."
	}
	if len(r.SkillsMatch.MissingSkills) > 0 {
		out += " Missing skills: " + strings.Join(r.SkillsMatch.MissingSkills, ", ") + "."
	}
	return out
}

// ExtractJSON returns the first balanced {...} object in text, ignoring braces inside strings.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", errNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", errNoJSON
}

// wireResult mirrors MatchResult loosely so that model output with odd types still decodes.
type wireResult struct {
	OverallScore json.RawMessage `json:"overall_score"`
	SkillsMatch  struct {
		MatchingSkills []any           `json:"matching_skills"`
		MissingSkills  []any           `json:"missing_skills"`
		Score          json.RawMessage `json:"score"`
	} `json:"skills_match"`
	ExperienceMatch struct {
		YearsExperienceMatch    any             `json:"years_experience_match"`
		IndustryExperienceMatch any             `json:"industry_experience_match"`
		Score                   json.RawMessage `json:"score"`
	} `json:"experience_match"`
	EducationMatch struct {
		DegreeRequired any             `json:"degree_required"`
		DegreeMatched  any             `json:"degree_matched"`
		Score          json.RawMessage `json:"score"`
	} `json:"education_match"`
	CompanyCultureFit struct {
		ValuesAlignment any             `json:"values_alignment"`
		WorkStyleMatch  any             `json:"work_style_match"`
		Score           json.RawMessage `json:"score"`
	} `json:"company_culture_fit"`
	Strengths         []any `json:"strengths"`
	Weaknesses        []any `json:"weaknesses"`
	Recommendations   []any `json:"recommendations"`
	Summary           any   `json:"summary"`
	ApplicationAdvice any   `json:"application_advice"`
}

// ParseMatchResult extracts and decodes the model's JSON answer. Scores are taken as
// returned unless strict, which clamps them into 0..100 and drops non-string list items.
func ParseMatchResult(text string, strict bool) (*MatchResult, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, errcode.Parse("Invalid response format from Gemini API", err)
	}

	var w wireResult
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, errcode.Parse("Failed to parse JSON response", err)
	}

	p := resultParser{strict: strict}
	overall := p.score(w.OverallScore)
	res := &MatchResult{
		SkillsMatch: SkillsMatch{
			MatchingSkills: p.list(w.SkillsMatch.MatchingSkills),
			MissingSkills:  p.list(w.SkillsMatch.MissingSkills),
			Score:          p.score(w.SkillsMatch.Score),
		},
		ExperienceMatch: ExperienceMatch{
			YearsExperienceMatch:    toBool(w.ExperienceMatch.YearsExperienceMatch),
			IndustryExperienceMatch: toBool(w.ExperienceMatch.IndustryExperienceMatch),
			Score:                   p.score(w.ExperienceMatch.Score),
		},
		EducationMatch: EducationMatch{
			DegreeRequired: toText(w.EducationMatch.DegreeRequired),
			DegreeMatched:  toBool(w.EducationMatch.DegreeMatched),
			Score:          p.score(w.EducationMatch.Score),
		},
		CompanyCultureFit: CultureFit{
			ValuesAlignment: toText(w.CompanyCultureFit.ValuesAlignment),
			WorkStyleMatch:  toText(w.CompanyCultureFit.WorkStyleMatch),
			Score:           p.score(w.CompanyCultureFit.Score),
		},
		Strengths:         p.list(w.Strengths),
		Weaknesses:        p.list(w.Weaknesses),
		Recommendations:   p.list(w.Recommendations),
		Summary:           toText(w.Summary),
		ApplicationAdvice: toText(w.ApplicationAdvice),
		Raw:               json.RawMessage(raw),
	}
	if p.err != nil {
		return nil, errcode.Parse("Failed to parse JSON response", p.err)
	}
	if overall != nil {
		res.OverallScore = *overall
	}
	return res, nil
}

type resultParser struct {
	strict bool
	err    error
}

// score accepts a JSON number or a numeric string and rounds it to an int.
func (p *resultParser) score(raw json.RawMessage) *int {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			p.fail(fmt.Errorf("score %s is not a number", text))
			return nil
		}
		parsed, convErr := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
		if convErr != nil {
			p.fail(fmt.Errorf("score %q is not a number", s))
			return nil
		}
		f = parsed
	}

	v := int(math.Round(f))
	if p.strict {
		v = max(0, min(100, v))
	}
	return &v
}

func (p *resultParser) list(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		case nil:
		default:
			if !p.strict {
				out = append(out, fmt.Sprint(v))
			}
		}
	}
	return out
}

func (p *resultParser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func toBool(v any) *bool {
	switch b := v.(type) {
	case bool:
		return &b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return &parsed
		}
	}
	return nil
}

func toText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	default:
		return fmt.Sprint(s)
	}
}
