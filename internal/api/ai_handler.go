package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jobcompass/internal/ai"
	"jobcompass/internal/api/middleware"
	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
	"jobcompass/internal/match"
	"jobcompass/internal/store"
)

// MatchAnalyzer is the part of ai.Engine the handlers call.
type MatchAnalyzer interface {
	Analyze(ctx context.Context, l database.Listing, p database.UserProfile) (*ai.MatchResult, error)
	CoverLetter(ctx context.Context, l database.Listing, p database.UserProfile, opts ai.CoverLetterOptions) (string, error)
}

type AIHandler struct {
	store     *store.Store
	analyzer  MatchAnalyzer
	lifecycle *match.Lifecycle
	quota     *aiQuota
	now       func() time.Time
}

// NewAIHandler limits each profile to hourlyLimit AI calls when kv is set and hourlyLimit > 0.
func NewAIHandler(st *store.Store, analyzer MatchAnalyzer, lifecycle *match.Lifecycle, kv quotaStore, hourlyLimit int) *AIHandler {
	return &AIHandler{
		store:     st,
		analyzer:  analyzer,
		lifecycle: lifecycle,
		quota:     newAIQuota(kv, hourlyLimit),
		now:       time.Now,
	}
}

// allow counts one call for the profile in the current hour and answers 429 once over the limit.
// A Redis outage does not block AI calls.
func (h *AIHandler) allow(c *gin.Context, profileID uint) bool {
	if h.quota == nil {
		return true
	}
	remaining, ok, err := h.quota.take(c.Request.Context(), profileID)
	if err != nil {
		middleware.LoggerFromContext(c).Warn("ai rate counter unavailable", zap.Error(err))
		return true
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(h.quota.limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !ok {
		fail(c, http.StatusTooManyRequests, "Too many AI requests. Please try again later.")
		return false
	}
	return true
}

// pair loads the profile and listing, reporting unknown ids as validation errors.
func (h *AIHandler) pair(ctx context.Context, profileID, listingID uint) (*database.UserProfile, *database.Listing, error) {
	fields := errcode.FieldErrors{}
	profile, err := h.store.Profiles.Get(ctx, profileID)
	if err != nil {
		if !errcode.IsNotFound(err) {
			return nil, nil, err
		}
		fields.Add("user_profile_id", "The selected user profile id is invalid.")
	}
	l, err := h.store.Listings.Get(ctx, listingID)
	if err != nil {
		if !errcode.IsNotFound(err) {
			return nil, nil, err
		}
		fields.Add("listing_id", "The selected listing id is invalid.")
	}
	if err := fields.Err(); err != nil {
		return nil, nil, err
	}
	return profile, l, nil
}

type analyzeRequest struct {
	UserProfileID    uint  `json:"user_profile_id" binding:"required"`
	ListingID        uint  `json:"listing_id" binding:"required"`
	SearchCriteriaID *uint `json:"search_criteria_id"`
	// Save stores the analysis as a match, refreshing the scores of an existing one.
	Save bool `json:"save"`
}

type analysis struct {
	UserProfileID uint `json:"user_profile_id"`
	ListingID     uint `json:"listing_id"`
	*ai.MatchResult
	JobMatchID *uint `json:"job_match_id,omitempty"`
}

func (h *AIHandler) Analyze(c *gin.Context) {
	const action = "analyze the match"
	var req analyzeRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	profile, l, err := h.pair(ctx, req.UserProfileID, req.ListingID)
	if err != nil {
		respondError(c, err, action)
		return
	}
	if req.SearchCriteriaID != nil {
		if _, err := h.store.Criteria.Get(ctx, *req.SearchCriteriaID); err != nil {
			if errcode.IsNotFound(err) {
				err = errcode.Invalid("search_criteria_id", "The selected search criteria id is invalid.")
			}
			respondError(c, err, action)
			return
		}
	}
	if !h.allow(c, profile.ID) {
		return
	}

	res, err := h.analyzer.Analyze(ctx, *l, *profile)
	if err != nil {
		respondError(c, err, action)
		return
	}

	out := analysis{UserProfileID: profile.ID, ListingID: l.ID, MatchResult: res}
	if req.Save {
		m := database.Match{UserProfileID: profile.ID, ListingID: l.ID, SearchCriteriaID: req.SearchCriteriaID}
		res.Apply(&m)
		h.lifecycle.Init(&m, match.StatusNew)
		if _, err := h.store.Matches.Upsert(ctx, &m); err != nil {
			respondError(c, err, action)
			return
		}
		out.JobMatchID = &m.ID
	}
	respond(c, http.StatusOK, out, "Match analysis completed successfully")
}

type coverLetterRequest struct {
	JobMatchID    uint `json:"job_match_id"`
	UserProfileID uint `json:"user_profile_id"`
	ListingID     uint `json:"listing_id"`

	Tone                      string `json:"tone" binding:"omitempty,oneof=formal enthusiastic professional friendly"`
	Length                    string `json:"length" binding:"omitempty,oneof=short medium long"`
	HighlightSkills           bool   `json:"highlight_skills"`
	IncludeSalaryExpectations bool   `json:"include_salary_expectations"`
	CustomInstructions        string `json:"custom_instructions" binding:"omitempty,max=2000"`
}

func (r coverLetterRequest) options() ai.CoverLetterOptions {
	return ai.CoverLetterOptions{
		Tone:                      r.Tone,
		Length:                    r.Length,
		HighlightSkills:           r.HighlightSkills,
		IncludeSalaryExpectations: r.IncludeSalaryExpectations,
		CustomInstructions:        r.CustomInstructions,
	}
}

type coverLetter struct {
	JobMatchID        *uint     `json:"job_match_id,omitempty"`
	UserProfileID     uint      `json:"user_profile_id"`
	ListingID         uint      `json:"listing_id"`
	Content           string    `json:"content"`
	Tone              string    `json:"tone"`
	Length            string    `json:"length"`
	HighlightedSkills []string  `json:"highlighted_skills"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// CoverLetter writes a letter for an existing match, or for a profile and listing pair.
func (h *AIHandler) CoverLetter(c *gin.Context) {
	const action = "generate the cover letter"
	var req coverLetterRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	var (
		profile *database.UserProfile
		l       *database.Listing
		out     coverLetter
	)
	switch {
	case req.JobMatchID != 0:
		m, err := h.store.Matches.Get(ctx, req.JobMatchID)
		if err != nil {
			if errcode.IsNotFound(err) {
				err = errcode.Invalid("job_match_id", "The selected job match id is invalid.")
			}
			respondError(c, err, action)
			return
		}
		if profile, l, err = h.pair(ctx, m.UserProfileID, m.ListingID); err != nil {
			respondError(c, err, action)
			return
		}
		out.JobMatchID = &m.ID
		out.HighlightedSkills = m.MatchingSkills
	case req.UserProfileID != 0 && req.ListingID != 0:
		var err error
		if profile, l, err = h.pair(ctx, req.UserProfileID, req.ListingID); err != nil {
			respondError(c, err, action)
			return
		}
		out.HighlightedSkills = profile.Skills
	default:
		fields := errcode.FieldErrors{}
		fields.Add("job_match_id", "The job match id field is required when user profile id and listing id are not present.")
		respondError(c, fields.Err(), action)
		return
	}
	if !h.allow(c, profile.ID) {
		return
	}

	opts := req.options()
	content, err := h.analyzer.CoverLetter(ctx, *l, *profile, opts)
	if err != nil {
		respondError(c, err, action)
		return
	}

	out.UserProfileID = profile.ID
	out.ListingID = l.ID
	out.Content = content
	out.Tone = valueOr(opts.Tone, ai.ToneProfessional)
	out.Length = valueOr(opts.Length, ai.LengthMedium)
	if out.HighlightedSkills == nil {
		out.HighlightedSkills = []string{}
	}
	out.GeneratedAt = h.now().UTC()
	respond(c, http.StatusOK, out, "Cover letter generated successfully")
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
