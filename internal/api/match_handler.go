package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"

	"jobcompass/internal/api/middleware"
	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
	"jobcompass/internal/match"
	"jobcompass/internal/metrics"
	"jobcompass/internal/store"
	"jobcompass/internal/tasks"
)

const matchesPerPage = 15

type MatchHandler struct {
	store     *store.Store
	lifecycle *match.Lifecycle
	enqueuer  TaskEnqueuer
}

func NewMatchHandler(st *store.Store, lifecycle *match.Lifecycle, enqueuer TaskEnqueuer) *MatchHandler {
	return &MatchHandler{store: st, lifecycle: lifecycle, enqueuer: enqueuer}
}

// matchScores are shared by create and update.
type matchScores struct {
	OverallScore           *int     `json:"overall_score"`
	SkillsScore            *int     `json:"skills_score"`
	ExperienceScore        *int     `json:"experience_score"`
	EducationScore         *int     `json:"education_score"`
	CompanyFitScore        *int     `json:"company_fit_score"`
	Strengths              []string `json:"strengths"`
	Weaknesses             []string `json:"weaknesses"`
	MatchingSkills         []string `json:"matching_skills"`
	MissingSkills          []string `json:"missing_skills"`
	MatchSummary           *string  `json:"match_summary"`
	ImprovementSuggestions *string  `json:"improvement_suggestions"`
	ApplicationAdvice      *string  `json:"application_advice"`
	UserNotes              *string  `json:"user_notes"`
	IsInterested           *bool    `json:"is_interested"`
	IsNotInterested        *bool    `json:"is_not_interested"`
}

// validate checks every score present lies in 0..100.
func (s matchScores) validate(fields errcode.FieldErrors) {
	for name, score := range map[string]*int{
		"overall_score":     s.OverallScore,
		"skills_score":      s.SkillsScore,
		"experience_score":  s.ExperienceScore,
		"education_score":   s.EducationScore,
		"company_fit_score": s.CompanyFitScore,
	} {
		if score != nil && (*score < 0 || *score > 100) {
			fields.Add(name, "The "+humanize(name)+" must be between 0 and 100.")
		}
	}
	if s.IsInterested != nil && s.IsNotInterested != nil && *s.IsInterested && *s.IsNotInterested {
		fields.Add("is_not_interested", "A job match cannot be interested and not interested at once.")
	}
}

func (s matchScores) apply(l *match.Lifecycle, m *database.Match) {
	if s.OverallScore != nil {
		m.OverallScore = *s.OverallScore
	}
	if s.SkillsScore != nil {
		m.SkillsScore = s.SkillsScore
	}
	if s.ExperienceScore != nil {
		m.ExperienceScore = s.ExperienceScore
	}
	if s.EducationScore != nil {
		m.EducationScore = s.EducationScore
	}
	if s.CompanyFitScore != nil {
		m.CompanyFitScore = s.CompanyFitScore
	}
	if s.Strengths != nil {
		m.Strengths = datatypes.JSONSlice[string](trimmed(s.Strengths))
	}
	if s.Weaknesses != nil {
		m.Weaknesses = datatypes.JSONSlice[string](trimmed(s.Weaknesses))
	}
	if s.MatchingSkills != nil {
		m.MatchingSkills = datatypes.JSONSlice[string](trimmed(s.MatchingSkills))
	}
	if s.MissingSkills != nil {
		m.MissingSkills = datatypes.JSONSlice[string](trimmed(s.MissingSkills))
	}
	setString(&m.MatchSummary, s.MatchSummary)
	setString(&m.ImprovementSuggestions, s.ImprovementSuggestions)
	setString(&m.ApplicationAdvice, s.ApplicationAdvice)
	setString(&m.UserNotes, s.UserNotes)

	// setting one flag clears the other
	switch {
	case s.IsInterested != nil && *s.IsInterested:
		l.MarkInterested(m)
	case s.IsNotInterested != nil && *s.IsNotInterested:
		l.MarkNotInterested(m)
	}
	if s.IsInterested != nil && !*s.IsInterested {
		m.IsInterested = false
	}
	if s.IsNotInterested != nil && !*s.IsNotInterested {
		m.IsNotInterested = false
	}
}

type createMatchRequest struct {
	UserProfileID    uint   `json:"user_profile_id" binding:"required"`
	ListingID        uint   `json:"listing_id" binding:"required"`
	SearchCriteriaID *uint  `json:"search_criteria_id"`
	Status           string `json:"status"`
	matchScores
}

type updateMatchRequest struct {
	Status *string `json:"status"`
	matchScores
}

type matchListQuery struct {
	pageQuery
	UserProfileID   uint   `form:"user_profile_id" binding:"required"`
	Status          string `form:"status"`
	MinScore        *int   `form:"min_score" binding:"omitempty,min=0,max=100"`
	MaxScore        *int   `form:"max_score" binding:"omitempty,min=0,max=100"`
	IsInterested    *bool  `form:"is_interested"`
	IsNotInterested *bool  `form:"is_not_interested"`
	SortBy          string `form:"sort_by" binding:"omitempty,oneof=score created_at updated_at status"`
	SortDir         string `form:"sort_dir" binding:"omitempty,oneof=asc desc"`
}

func (h *MatchHandler) List(c *gin.Context) {
	var q matchListQuery
	if !bindQuery(c, &q) {
		return
	}
	if q.Status != "" {
		if _, err := match.ParseStatus(q.Status); err != nil {
			respondError(c, err, "list job matches")
			return
		}
	}
	filter := store.MatchFilter{
		UserProfileID:   q.UserProfileID,
		Status:          q.Status,
		MinScore:        q.MinScore,
		MaxScore:        q.MaxScore,
		IsInterested:    q.IsInterested,
		IsNotInterested: q.IsNotInterested,
		SortBy:          q.SortBy,
		SortDir:         q.SortDir,
	}
	items, page, err := h.store.Matches.List(c.Request.Context(), filter, q.page(matchesPerPage))
	if err != nil {
		respondError(c, err, "list job matches")
		return
	}
	respondPage(c, items, page, "Job matches retrieved successfully")
}

func (h *MatchHandler) Create(c *gin.Context) {
	var req createMatchRequest
	if !bindJSON(c, &req) {
		return
	}
	fields := errcode.FieldErrors{}
	if req.OverallScore == nil {
		fields.Add("overall_score", "The overall score field is required.")
	}
	req.matchScores.validate(fields)
	if err := fields.Err(); err != nil {
		respondError(c, err, "create the job match")
		return
	}
	status := match.StatusNew
	if req.Status != "" {
		s, err := match.ParseStatus(req.Status)
		if err != nil {
			respondError(c, err, "create the job match")
			return
		}
		status = s
	}

	ctx := c.Request.Context()
	if err := h.checkReferences(c, req.UserProfileID, req.ListingID, req.SearchCriteriaID); err != nil {
		respondError(c, err, "create the job match")
		return
	}

	m := database.Match{
		UserProfileID:    req.UserProfileID,
		ListingID:        req.ListingID,
		SearchCriteriaID: req.SearchCriteriaID,
	}
	req.matchScores.apply(h.lifecycle, &m)
	h.lifecycle.Init(&m, status)
	if err := h.store.Matches.Create(ctx, &m); err != nil {
		respondError(c, err, "create the job match")
		return
	}
	metrics.ObserveStatusChange(m.Status)
	respond(c, http.StatusCreated, m, "Job match created successfully")
}

func (h *MatchHandler) checkReferences(c *gin.Context, profileID, listingID uint, criteriaID *uint) error {
	ctx := c.Request.Context()
	fields := errcode.FieldErrors{}
	if _, err := h.store.Profiles.Get(ctx, profileID); err != nil {
		if !errcode.IsNotFound(err) {
			return err
		}
		fields.Add("user_profile_id", "The selected user profile id is invalid.")
	}
	if _, err := h.store.Listings.Get(ctx, listingID); err != nil {
		if !errcode.IsNotFound(err) {
			return err
		}
		fields.Add("listing_id", "The selected listing id is invalid.")
	}
	if criteriaID != nil {
		if _, err := h.store.Criteria.Get(ctx, *criteriaID); err != nil {
			if !errcode.IsNotFound(err) {
				return err
			}
			fields.Add("search_criteria_id", "The selected search criteria id is invalid.")
		}
	}
	return fields.Err()
}

func (h *MatchHandler) Get(c *gin.Context) {
	m, ok := h.load(c, "load the job match")
	if !ok {
		return
	}
	respond(c, http.StatusOK, m, "Job match retrieved successfully")
}

func (h *MatchHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "Job match")
	if !ok {
		return
	}
	var req updateMatchRequest
	if !bindJSON(c, &req) {
		return
	}
	fields := errcode.FieldErrors{}
	req.matchScores.validate(fields)
	if err := fields.Err(); err != nil {
		respondError(c, err, "update the job match")
		return
	}
	var status match.Status
	if req.Status != nil {
		s, err := match.ParseStatus(*req.Status)
		if err != nil {
			respondError(c, err, "update the job match")
			return
		}
		status = s
	}

	ctx := c.Request.Context()
	m, err := h.store.Matches.Get(ctx, id)
	if err != nil {
		respondError(c, err, "update the job match")
		return
	}
	req.matchScores.apply(h.lifecycle, m)
	changed := status != "" && h.lifecycle.SetStatus(m, status)
	if err := h.store.Matches.Save(ctx, m); err != nil {
		respondError(c, err, "update the job match")
		return
	}
	if changed {
		metrics.ObserveStatusChange(m.Status)
	}
	respond(c, http.StatusOK, m, "Job match updated successfully")
}

func (h *MatchHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "Job match")
	if !ok {
		return
	}
	if err := h.store.Matches.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "delete the job match")
		return
	}
	respond(c, http.StatusOK, []any{}, "Job match deleted successfully")
}

func (h *MatchHandler) load(c *gin.Context, action string) (*database.Match, bool) {
	id, ok := pathID(c, "Job match")
	if !ok {
		return nil, false
	}
	m, err := h.store.Matches.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, action)
		return nil, false
	}
	return m, true
}

// transition loads the match, applies fn and saves it. fn reports whether the status moved.
func (h *MatchHandler) transition(c *gin.Context, action, message string, fn func(*database.Match) bool) {
	m, ok := h.load(c, action)
	if !ok {
		return
	}
	moved := fn(m)
	if err := h.store.Matches.Save(c.Request.Context(), m); err != nil {
		respondError(c, err, action)
		return
	}
	if moved {
		metrics.ObserveStatusChange(m.Status)
	}
	respond(c, http.StatusOK, m, message)
}

func (h *MatchHandler) View(c *gin.Context) {
	h.transition(c, "mark the job match as viewed", "Job match marked as viewed", h.lifecycle.MarkViewed)
}

func (h *MatchHandler) Apply(c *gin.Context) {
	h.transition(c, "record the application", "Job application recorded", func(m *database.Match) bool {
		h.lifecycle.MarkApplied(m)
		return true
	})
}

func (h *MatchHandler) Reject(c *gin.Context) {
	h.transition(c, "reject the job match", "Job match marked as rejected", func(m *database.Match) bool {
		h.lifecycle.MarkRejected(m)
		return true
	})
}

func (h *MatchHandler) Interested(c *gin.Context) {
	h.transition(c, "mark the job as interested", "Job marked as interested", func(m *database.Match) bool {
		h.lifecycle.MarkInterested(m)
		return false
	})
}

func (h *MatchHandler) NotInterested(c *gin.Context) {
	h.transition(c, "mark the job as not interested", "Job marked as not interested", func(m *database.Match) bool {
		h.lifecycle.MarkNotInterested(m)
		return false
	})
}

type suggestionsQuery struct {
	UserProfileID uint `form:"user_profile_id" binding:"required"`
	Limit         int  `form:"limit" binding:"omitempty,min=1,max=20"`
}

func (h *MatchHandler) Suggestions(c *gin.Context) {
	var q suggestionsQuery
	if !bindQuery(c, &q) {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.Profiles.Get(ctx, q.UserProfileID); err != nil {
		respondError(c, err, "load job suggestions")
		return
	}
	items, err := h.store.Matches.Suggestions(ctx, q.UserProfileID, q.Limit)
	if err != nil {
		respondError(c, err, "load job suggestions")
		return
	}
	respond(c, http.StatusOK, items, "Job suggestions retrieved successfully")
}

type runMatchesRequest struct {
	UserProfileID uint `json:"user_profile_id" binding:"required"`
}

// Run queues the matching pipeline for one profile.
func (h *MatchHandler) Run(c *gin.Context) {
	var req runMatchesRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.Profiles.Get(ctx, req.UserProfileID); err != nil {
		respondError(c, err, "queue the matching run")
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	task, err := tasks.NewProcessProfileTask(req.UserProfileID, correlationID)
	if err != nil {
		respondError(c, err, "queue the matching run")
		return
	}
	info, err := h.enqueuer.EnqueueContext(ctx, task, asynq.MaxRetry(2))
	if err != nil {
		respondError(c, errcode.Upstream("enqueue process task", err), "queue the matching run")
		return
	}
	respond(c, http.StatusAccepted, enqueued{TaskID: info.ID, Queue: info.Queue, CorrelationID: correlationID}, "Matching run queued")
}
