package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
	"jobcompass/internal/store"
)

const criteriaPerPage = 10

type CriteriaHandler struct {
	store *store.Store
}

func NewCriteriaHandler(st *store.Store) *CriteriaHandler {
	return &CriteriaHandler{store: st}
}

type criteriaRequest struct {
	UserProfileID   *uint    `json:"user_profile_id"`
	Name            *string  `json:"name" binding:"omitempty,min=1,max=255"`
	IsDefault       *bool    `json:"is_default"`
	Keywords        []string `json:"keywords"`
	Locations       []string `json:"locations"`
	JobType         *string  `json:"job_type" binding:"omitempty,max=32"`
	ExperienceLevel *string  `json:"experience_level" binding:"omitempty,max=32"`
	MinSalary       *float64 `json:"min_salary" binding:"omitempty,min=0"`
	MaxSalary       *float64 `json:"max_salary" binding:"omitempty,min=0"`
	SalaryCurrency  *string  `json:"salary_currency" binding:"omitempty,len=3"`
	IsRemote        *bool    `json:"is_remote"`
	Industries      []string `json:"industries"`
	Companies       []string `json:"companies"`
	JobTitles       []string `json:"job_titles"`
	SkillsIncluded  []string `json:"skills_included"`
	SkillsExcluded  []string `json:"skills_excluded"`
	DaysPosted      *int     `json:"days_posted" binding:"omitempty,min=1,max=90"`
	IsActive        *bool    `json:"is_active"`
}

func (r criteriaRequest) requireCreate() error {
	fields := errcode.FieldErrors{}
	if r.UserProfileID == nil || *r.UserProfileID == 0 {
		fields.Add("user_profile_id", "The user profile id field is required.")
	}
	if r.Name == nil || strings.TrimSpace(*r.Name) == "" {
		fields.Add("name", "The name field is required.")
	}
	return fields.Err()
}

func (r criteriaRequest) apply(c *database.SearchCriteria) {
	if r.UserProfileID != nil {
		c.UserProfileID = *r.UserProfileID
	}
	setString(&c.Name, r.Name)
	setString(&c.JobType, r.JobType)
	setString(&c.ExperienceLevel, r.ExperienceLevel)
	if r.SalaryCurrency != nil {
		c.SalaryCurrency = strings.ToUpper(*r.SalaryCurrency)
	}
	if r.IsDefault != nil {
		c.IsDefault = *r.IsDefault
	}
	if r.IsActive != nil {
		c.IsActive = *r.IsActive
	}
	if r.MinSalary != nil {
		c.MinSalary = r.MinSalary
	}
	if r.MaxSalary != nil {
		c.MaxSalary = r.MaxSalary
	}
	if r.IsRemote != nil {
		c.IsRemote = r.IsRemote
	}
	if r.DaysPosted != nil {
		c.DaysPosted = r.DaysPosted
	}
	for _, list := range []struct {
		src []string
		dst *[]string
	}{
		{r.Keywords, (*[]string)(&c.Keywords)},
		{r.Locations, (*[]string)(&c.Locations)},
		{r.Industries, (*[]string)(&c.Industries)},
		{r.Companies, (*[]string)(&c.Companies)},
		{r.JobTitles, (*[]string)(&c.JobTitles)},
		{r.SkillsIncluded, (*[]string)(&c.SkillsIncluded)},
		{r.SkillsExcluded, (*[]string)(&c.SkillsExcluded)},
	} {
		if list.src != nil {
			*list.dst = trimmed(list.src)
		}
	}
}

// checkSalary runs on the merged row so a partial update cannot invert the band.
func checkSalary(c *database.SearchCriteria) error {
	if c.MinSalary != nil && c.MaxSalary != nil && *c.MaxSalary <= *c.MinSalary {
		return errcode.Invalid("max_salary", "The max salary must be greater than min salary.")
	}
	return nil
}

type criteriaListQuery struct {
	pageQuery
	UserProfileID uint  `form:"user_profile_id"`
	IsActive      *bool `form:"is_active"`
}

func (h *CriteriaHandler) List(c *gin.Context) {
	var q criteriaListQuery
	if !bindQuery(c, &q) {
		return
	}
	items, page, err := h.store.Criteria.List(c.Request.Context(), store.CriteriaFilter{UserProfileID: q.UserProfileID, IsActive: q.IsActive}, q.page(criteriaPerPage))
	if err != nil {
		respondError(c, err, "list search criteria")
		return
	}
	respondPage(c, items, page, "Search criteria retrieved successfully")
}

func (h *CriteriaHandler) Create(c *gin.Context) {
	var req criteriaRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := req.requireCreate(); err != nil {
		respondError(c, err, "create the search criteria")
		return
	}

	criteria := database.SearchCriteria{IsActive: true}
	req.apply(&criteria)
	if err := checkSalary(&criteria); err != nil {
		respondError(c, err, "create the search criteria")
		return
	}
	if err := h.store.Criteria.Create(c.Request.Context(), &criteria); err != nil {
		respondError(c, err, "create the search criteria")
		return
	}
	respond(c, http.StatusCreated, criteria, "Search criteria created successfully")
}

func (h *CriteriaHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "Search criteria")
	if !ok {
		return
	}
	criteria, err := h.store.Criteria.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "load the search criteria")
		return
	}
	respond(c, http.StatusOK, criteria, "Search criteria retrieved successfully")
}

func (h *CriteriaHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "Search criteria")
	if !ok {
		return
	}
	var req criteriaRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	criteria, err := h.store.Criteria.Get(ctx, id)
	if err != nil {
		respondError(c, err, "update the search criteria")
		return
	}
	req.apply(criteria)
	if err := checkSalary(criteria); err != nil {
		respondError(c, err, "update the search criteria")
		return
	}
	if err := h.store.Criteria.Update(ctx, criteria); err != nil {
		respondError(c, err, "update the search criteria")
		return
	}
	respond(c, http.StatusOK, criteria, "Search criteria updated successfully")
}

func (h *CriteriaHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "Search criteria")
	if !ok {
		return
	}
	if err := h.store.Criteria.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "delete the search criteria")
		return
	}
	respond(c, http.StatusOK, []any{}, "Search criteria deleted successfully")
}

// Default serves GET /profiles/:id/criteria/default.
func (h *CriteriaHandler) Default(c *gin.Context) {
	id, ok := pathID(c, "User profile")
	if !ok {
		return
	}
	criteria, err := h.store.Criteria.Default(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "load the default search criteria")
		return
	}
	respond(c, http.StatusOK, criteria, "Default search criteria retrieved successfully")
}
