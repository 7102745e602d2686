package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
	"jobcompass/internal/store"
)

const profilesPerPage = 15

type ProfileHandler struct {
	store *store.Store
}

func NewProfileHandler(st *store.Store) *ProfileHandler {
	return &ProfileHandler{store: st}
}

type experienceInput struct {
	Title       string `json:"title" binding:"required,max=255"`
	Company     string `json:"company" binding:"required,max=255"`
	Location    string `json:"location" binding:"omitempty,max=255"`
	StartDate   string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
	Current     bool   `json:"current"`
	Description string `json:"description"`
}

type educationInput struct {
	Institution  string `json:"institution" binding:"required,max=255"`
	Degree       string `json:"degree" binding:"required,max=255"`
	FieldOfStudy string `json:"field_of_study" binding:"omitempty,max=255"`
	StartDate    string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate      string `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
	Current      bool   `json:"current"`
	Description  string `json:"description"`
}

type certificationInput struct {
	Name           string `json:"name" binding:"required,max=255"`
	Issuer         string `json:"issuer" binding:"required,max=255"`
	DateObtained   string `json:"date_obtained" binding:"required,datetime=2006-01-02"`
	ExpirationDate string `json:"expiration_date" binding:"omitempty,datetime=2006-01-02"`
}

type languageInput struct {
	Language    string `json:"language" binding:"required,max=100"`
	Proficiency string `json:"proficiency" binding:"required,oneof=beginner intermediate advanced fluent native"`
}

type preferencesInput struct {
	MinSalary      *float64 `json:"min_salary" binding:"omitempty,min=0"`
	MaxSalary      *float64 `json:"max_salary" binding:"omitempty,min=0"`
	SalaryCurrency string   `json:"salary_currency" binding:"omitempty,len=3"`
	Locations      []string `json:"locations"`
	Remote         *bool    `json:"remote"`
}

// profileRequest backs both create and update; absent fields are left untouched on update.
type profileRequest struct {
	Name           *string               `json:"name" binding:"omitempty,min=1,max=255"`
	Email          *string               `json:"email" binding:"omitempty,email,max=255"`
	Phone          *string               `json:"phone" binding:"omitempty,max=20"`
	Location       *string               `json:"location" binding:"omitempty,max=255"`
	Title          *string               `json:"title" binding:"omitempty,min=1,max=255"`
	Summary        *string               `json:"summary"`
	Skills         []string              `json:"skills"`
	Experience     []experienceInput     `json:"experience" binding:"omitempty,dive"`
	Education      []educationInput      `json:"education" binding:"omitempty,dive"`
	Certifications []certificationInput  `json:"certifications" binding:"omitempty,dive"`
	Languages      []languageInput       `json:"languages" binding:"omitempty,dive"`
	ResumeURL      *string               `json:"resume_url" binding:"omitempty,url,max=512"`
	LinkedinURL    *string               `json:"linkedin_url" binding:"omitempty,url,max=512"`
	GithubURL      *string               `json:"github_url" binding:"omitempty,url,max=512"`
	WebsiteURL     *string               `json:"website_url" binding:"omitempty,url,max=512"`
	IsActive       *bool                 `json:"is_active"`
	Preferences    *preferencesInput     `json:"preferences"`
}

func (r profileRequest) requireCreate() error {
	fields := errcode.FieldErrors{}
	if r.Name == nil || *r.Name == "" {
		fields.Add("name", "The name field is required.")
	}
	if r.Email == nil || *r.Email == "" {
		fields.Add("email", "The email field is required.")
	}
	if r.Title == nil || *r.Title == "" {
		fields.Add("title", "The title field is required.")
	}
	return fields.Err()
}

func (r profileRequest) validate() error {
	fields := errcode.FieldErrors{}
	if p := r.Preferences; p != nil && p.MinSalary != nil && p.MaxSalary != nil && *p.MaxSalary < *p.MinSalary {
		fields.Add("preferences.max_salary", "The preferences max salary must be greater than or equal to the min salary.")
	}
	return fields.Err()
}

func (r profileRequest) apply(p *database.UserProfile) {
	setString(&p.Name, r.Name)
	setString(&p.Email, r.Email)
	setString(&p.Phone, r.Phone)
	setString(&p.Location, r.Location)
	setString(&p.Title, r.Title)
	setString(&p.Summary, r.Summary)
	setString(&p.ResumeURL, r.ResumeURL)
	setString(&p.LinkedinURL, r.LinkedinURL)
	setString(&p.GithubURL, r.GithubURL)
	setString(&p.WebsiteURL, r.WebsiteURL)
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	if r.Skills != nil {
		p.Skills = trimmed(r.Skills)
	}
	if r.Experience != nil {
		items := make([]database.Experience, 0, len(r.Experience))
		for _, e := range r.Experience {
			items = append(items, database.Experience(e))
		}
		p.Experience = items
	}
	if r.Education != nil {
		items := make([]database.Education, 0, len(r.Education))
		for _, e := range r.Education {
			items = append(items, database.Education(e))
		}
		p.Education = items
	}
	if r.Certifications != nil {
		items := make([]database.Certification, 0, len(r.Certifications))
		for _, c := range r.Certifications {
			items = append(items, database.Certification(c))
		}
		p.Certifications = items
	}
	if r.Languages != nil {
		items := make([]database.Language, 0, len(r.Languages))
		for _, l := range r.Languages {
			items = append(items, database.Language(l))
		}
		p.Languages = items
	}
	if r.Preferences != nil {
		prefs := database.Preferences(*r.Preferences)
		prefs.Locations = trimmed(prefs.Locations)
		p.Preferences = datatypes.NewJSONType(prefs)
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

type profileListQuery struct {
	pageQuery
	Search   string `form:"search"`
	IsActive *bool  `form:"is_active"`
}

func (h *ProfileHandler) List(c *gin.Context) {
	var q profileListQuery
	if !bindQuery(c, &q) {
		return
	}
	items, page, err := h.store.Profiles.List(c.Request.Context(), store.ProfileFilter{Search: q.Search, IsActive: q.IsActive}, q.page(profilesPerPage))
	if err != nil {
		respondError(c, err, "list user profiles")
		return
	}
	respondPage(c, items, page, "User profiles retrieved successfully")
}

func (h *ProfileHandler) Create(c *gin.Context) {
	var req profileRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := req.requireCreate(); err != nil {
		respondError(c, err, "create the user profile")
		return
	}
	if err := req.validate(); err != nil {
		respondError(c, err, "create the user profile")
		return
	}

	profile := database.UserProfile{IsActive: true}
	req.apply(&profile)
	if err := h.store.Profiles.Create(c.Request.Context(), &profile); err != nil {
		respondError(c, err, "create the user profile")
		return
	}
	respond(c, http.StatusCreated, profile, "User profile created successfully")
}

func (h *ProfileHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "User profile")
	if !ok {
		return
	}
	profile, err := h.store.Profiles.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "load the user profile")
		return
	}
	respond(c, http.StatusOK, profile, "User profile retrieved successfully")
}

func (h *ProfileHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "User profile")
	if !ok {
		return
	}
	var req profileRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := req.validate(); err != nil {
		respondError(c, err, "update the user profile")
		return
	}

	ctx := c.Request.Context()
	profile, err := h.store.Profiles.Get(ctx, id)
	if err != nil {
		respondError(c, err, "update the user profile")
		return
	}
	req.apply(profile)
	if err := h.store.Profiles.Update(ctx, profile); err != nil {
		respondError(c, err, "update the user profile")
		return
	}
	respond(c, http.StatusOK, profile, "User profile updated successfully")
}

func (h *ProfileHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "User profile")
	if !ok {
		return
	}
	if err := h.store.Profiles.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "delete the user profile")
		return
	}
	respond(c, http.StatusOK, []any{}, "User profile deleted successfully")
}
