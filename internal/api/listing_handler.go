package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
	"jobcompass/internal/listing"
	"jobcompass/internal/store"
)

const listingsPerPage = 20

type ListingHandler struct {
	store *store.Store
}

func NewListingHandler(st *store.Store) *ListingHandler {
	return &ListingHandler{store: st}
}

type listingRequest struct {
	BoardID         uint     `json:"board_id" binding:"required"`
	ExternalID      string   `json:"external_id" binding:"required,max=191"`
	Title           string   `json:"title" binding:"required,max=512"`
	Description     string   `json:"description" binding:"required"`
	CompanyName     string   `json:"company_name" binding:"required,max=255"`
	CompanyWebsite  string   `json:"company_website" binding:"omitempty,url,max=512"`
	Location        string   `json:"location" binding:"required,max=255"`
	IsRemote        bool     `json:"is_remote"`
	JobType         string   `json:"job_type" binding:"omitempty,max=32"`
	ExperienceLevel string   `json:"experience_level" binding:"omitempty,max=32"`
	SalaryMin       *float64 `json:"salary_min" binding:"omitempty,min=0"`
	SalaryMax       *float64 `json:"salary_max" binding:"omitempty,min=0"`
	SalaryCurrency  string   `json:"salary_currency" binding:"omitempty,len=3"`
	SalaryPeriod    string   `json:"salary_period" binding:"omitempty,max=16"`
	Skills          []string `json:"skills"`
	Categories      []string `json:"categories"`
	ApplyURL        string   `json:"apply_url" binding:"omitempty,url,max=1024"`
	URL             string   `json:"url" binding:"required,url,max=1024"`
	Source          string   `json:"source" binding:"omitempty,max=255"`
	PostedAt        string   `json:"posted_at"`
	ExpiresAt       string   `json:"expires_at"`
}

func (r listingRequest) build() (database.Listing, error) {
	fields := errcode.FieldErrors{}
	postedAt, ok := parseDate(r.PostedAt)
	if !ok {
		fields.Add("posted_at", "The posted at is not a valid date.")
	}
	expiresAt, ok := parseDate(r.ExpiresAt)
	if !ok {
		fields.Add("expires_at", "The expires at is not a valid date.")
	}
	if postedAt != nil && expiresAt != nil && !expiresAt.After(*postedAt) {
		fields.Add("expires_at", "The expires at must be a date after posted at.")
	}
	if r.SalaryMin != nil && r.SalaryMax != nil && *r.SalaryMax < *r.SalaryMin {
		fields.Add("salary_max", "The salary max must be greater than or equal to salary min.")
	}
	canonical, err := listing.CanonicalURL(r.URL)
	if err != nil {
		fields.Add("url", "The url format is invalid.")
	}
	if err := fields.Err(); err != nil {
		return database.Listing{}, err
	}

	return database.Listing{
		BoardID:         r.BoardID,
		ExternalID:      r.ExternalID,
		Title:           strings.TrimSpace(r.Title),
		Description:     listing.CleanDescription(r.Description),
		CompanyName:     r.CompanyName,
		CompanyWebsite:  r.CompanyWebsite,
		Location:        r.Location,
		IsRemote:        r.IsRemote,
		JobType:         r.JobType,
		ExperienceLevel: r.ExperienceLevel,
		SalaryMin:       r.SalaryMin,
		SalaryMax:       r.SalaryMax,
		SalaryCurrency:  strings.ToUpper(r.SalaryCurrency),
		SalaryPeriod:    r.SalaryPeriod,
		Skills:          trimmed(r.Skills),
		Categories:      trimmed(r.Categories),
		ApplyURL:        r.ApplyURL,
		URL:             canonical,
		Source:          r.Source,
		PostedAt:        postedAt,
		ExpiresAt:       expiresAt,
		IsActive:        true,
	}, nil
}

type listingListQuery struct {
	pageQuery
	BoardID         uint   `form:"board_id"`
	Search          string `form:"search"`
	Location        string `form:"location"`
	JobType         string `form:"job_type"`
	ExperienceLevel string `form:"experience_level"`
	IsRemote        *bool  `form:"is_remote"`
	IsActive        *bool  `form:"is_active"`
}

func (h *ListingHandler) List(c *gin.Context) {
	var q listingListQuery
	if !bindQuery(c, &q) {
		return
	}
	filter := store.ListingFilter{
		BoardID:         q.BoardID,
		Search:          q.Search,
		Location:        q.Location,
		JobType:         q.JobType,
		ExperienceLevel: q.ExperienceLevel,
		IsRemote:        q.IsRemote,
		IsActive:        q.IsActive,
	}
	items, page, err := h.store.Listings.List(c.Request.Context(), filter, q.page(listingsPerPage))
	if err != nil {
		respondError(c, err, "list listings")
		return
	}
	respondPage(c, items, page, "Listings retrieved successfully")
}

func (h *ListingHandler) Create(c *gin.Context) {
	var req listingRequest
	if !bindJSON(c, &req) {
		return
	}
	l, err := req.build()
	if err != nil {
		respondError(c, err, "create the listing")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.Boards.Get(ctx, l.BoardID); err != nil {
		if errcode.IsNotFound(err) {
			err = errcode.Invalid("board_id", "The selected board id is invalid.")
		}
		respondError(c, err, "create the listing")
		return
	}
	if err := h.store.Listings.Create(ctx, &l); err != nil {
		respondError(c, err, "create the listing")
		return
	}
	respond(c, http.StatusCreated, l, "Listing created successfully")
}

func (h *ListingHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "Listing")
	if !ok {
		return
	}
	l, err := h.store.Listings.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "load the listing")
		return
	}
	respond(c, http.StatusOK, l, "Listing retrieved successfully")
}

func (h *ListingHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "Listing")
	if !ok {
		return
	}
	if err := h.store.Listings.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "delete the listing")
		return
	}
	respond(c, http.StatusOK, []any{}, "Listing deleted successfully")
}
