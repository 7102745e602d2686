package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobcompass/internal/ingest"
	"jobcompass/internal/listing"
	"jobcompass/internal/search"
)

// Previewer runs a search without persisting anything.
type Previewer interface {
	Preview(ctx context.Context, req ingest.PreviewRequest) (*ingest.Preview, error)
}

type SearchHandler struct {
	previewer Previewer
	registry  *search.Registry
}

func NewSearchHandler(previewer Previewer, registry *search.Registry) *SearchHandler {
	return &SearchHandler{previewer: previewer, registry: registry}
}

type searchRequest struct {
	Type            string   `json:"type" binding:"omitempty,max=32"`
	Query           string   `json:"query" binding:"omitempty,max=500"`
	Keywords        string   `json:"keywords" binding:"omitempty,max=255"`
	JobTitle        string   `json:"job_title" binding:"omitempty,max=255"`
	CompanyName     string   `json:"company_name" binding:"omitempty,max=255"`
	Location        string   `json:"location" binding:"omitempty,max=255"`
	JobType         string   `json:"job_type" binding:"omitempty,max=32"`
	ExperienceLevel string   `json:"experience_level" binding:"omitempty,max=32"`
	Remote          *bool    `json:"remote"`
	Skills          []string `json:"skills"`
	Domains         []string `json:"domains"`
	MaxResults      int      `json:"max_results" binding:"omitempty,min=1,max=50"`
}

// Search previews normalized, batch-deduplicated results.
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if !bindJSON(c, &req) {
		return
	}
	preview, err := h.previewer.Preview(c.Request.Context(), ingest.PreviewRequest{
		Type: req.Type,
		Query: listing.Query{
			Keywords:        req.Keywords,
			JobTitle:        req.JobTitle,
			CompanyName:     req.CompanyName,
			Location:        req.Location,
			JobType:         req.JobType,
			ExperienceLevel: req.ExperienceLevel,
			Remote:          req.Remote,
			Skills:          trimmed(req.Skills),
		},
		RawQuery:   req.Query,
		Domains:    trimmed(req.Domains),
		MaxResults: req.MaxResults,
	})
	if err != nil {
		respondError(c, err, "search for jobs")
		return
	}
	respond(c, http.StatusOK, preview, "Search completed successfully")
}

type providerStatus struct {
	Providers map[string]bool `json:"providers"`
	Types     []string        `json:"types"`
}

// Health reports which providers have credentials.
func (h *SearchHandler) Health(c *gin.Context) {
	respond(c, http.StatusOK, providerStatus{Providers: h.registry.Status(), Types: h.registry.Types()}, "Search providers status retrieved successfully")
}
