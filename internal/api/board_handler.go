package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"

	"jobcompass/internal/api/middleware"
	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
	"jobcompass/internal/search"
	"jobcompass/internal/store"
	"jobcompass/internal/tasks"
)

const (
	boardsPerPage          = 15
	defaultSearchFrequency = 24
)

type BoardHandler struct {
	store    *store.Store
	registry *search.Registry
	enqueuer TaskEnqueuer
}

func NewBoardHandler(st *store.Store, registry *search.Registry, enqueuer TaskEnqueuer) *BoardHandler {
	return &BoardHandler{store: st, registry: registry, enqueuer: enqueuer}
}

type boardRequest struct {
	Name                   *string                    `json:"name" binding:"omitempty,min=1,max=255"`
	URL                    *string                    `json:"url" binding:"omitempty,url,max=512"`
	Type                   *string                    `json:"type" binding:"omitempty,max=32"`
	Description            *string                    `json:"description"`
	RequiresAuthentication *bool                      `json:"requires_authentication"`
	AuthenticationDetails  *database.BoardCredentials `json:"authentication_details"`
	SearchParameters       *database.SearchParameters `json:"search_parameters"`
	IsActive               *bool                      `json:"is_active"`
	SearchFrequencyHours   *int                       `json:"search_frequency_hours" binding:"omitempty,min=1,max=744"`
}

func (r boardRequest) requireCreate() error {
	fields := errcode.FieldErrors{}
	if r.Name == nil || *r.Name == "" {
		fields.Add("name", "The name field is required.")
	}
	if r.URL == nil || *r.URL == "" {
		fields.Add("url", "The url field is required.")
	}
	return fields.Err()
}

func (r boardRequest) apply(b *database.Board) {
	setString(&b.Name, r.Name)
	setString(&b.URL, r.URL)
	setString(&b.Description, r.Description)
	if r.Type != nil {
		b.Type = strings.ToLower(strings.TrimSpace(*r.Type))
	}
	if r.RequiresAuthentication != nil {
		b.RequiresAuthentication = *r.RequiresAuthentication
	}
	if r.AuthenticationDetails != nil {
		b.AuthenticationDetails = datatypes.NewJSONType(*r.AuthenticationDetails)
	}
	if r.SearchParameters != nil {
		b.SearchParameters = datatypes.NewJSONType(*r.SearchParameters)
	}
	if r.IsActive != nil {
		b.IsActive = *r.IsActive
	}
	if r.SearchFrequencyHours != nil {
		b.SearchFrequencyHours = *r.SearchFrequencyHours
	}
}

// check validates the merged board: a known type, and credentials when authentication is required.
func (h *BoardHandler) check(b *database.Board) error {
	fields := errcode.FieldErrors{}
	if _, err := h.registry.For(b.Type); err != nil {
		fields.Add("type", "The selected type is invalid.")
	}
	if b.RequiresAuthentication {
		creds := b.AuthenticationDetails.Data()
		if creds.Username == "" {
			fields.Add("authentication_details.username", "The authentication details username field is required when requires authentication is true.")
		}
		if creds.Password == "" {
			fields.Add("authentication_details.password", "The authentication details password field is required when requires authentication is true.")
		}
	}
	return fields.Err()
}

type boardListQuery struct {
	pageQuery
	Type     string `form:"type"`
	IsActive *bool  `form:"is_active"`
}

func (h *BoardHandler) List(c *gin.Context) {
	var q boardListQuery
	if !bindQuery(c, &q) {
		return
	}
	items, page, err := h.store.Boards.List(c.Request.Context(), store.BoardFilter{Type: q.Type, IsActive: q.IsActive}, q.page(boardsPerPage))
	if err != nil {
		respondError(c, err, "list boards")
		return
	}
	respondPage(c, items, page, "Boards retrieved successfully")
}

func (h *BoardHandler) Create(c *gin.Context) {
	var req boardRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := req.requireCreate(); err != nil {
		respondError(c, err, "create the board")
		return
	}

	board := database.Board{IsActive: true, SearchFrequencyHours: defaultSearchFrequency}
	req.apply(&board)
	if board.Type == "" {
		board.Type = search.TypeTavily
	}
	if err := h.check(&board); err != nil {
		respondError(c, err, "create the board")
		return
	}
	if err := h.store.Boards.Create(c.Request.Context(), &board); err != nil {
		respondError(c, err, "create the board")
		return
	}
	respond(c, http.StatusCreated, board, "Board created successfully")
}

func (h *BoardHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "Board")
	if !ok {
		return
	}
	board, err := h.store.Boards.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "load the board")
		return
	}
	respond(c, http.StatusOK, board, "Board retrieved successfully")
}

func (h *BoardHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "Board")
	if !ok {
		return
	}
	var req boardRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	board, err := h.store.Boards.Get(ctx, id)
	if err != nil {
		respondError(c, err, "update the board")
		return
	}
	req.apply(board)
	if err := h.check(board); err != nil {
		respondError(c, err, "update the board")
		return
	}
	if err := h.store.Boards.Update(ctx, board); err != nil {
		respondError(c, err, "update the board")
		return
	}
	respond(c, http.StatusOK, board, "Board updated successfully")
}

func (h *BoardHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "Board")
	if !ok {
		return
	}
	if err := h.store.Boards.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "delete the board")
		return
	}
	respond(c, http.StatusOK, []any{}, "Board deleted successfully")
}

type ingestRequest struct {
	SearchCriteriaID *uint  `json:"search_criteria_id"`
	Query            string `json:"query" binding:"omitempty,max=500"`
	MaxResults       int    `json:"max_results" binding:"omitempty,min=1,max=50"`
	UserProfileID    uint   `json:"user_profile_id"`
}

// Ingest queues a scrape of the board. The body is optional.
func (h *BoardHandler) Ingest(c *gin.Context) {
	id, ok := pathID(c, "Board")
	if !ok {
		return
	}
	var req ingestRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	board, err := h.store.Boards.Get(ctx, id)
	if err != nil {
		respondError(c, err, "queue the ingestion")
		return
	}
	if req.SearchCriteriaID == nil && strings.TrimSpace(req.Query) == "" {
		respondError(c, errcode.Invalid("query", "The query field is required when search criteria id is not present."), "queue the ingestion")
		return
	}
	if req.SearchCriteriaID != nil {
		criteria, err := h.store.Criteria.Get(ctx, *req.SearchCriteriaID)
		if errcode.IsNotFound(err) {
			respondError(c, errcode.Invalid("search_criteria_id", "The selected search criteria id is invalid."), "queue the ingestion")
			return
		}
		if err != nil {
			respondError(c, err, "queue the ingestion")
			return
		}
		if req.UserProfileID == 0 {
			req.UserProfileID = criteria.UserProfileID
		}
	}

	correlationID := middleware.GetCorrelationID(c)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	task, err := tasks.NewIngestListingsTask(tasks.IngestListingsPayload{
		BoardID:          board.ID,
		SearchCriteriaID: req.SearchCriteriaID,
		Query:            req.Query,
		MaxResults:       req.MaxResults,
		UserProfileID:    req.UserProfileID,
		CorrelationID:    correlationID,
	})
	if err != nil {
		respondError(c, err, "queue the ingestion")
		return
	}
	info, err := h.enqueuer.EnqueueContext(ctx, task, asynq.MaxRetry(3))
	if err != nil {
		respondError(c, errcode.Upstream("enqueue ingest task", err), "queue the ingestion")
		return
	}
	respond(c, http.StatusAccepted, enqueued{TaskID: info.ID, Queue: info.Queue, CorrelationID: correlationID}, "Ingestion queued")
}
