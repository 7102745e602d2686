package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"jobcompass/internal/errcode"
	"jobcompass/internal/store"
)

const (
	ingestRunsPerPage = 20
	archiveLinkTTL    = 15 * time.Minute
)

// ArchiveLinker is the part of storage.Client serving archived search batches.
type ArchiveLinker interface {
	Exists(ctx context.Context, key string) (bool, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type IngestRunHandler struct {
	store    *store.Store
	archives ArchiveLinker
}

// NewIngestRunHandler accepts a nil archives when object storage is disabled.
func NewIngestRunHandler(st *store.Store, archives ArchiveLinker) *IngestRunHandler {
	return &IngestRunHandler{store: st, archives: archives}
}

type ingestRunListQuery struct {
	pageQuery
	BoardID uint   `form:"board_id"`
	Status  string `form:"status" binding:"omitempty,oneof=running completed failed"`
}

func (h *IngestRunHandler) List(c *gin.Context) {
	var q ingestRunListQuery
	if !bindQuery(c, &q) {
		return
	}
	items, page, err := h.store.IngestRuns.List(c.Request.Context(), store.IngestRunFilter{BoardID: q.BoardID, Status: q.Status}, q.page(ingestRunsPerPage))
	if err != nil {
		respondError(c, err, "list ingest runs")
		return
	}
	respondPage(c, items, page, "Ingest runs retrieved successfully")
}

func (h *IngestRunHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "Ingest run")
	if !ok {
		return
	}
	run, err := h.store.IngestRuns.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "load the ingest run")
		return
	}
	respond(c, http.StatusOK, run, "Ingest run retrieved successfully")
}

type archiveLink struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ArchiveLink presigns a download of the raw provider batch behind a run.
func (h *IngestRunHandler) ArchiveLink(c *gin.Context) {
	const action = "create the archive link"
	id, ok := pathID(c, "Ingest run")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	run, err := h.store.IngestRuns.Get(ctx, id)
	if err != nil {
		respondError(c, err, action)
		return
	}
	if h.archives == nil || run.ArchiveKey == "" {
		respondError(c, errcode.NotFound("Archive"), action)
		return
	}

	exists, err := h.archives.Exists(ctx, run.ArchiveKey)
	if err != nil {
		respondError(c, errcode.Upstream("stat archive", err), action)
		return
	}
	if !exists {
		respondError(c, errcode.NotFound("Archive"), action)
		return
	}
	link, err := h.archives.PresignedURL(ctx, run.ArchiveKey, archiveLinkTTL)
	if err != nil {
		respondError(c, errcode.Upstream("presign archive", err), action)
		return
	}
	respond(c, http.StatusOK, archiveLink{Key: run.ArchiveKey, URL: link, ExpiresAt: time.Now().UTC().Add(archiveLinkTTL)}, "Archive link created successfully")
}
