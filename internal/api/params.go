package api

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"jobcompass/internal/errcode"
	"jobcompass/internal/store"
)

// TaskEnqueuer is the part of asynq.Client the handlers use.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// pageQuery is shared by every list endpoint.
type pageQuery struct {
	Page    int `form:"page" binding:"omitempty,min=1"`
	PerPage int `form:"per_page" binding:"omitempty,min=1,max=100"`
}

func (q pageQuery) page(defaultPerPage int) store.Page {
	return store.NewPage(q.Page, q.PerPage, defaultPerPage)
}

// pathID reads :id; a malformed id answers 404 for entity, like a missing row.
func pathID(c *gin.Context, entity string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, errcode.NotFound(entity), "")
		return 0, false
	}
	return uint(id), true
}

// enqueued is the 202 body of endpoints that hand work to the worker.
type enqueued struct {
	TaskID        string `json:"task_id"`
	Queue         string `json:"queue"`
	CorrelationID string `json:"correlation_id"`
}

// parseDate accepts RFC 3339, "Y-m-d H:i:s" and "Y-m-d". Blank input is a nil time.
func parseDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	return nil, false
}

func trimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
