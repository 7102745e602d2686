package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTaskOutcome(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err  error
		want string
	}{
		"nil":        {nil, TaskOK},
		"transient":  {errors.New("timeout"), TaskRetry},
		"skip retry": {fmt.Errorf("board not found: %w", asynq.SkipRetry), TaskSkipped},
	}
	for name, tc := range cases {
		if got := TaskOutcome(tc.err); got != tc.want {
			t.Fatalf("%s: got %q, want %q", name, got, tc.want)
		}
	}
}

func TestAsynqMetricsMiddlewareCounts(t *testing.T) {
	const taskType = "test:metrics"
	handler := AsynqMetricsMiddleware()(asynq.HandlerFunc(func(context.Context, *asynq.Task) error {
		return fmt.Errorf("bad payload: %w", asynq.SkipRetry)
	}))

	before := testutil.ToFloat64(tasksTotal.WithLabelValues(taskType, TaskSkipped))
	_ = handler.ProcessTask(context.Background(), asynq.NewTask(taskType, nil))
	after := testutil.ToFloat64(tasksTotal.WithLabelValues(taskType, TaskSkipped))

	if after-before != 1 {
		t.Fatalf("skipped counter moved by %v, want 1", after-before)
	}
	if v := testutil.ToFloat64(tasksRunning.WithLabelValues(taskType)); v != 0 {
		t.Fatalf("running gauge = %v after completion", v)
	}
}

func TestGinMiddlewareLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/v1/listings/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/listings/:id", "404")
	before := testutil.ToFloat64(counter)
	for _, path := range []string{"/v1/listings/1", "/v1/listings/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Fatalf("route counter moved by %v, want 2", got)
	}

	unmatched := httpRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")
	before = testutil.ToFloat64(unmatched)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-login.php", nil))
	if got := testutil.ToFloat64(unmatched) - before; got != 1 {
		t.Fatalf("unmatched counter moved by %v, want 1", got)
	}

	health := httpRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200")
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if v := testutil.ToFloat64(health); v != 0 {
		t.Fatalf("/health should not be measured, counter = %v", v)
	}
}

func TestStatusClass(t *testing.T) {
	t.Parallel()
	for status, want := range map[int]string{200: "2xx", 201: "2xx", 302: "3xx", 422: "4xx", 502: "5xx"} {
		if got := statusClass(status); got != want {
			t.Fatalf("statusClass(%d) = %q, want %q", status, got, want)
		}
	}
}
