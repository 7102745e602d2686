package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"jobcompass/internal/config"
	"jobcompass/internal/errcode"
	"jobcompass/internal/logger"
)

// BrightDataClient calls the Bright Data LinkedIn scraper API.
type BrightDataClient struct {
	httpClient    *http.Client
	apiURL        string
	username      string
	password      string
	customer      string
	zone          string
	retryAttempts int
	retryDelay    time.Duration
	logger        *zap.Logger
}

func NewBrightDataClient(cfg config.BrightDataConfig, log *zap.Logger) *BrightDataClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	zone := cfg.Zone
	if zone == "" {
		zone = "linkedin"
	}
	return &BrightDataClient{
		httpClient:    &http.Client{Timeout: timeout},
		apiURL:        strings.TrimRight(cfg.APIURL, "/"),
		username:      strings.TrimSpace(cfg.Username),
		password:      cfg.Password,
		customer:      cfg.Customer,
		zone:          zone,
		retryAttempts: attempts,
		retryDelay:    cfg.RetryDelay,
		logger:        logger.OrNop(log).With(zap.String("provider", TypeBrightData)),
	}
}

func (c *BrightDataClient) Name() string { return TypeBrightData }

func (c *BrightDataClient) Configured() bool {
	return c.username != "" && c.password != ""
}

type brightDataSearchPayload struct {
	Customer string         `json:"customer"`
	Zone     string         `json:"zone"`
	Entity   string         `json:"entity"`
	Query    string         `json:"query"`
	Location string         `json:"location"`
	Country  string         `json:"country"`
	Page     int            `json:"page"`
	Limit    int            `json:"limit"`
	Filters  map[string]any `json:"filters"`
}

type brightDataSearchResponse struct {
	Results []json.RawMessage `json:"results"`
}

type brightDataJob struct {
	JobID          string          `json:"job_id"`
	Title          string          `json:"title"`
	Company        brightCompany   `json:"company"`
	Location       json.RawMessage `json:"location"`
	JobType        json.RawMessage `json:"job_type"`
	Description    string          `json:"description"`
	PostedAt       string          `json:"posted_at"`
	URL            string          `json:"url"`
	SeniorityLevel string          `json:"seniority_level"`
	EmploymentType string          `json:"employment_type"`
	JobFunction    string          `json:"job_function"`
	Industries     []string        `json:"industries"`
	Salary         *brightSalary   `json:"salary"`
}

type brightCompany struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Website string `json:"website"`
}

type brightSalary struct {
	Min      *float64 `json:"min"`
	Max      *float64 `json:"max"`
	Currency string   `json:"currency"`
	Period   string   `json:"period"`
}

type brightLocation struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// Search posts a LinkedIn search to /scraper/linkedin/search.
func (c *BrightDataClient) Search(ctx context.Context, req Request) ([]Result, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: Bright Data credentials are not configured", ErrNotConfigured)
	}

	page := req.Page
	if page <= 0 {
		page = 1
	}
	limit := req.MaxResults
	if limit <= 0 {
		limit = 10
	}

	payload, err := json.Marshal(brightDataSearchPayload{
		Customer: c.customer,
		Zone:     c.zone,
		Entity:   "search",
		Query:    req.Query,
		Location: req.Location,
		Country:  "us",
		Page:     page,
		Limit:    limit,
		Filters:  map[string]any{},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal bright data payload: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/scraper/linkedin/search", payload)
	if err != nil {
		return nil, err
	}

	var decoded brightDataSearchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, errcode.Upstream("bright data search failed", fmt.Errorf("decode response: %w", err))
	}

	results := make([]Result, 0, len(decoded.Results))
	for _, raw := range decoded.Results {
		var job brightDataJob
		if err := json.Unmarshal(raw, &job); err != nil {
			c.logger.Warn("skip undecodable bright data result", zap.Error(err))
			continue
		}
		res := job.result(raw)
		// search hits sometimes omit the posting body
		if strings.TrimSpace(res.Content) == "" && res.ExternalID != "" {
			full, err := c.JobDetails(ctx, res.ExternalID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				c.logger.Warn("bright data job details failed", zap.String("job_id", res.ExternalID), zap.Error(err))
			} else if strings.TrimSpace(full.Content) != "" {
				res = *full
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// JobDetails fetches one LinkedIn posting by id.
func (c *BrightDataClient) JobDetails(ctx context.Context, jobID string) (*Result, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: Bright Data credentials are not configured", ErrNotConfigured)
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, errcode.Invalid("job_id", "The job id field is required.")
	}

	body, err := c.do(ctx, http.MethodGet, "/scraper/linkedin/job/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}

	var job brightDataJob
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, errcode.Upstream("bright data job details failed", fmt.Errorf("decode response: %w", err))
	}
	res := job.result(body)
	return &res, nil
}

// do retries transport failures, 429 and 5xx responses with a linear delay.
func (c *BrightDataClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("build bright data request: %w", err)
		}
		req.SetBasicAuth(c.username, c.password)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		body, status, err := c.roundTrip(req)
		switch {
		case err != nil:
			lastErr = err
		case status == http.StatusTooManyRequests || status >= 500:
			lastErr = fmt.Errorf("status %d: %s", status, truncate(body))
		case status < 200 || status > 299:
			return nil, errcode.Upstream("bright data request failed", fmt.Errorf("status %d: %s", status, truncate(body)))
		default:
			return body, nil
		}

		if attempt == c.retryAttempts {
			break
		}
		c.logger.Warn("bright data request failed, retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		select {
		case <-time.After(c.retryDelay * time.Duration(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, errcode.Upstream("bright data request failed", lastErr)
}

func (c *BrightDataClient) roundTrip(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (j brightDataJob) result(raw []byte) Result {
	meta := map[string]any{
		"company":          strings.TrimSpace(j.Company.Name),
		"location":         decodeLocation(j.Location),
		"job_type":         decodeJobType(j.JobType, j.EmploymentType),
		"experience_level": seniorityLevel(j.SeniorityLevel),
		"published_date":   j.PostedAt,
		"categories":       j.Industries,
	}
	if j.Salary != nil {
		if j.Salary.Min != nil {
			meta["salary_min"] = *j.Salary.Min
		}
		if j.Salary.Max != nil {
			meta["salary_max"] = *j.Salary.Max
		}
		meta["salary_currency"] = j.Salary.Currency
		meta["salary_period"] = j.Salary.Period
	}
	if website := firstNonBlank(j.Company.Website, j.Company.URL); website != "" {
		meta["company_website"] = website
	}

	return Result{
		Title:      j.Title,
		URL:        j.URL,
		Content:    j.Description,
		ExternalID: j.JobID,
		Metadata:   meta,
		Raw:        json.RawMessage(raw),
	}
}

func decodeLocation(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var loc brightLocation
	if err := json.Unmarshal(raw, &loc); err != nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{loc.City, loc.State, loc.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

var jobTypeAliases = map[string]string{
	"full-time":  "full-time",
	"full time":  "full-time",
	"full_time":  "full-time",
	"part-time":  "part-time",
	"part time":  "part-time",
	"part_time":  "part-time",
	"contract":   "contract",
	"temporary":  "temporary",
	"internship": "internship",
	"volunteer":  "volunteer",
	"per-diem":   "per-diem",
}

func decodeJobType(raw json.RawMessage, employmentType string) string {
	var candidates []string
	if len(raw) > 0 {
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil {
			candidates = list
		} else {
			var single string
			if err := json.Unmarshal(raw, &single); err == nil {
				candidates = []string{single}
			}
		}
	}
	candidates = append(candidates, employmentType)

	for _, c := range candidates {
		if mapped, ok := jobTypeAliases[strings.ToLower(strings.TrimSpace(c))]; ok {
			return mapped
		}
	}
	return ""
}

func seniorityLevel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, " level")
	switch s {
	case "internship", "entry", "associate", "mid-senior", "senior", "director", "executive":
		return s
	default:
		return ""
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
