package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"jobcompass/internal/config"
	"jobcompass/internal/errcode"
)

func TestTavilySearch(t *testing.T) {
	t.Parallel()

	var got tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("authorization header = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"title":"Go Engineer","url":"https://jobs.example.com/1","content":"short","raw_content":"full description","score":0.9,"published_date":"2024-02-01"},
			{"title":"SRE","url":"https://jobs.example.com/2","content":"only snippet"}
		]}`))
	}))
	t.Cleanup(srv.Close)

	client := NewTavilyClient(config.TavilyConfig{APIKey: "secret", APIURL: srv.URL, MaxResults: 5}, nil)
	results, err := client.Search(context.Background(), Request{Query: "golang"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if got.Query != "golang" || got.SearchDepth != "advanced" || !got.IncludeRawContent || got.MaxResults != 5 {
		t.Fatalf("unexpected request body %+v", got)
	}
	if len(got.IncludeDomains) == 0 || len(got.ExcludeDomains) == 0 {
		t.Fatalf("default domain lists must be sent")
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Content != "full description" || results[1].Content != "only snippet" {
		t.Fatalf("content mapping wrong: %q / %q", results[0].Content, results[1].Content)
	}
	if results[0].Metadata["published_date"] != "2024-02-01" {
		t.Fatalf("published date missing: %v", results[0].Metadata)
	}
	if len(results[0].Raw) == 0 {
		t.Fatalf("raw payload must be kept")
	}
}

func TestTavilyMissingKey(t *testing.T) {
	t.Parallel()

	client := NewTavilyClient(config.TavilyConfig{APIURL: "http://127.0.0.1:1"}, nil)
	if client.Configured() {
		t.Fatalf("client without key must not be configured")
	}
	_, err := client.Search(context.Background(), Request{Query: "go"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestTavilyUpstreamFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := NewTavilyClient(config.TavilyConfig{APIKey: "k", APIURL: srv.URL}, nil)
	_, err := client.Search(context.Background(), Request{Query: "go"})
	if !errcode.IsUpstream(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("status should be kept in the error: %v", err)
	}
}

func brightDataConfig(url string) config.BrightDataConfig {
	return config.BrightDataConfig{
		APIURL:        url,
		Username:      "user",
		Password:      "pass",
		Customer:      "acme",
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
}

func TestBrightDataSearchRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var payload brightDataSearchPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "user" || pass != "pass" {
			t.Errorf("basic auth missing")
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"results":[{
			"job_id":"li-1",
			"title":"Backend Engineer",
			"company":{"name":"Initech","website":"https://initech.io"},
			"location":{"city":"Austin","state":"TX","country":"US"},
			"job_type":["Full Time"],
			"seniority_level":"Mid-Senior level",
			"description":"Go services",
			"posted_at":"2024-01-10",
			"url":"https://www.linkedin.com/jobs/view/1",
			"industries":["Software"],
			"salary":{"min":100000,"max":130000,"currency":"usd","period":"year"}
		}]}`))
	}))
	t.Cleanup(srv.Close)

	client := NewBrightDataClient(brightDataConfig(srv.URL), nil)
	results, err := client.Search(context.Background(), Request{Query: "go", Location: "Austin", MaxResults: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
	if payload.Customer != "acme" || payload.Zone != "linkedin" || payload.Entity != "search" || payload.Page != 1 || payload.Limit != 5 {
		t.Fatalf("unexpected payload %+v", payload)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.ExternalID != "li-1" || r.Title != "Backend Engineer" {
		t.Fatalf("unexpected result %+v", r)
	}
	if r.Metadata["location"] != "Austin, TX, US" {
		t.Fatalf("location = %v", r.Metadata["location"])
	}
	if r.Metadata["job_type"] != "full-time" || r.Metadata["experience_level"] != "mid-senior" {
		t.Fatalf("job type/level = %v/%v", r.Metadata["job_type"], r.Metadata["experience_level"])
	}
	if r.Metadata["salary_min"] != float64(100000) || r.Metadata["company_website"] != "https://initech.io" {
		t.Fatalf("metadata = %v", r.Metadata)
	}
}

func TestBrightDataClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	client := NewBrightDataClient(brightDataConfig(srv.URL), nil)
	_, err := client.Search(context.Background(), Request{Query: "go"})
	if !errcode.IsUpstream(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", calls.Load())
	}
}

func TestBrightDataJobDetails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scraper/linkedin/job/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"job_id":"42","title":"Data Engineer","location":"Remote","employment_type":"Contract","url":"https://www.linkedin.com/jobs/view/42"}`))
	}))
	t.Cleanup(srv.Close)

	client := NewBrightDataClient(brightDataConfig(srv.URL), nil)
	res, err := client.JobDetails(context.Background(), "42")
	if err != nil {
		t.Fatalf("JobDetails: %v", err)
	}
	if res.Metadata["location"] != "Remote" || res.Metadata["job_type"] != "contract" {
		t.Fatalf("metadata = %v", res.Metadata)
	}

	if _, err := client.JobDetails(context.Background(), " "); !errcode.IsValidation(err) {
		t.Fatalf("blank id must be a validation error, got %v", err)
	}
}

func TestBrightDataNotConfigured(t *testing.T) {
	t.Parallel()

	client := NewBrightDataClient(config.BrightDataConfig{APIURL: "http://127.0.0.1:1"}, nil)
	if _, err := client.Search(context.Background(), Request{Query: "go"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

type stubProvider struct {
	name    string
	results []Result
	err     error
	calls   int
}

func (s *stubProvider) Name() string     { return s.name }
func (s *stubProvider) Configured() bool { return s.err == nil }
func (s *stubProvider) Search(context.Context, Request) ([]Result, error) {
	s.calls++
	return s.results, s.err
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	tav := &stubProvider{name: TypeTavily}
	bd := &stubProvider{name: TypeBrightData, err: ErrNotConfigured}
	reg := NewRegistry(tav, bd)

	if p, err := reg.For(""); err != nil || p != tav {
		t.Fatalf("empty type must resolve to the first provider")
	}
	if p, err := reg.For(" BrightData "); err != nil || p != bd {
		t.Fatalf("lookup must be case-insensitive")
	}
	if _, err := reg.For("indeed"); !errcode.IsValidation(err) {
		t.Fatalf("unknown type must be a validation error, got %v", err)
	}

	status := reg.Status()
	if !status[TypeTavily] || status[TypeBrightData] {
		t.Fatalf("unexpected status %v", status)
	}
	if strings.Join(reg.Types(), ",") != "brightdata,tavily" {
		t.Fatalf("types = %v", reg.Types())
	}
}

type memoryKV struct {
	data    map[string][]byte
	readErr error
	sets    int
}

func (m *memoryKV) Get(ctx context.Context, key string) *redis.StringCmd {
	if m.readErr != nil {
		return redis.NewStringResult("", m.readErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *memoryKV) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.sets++
	m.data[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func TestCachedProviderServesRepeatedQueries(t *testing.T) {
	t.Parallel()

	inner := &stubProvider{name: TypeTavily, results: []Result{{Title: "Go", URL: "https://a.example/1"}}}
	kv := &memoryKV{data: map[string][]byte{}}
	p := NewCachedProvider(inner, kv, time.Minute, nil)

	for i := 0; i < 2; i++ {
		res, err := p.Search(context.Background(), Request{Query: "go"})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(res) != 1 || res[0].Title != "Go" {
			t.Fatalf("unexpected results %+v", res)
		}
	}
	if inner.calls != 1 || kv.sets != 1 {
		t.Fatalf("expected one live call and one cache write, got %d/%d", inner.calls, kv.sets)
	}

	if _, err := p.Search(context.Background(), Request{Query: "rust"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("a different query must miss the cache")
	}
}

func TestCachedProviderDegradesOnCacheErrors(t *testing.T) {
	t.Parallel()

	inner := &stubProvider{name: TypeTavily, results: []Result{{Title: "Go"}}}
	kv := &memoryKV{data: map[string][]byte{}, readErr: errors.New("connection refused")}
	p := NewCachedProvider(inner, kv, time.Minute, nil)

	res, err := p.Search(context.Background(), Request{Query: "go"})
	if err != nil || len(res) != 1 {
		t.Fatalf("cache failure must fall through, got %v %v", res, err)
	}

	if NewCachedProvider(inner, nil, time.Minute, nil) != Provider(inner) {
		t.Fatalf("nil backend must return the provider unchanged")
	}
}

func TestBrightDataSearchFetchesMissingDescription(t *testing.T) {
	t.Parallel()

	var detailCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/scraper/linkedin/search":
			_, _ = w.Write([]byte(`{"results":[
				{"job_id":"7","title":"SRE","url":"https://www.linkedin.com/jobs/view/7","description":""},
				{"job_id":"8","title":"QA","url":"https://www.linkedin.com/jobs/view/8","description":"Manual testing"}
			]}`))
		case "/scraper/linkedin/job/7":
			detailCalls.Add(1)
			_, _ = w.Write([]byte(`{"job_id":"7","title":"SRE","url":"https://www.linkedin.com/jobs/view/7","description":"Kubernetes on call"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)

	client := NewBrightDataClient(brightDataConfig(srv.URL), nil)
	results, err := client.Search(context.Background(), Request{Query: "sre"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if detailCalls.Load() != 1 {
		t.Fatalf("expected one detail lookup, got %d", detailCalls.Load())
	}
	if len(results) != 2 || results[0].Content != "Kubernetes on call" || results[1].Content != "Manual testing" {
		t.Fatalf("unexpected results %+v", results)
	}
}
