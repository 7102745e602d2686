package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"jobcompass/internal/errcode"
	"jobcompass/internal/listing"
)

// Board types understood by the registry.
const (
	TypeTavily     = "tavily"
	TypeBrightData = "brightdata"
)

// ErrNotConfigured marks a provider whose credentials are missing; the whole call fails.
var ErrNotConfigured = errors.New("provider is not configured")

// Request is the provider-agnostic search input.
type Request struct {
	Query          string   `json:"query"`
	Location       string   `json:"location,omitempty"`
	Domains        []string `json:"domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
	MaxResults     int      `json:"max_results,omitempty"`
	Page           int      `json:"page,omitempty"`
}

// Result is one unstructured search hit. Only Title, URL and Content are guaranteed.
type Result struct {
	Title      string          `json:"title"`
	URL        string          `json:"url"`
	Content    string          `json:"content"`
	ExternalID string          `json:"external_id,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// Input converts the hit into the normalizer's input.
func (r Result) Input() listing.Input {
	return listing.Input{
		Title:      r.Title,
		URL:        r.URL,
		Content:    r.Content,
		ExternalID: r.ExternalID,
		Metadata:   r.Metadata,
		Raw:        r.Raw,
	}
}

// Provider is an external search or scrape API.
type Provider interface {
	Name() string
	Configured() bool
	Search(ctx context.Context, req Request) ([]Result, error)
}

// Registry resolves the provider serving a board type.
type Registry struct {
	providers map[string]Provider
	fallback  string
}

// NewRegistry registers providers by their Name. The first one is used for boards without a type.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		if r.fallback == "" {
			r.fallback = p.Name()
		}
		r.providers[p.Name()] = p
	}
	return r
}

// For returns the provider registered for boardType.
func (r *Registry) For(boardType string) (Provider, error) {
	key := strings.ToLower(strings.TrimSpace(boardType))
	if key == "" {
		key = r.fallback
	}
	p, ok := r.providers[key]
	if !ok {
		return nil, errcode.Invalid("type", fmt.Sprintf("The board type %q is not supported.", boardType))
	}
	return p, nil
}

// Status reports whether each registered provider has credentials.
func (r *Registry) Status() map[string]bool {
	out := make(map[string]bool, len(r.providers))
	for name, p := range r.providers {
		out[name] = p.Configured()
	}
	return out
}

// Types lists the registered board types.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
