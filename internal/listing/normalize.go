package listing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gorm.io/datatypes"

	"jobcompass/internal/database"
)

// ListingTTL is how long a freshly ingested listing stays valid.
const ListingTTL = 30 * 24 * time.Hour

var (
	ErrMissingTitle = errors.New("result has no title")
	ErrMissingURL   = errors.New("result has no usable url")
)

// Input is one unstructured provider result.
type Input struct {
	Title      string
	URL        string
	Content    string
	ExternalID string
	// Metadata carries optional structured fields such as company, location,
	// job_type, experience_level, salary (free text), salary_min/salary_max,
	// published_date and categories.
	Metadata map[string]any
	Raw      json.RawMessage
}

// Normalize turns one provider result into a Listing ready to persist (BoardID unset).
func Normalize(in Input, q Query, now time.Time) (database.Listing, error) {
	title := strings.TrimSpace(whitespacePattern.ReplaceAllString(in.Title, " "))
	if title == "" {
		return database.Listing{}, ErrMissingTitle
	}

	canonical, err := CanonicalURL(in.URL)
	if err != nil {
		return database.Listing{}, err
	}

	content := CleanDescription(in.Content)

	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		externalID = ExternalID(canonical)
	}

	meta := decodeMeta(in.Metadata)

	company := meta.Company
	if company == "" {
		company = ExtractCompany(title, canonical)
	}

	location := strings.TrimSpace(q.Location)
	if location == "" {
		location = meta.Location
	}
	if location == "" {
		location = ExtractLocation(title, content, "")
	}

	jobType := firstNonEmpty(q.JobType, meta.JobType)
	level := firstNonEmpty(q.ExperienceLevel, meta.ExperienceLevel)

	expires := now.Add(ListingTTL)
	out := database.Listing{
		ExternalID:      externalID,
		Title:           title,
		Description:     content,
		CompanyName:     company,
		CompanyWebsite:  meta.CompanyWebsite,
		Location:        location,
		IsRemote:        DetectRemote(title, content, q.Remote),
		JobType:         jobType,
		ExperienceLevel: level,
		Skills:          ExtractSkills(title+" "+content, q.Skills),
		Categories:      meta.Categories,
		ApplyURL:        canonical,
		URL:             canonical,
		Source:          SourceHost(canonical),
		ExpiresAt:       &expires,
		IsActive:        true,
	}

	salary, ok := meta.salary()
	if !ok {
		salary, ok = ParseSalary(meta.Salary)
	}
	if !ok {
		salary, ok = FindSalary(content)
	}
	if ok {
		out.SalaryMin = &salary.Min
		out.SalaryMax = &salary.Max
		out.SalaryCurrency = salary.Currency
		out.SalaryPeriod = salary.Period
	}

	if posted, ok := parseDate(meta.PublishedDate); ok {
		out.PostedAt = &posted
	}

	raw, err := rawPayload(in)
	if err != nil {
		return database.Listing{}, err
	}
	out.RawData = raw

	return out, nil
}

// CanonicalURL lower-cases scheme and host, drops the fragment and utm_* tracking
// parameters, and trims a trailing slash.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return "", ErrMissingURL
	}

	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		values := u.Query()
		for key := range values {
			if strings.HasPrefix(strings.ToLower(key), "utm_") {
				values.Del(key)
			}
		}
		u.RawQuery = values.Encode()
	}

	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}
	return u.String(), nil
}

// ExternalID derives a stable identifier from a canonical URL.
func ExternalID(canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(sum[:8])
}

func rawPayload(in Input) (datatypes.JSON, error) {
	if len(in.Raw) > 0 && json.Valid(in.Raw) {
		return datatypes.JSON(in.Raw), nil
	}
	b, err := json.Marshal(map[string]any{
		"title":    in.Title,
		"url":      in.URL,
		"content":  in.Content,
		"metadata": in.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal raw payload: %w", err)
	}
	return datatypes.JSON(b), nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", time.RFC1123, time.RFC1123Z} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// resultMeta is the structured part of a provider result. Providers disagree on value
// types, so decoding is weakly typed: numbers become strings and a lone string becomes
// a one-element list.
type resultMeta struct {
	Company         string   `mapstructure:"company"`
	CompanyWebsite  string   `mapstructure:"company_website"`
	Location        string   `mapstructure:"location"`
	JobType         string   `mapstructure:"job_type"`
	ExperienceLevel string   `mapstructure:"experience_level"`
	Salary          string   `mapstructure:"salary"`
	SalaryMin       *float64 `mapstructure:"salary_min"`
	SalaryMax       *float64 `mapstructure:"salary_max"`
	SalaryCurrency  string   `mapstructure:"salary_currency"`
	SalaryPeriod    string   `mapstructure:"salary_period"`
	PublishedDate   string   `mapstructure:"published_date"`
	Categories      []string `mapstructure:"categories"`
}

func decodeMeta(raw map[string]any) resultMeta {
	var m resultMeta
	if len(raw) == 0 {
		return m
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &m,
	})
	if err != nil {
		return m
	}
	// a field of the wrong shape stays empty, the others still decode
	_ = dec.Decode(raw)

	for _, f := range []*string{
		&m.Company, &m.CompanyWebsite, &m.Location, &m.JobType, &m.ExperienceLevel,
		&m.Salary, &m.SalaryCurrency, &m.SalaryPeriod, &m.PublishedDate,
	} {
		*f = strings.TrimSpace(*f)
	}
	categories := m.Categories[:0]
	for _, c := range m.Categories {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}
	m.Categories = categories
	if len(m.Categories) == 0 {
		m.Categories = nil
	}
	return m
}

// salary reads a structured band; a single bound is used for both ends.
func (m resultMeta) salary() (Salary, bool) {
	if m.SalaryMin == nil && m.SalaryMax == nil {
		return Salary{}, false
	}
	out := Salary{
		Currency: strings.ToUpper(m.SalaryCurrency),
		Period:   m.SalaryPeriod,
	}
	switch {
	case m.SalaryMin == nil:
		out.Min, out.Max = *m.SalaryMax, *m.SalaryMax
	case m.SalaryMax == nil:
		out.Min, out.Max = *m.SalaryMin, *m.SalaryMin
	default:
		out.Min, out.Max = *m.SalaryMin, *m.SalaryMax
	}
	if out.Currency == "" {
		out.Currency = "USD"
	}
	if out.Period == "" {
		out.Period = "year"
	}
	return out, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
