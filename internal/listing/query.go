package listing

import (
	"strings"

	"jobcompass/internal/database"
)

// DefaultDomains are searched when a board does not narrow the provider to its own host.
var DefaultDomains = []string{
	"linkedin.com/jobs",
	"indeed.com",
	"glassdoor.com",
	"monster.com",
	"careerbuilder.com",
	"dice.com",
	"ziprecruiter.com",
	"simplyhired.com",
	"angel.co",
	"stackoverflow.com/jobs",
	"github.com/jobs",
	"remoteok.io",
	"weworkremotely.com",
}

// ExcludedDomains never carry job postings.
var ExcludedDomains = []string{
	"facebook.com",
	"twitter.com",
	"instagram.com",
	"youtube.com",
	"pinterest.com",
	"tiktok.com",
}

// Query holds the criteria fields that drive a provider search and result normalization.
type Query struct {
	Keywords        string
	JobTitle        string
	CompanyName     string
	Location        string
	JobType         string
	ExperienceLevel string
	// Remote is nil when the caller does not care.
	Remote *bool
	Skills []string
}

// String joins the present fields into one free-text query.
func (q Query) String() string {
	parts := make([]string, 0, 7)
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	add(q.Keywords)
	add(q.JobTitle)
	add(q.CompanyName)
	add(q.Location)
	if jt := strings.TrimSpace(q.JobType); jt != "" {
		add(jt + " job")
	}
	if lvl := strings.TrimSpace(q.ExperienceLevel); lvl != "" {
		add(lvl + " level")
	}
	if q.Remote != nil && *q.Remote {
		add("remote")
	}
	return strings.Join(parts, " ")
}

// Empty reports whether the query would produce no search text.
func (q Query) Empty() bool {
	return q.String() == ""
}

// QueryFromCriteria flattens stored criteria into a Query.
func QueryFromCriteria(c database.SearchCriteria) Query {
	q := Query{
		Keywords:        joinNonEmpty(c.Keywords),
		JobTitle:        joinNonEmpty(c.JobTitles),
		CompanyName:     joinNonEmpty(c.Companies),
		JobType:         c.JobType,
		ExperienceLevel: c.ExperienceLevel,
		Remote:          c.IsRemote,
		Skills:          append([]string(nil), c.SkillsIncluded...),
	}
	if len(c.Locations) > 0 {
		q.Location = strings.TrimSpace(c.Locations[0])
	}
	return q
}

func joinNonEmpty(values []string) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, " ")
}
