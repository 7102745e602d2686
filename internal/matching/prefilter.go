// Package matching scores batches of listings for a profile and drives the
// ingest, filter, score and store pipeline.
package matching

import (
	"strings"

	"jobcompass/internal/database"
)

// PreFilter drops listings that plainly contradict the criteria before any model call.
// Empty criteria fields and unknown listing fields never filter.
func PreFilter(listings []database.Listing, c database.SearchCriteria) []database.Listing {
	out := make([]database.Listing, 0, len(listings))
	for _, l := range listings {
		if compatible(l, c) {
			out = append(out, l)
		}
	}
	return out
}

func compatible(l database.Listing, c database.SearchCriteria) bool {
	if !sameOrUnknown(c.JobType, l.JobType) || !sameOrUnknown(c.ExperienceLevel, l.ExperienceLevel) {
		return false
	}
	if c.IsRemote != nil && *c.IsRemote && !l.IsRemote {
		return false
	}
	if !l.IsRemote && !locationMatches(c.Locations, l.Location) {
		return false
	}
	if c.MinSalary != nil {
		top := l.SalaryMax
		if top == nil {
			top = l.SalaryMin
		}
		if top != nil && *top < *c.MinSalary {
			return false
		}
	}
	for _, excluded := range c.SkillsExcluded {
		for _, skill := range l.Skills {
			if strings.EqualFold(strings.TrimSpace(excluded), skill) {
				return false
			}
		}
	}
	return true
}

func sameOrUnknown(want, got string) bool {
	want = strings.TrimSpace(want)
	got = strings.TrimSpace(got)
	return want == "" || got == "" || strings.EqualFold(want, got)
}

func locationMatches(wanted []string, location string) bool {
	location = strings.ToLower(strings.TrimSpace(location))
	if location == "" {
		return true
	}
	constrained := false
	for _, w := range wanted {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		constrained = true
		if strings.Contains(location, w) || strings.Contains(w, location) {
			return true
		}
	}
	return !constrained
}
