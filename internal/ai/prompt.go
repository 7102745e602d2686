package ai

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"jobcompass/internal/database"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

const notSpecified = "Not specified"

type matchPrompt struct {
	Listing          database.Listing
	Profile          database.UserProfile
	Salary           string
	ListingSkills    string
	Experience       string
	Education        string
	ProfileSkills    string
	Keywords         string
	Locations        string
	JobTypes         string
	ExperienceLevels string
}

func buildMatchPrompt(l database.Listing, p database.UserProfile, c *database.SearchCriteria) (string, error) {
	data := matchPrompt{
		Listing:          l,
		Profile:          p,
		Salary:           l.SalaryRange(),
		ListingSkills:    formatSkills(l.Skills),
		Experience:       formatExperience(p.Experience),
		Education:        formatEducation(p.Education),
		ProfileSkills:    formatSkills(p.Skills),
		Keywords:         notSpecified,
		Locations:        notSpecified,
		JobTypes:         notSpecified,
		ExperienceLevels: notSpecified,
	}
	if c != nil {
		data.Keywords = formatList(c.Keywords)
		data.Locations = formatList(c.Locations)
		data.JobTypes = formatList([]string{c.JobType})
		data.ExperienceLevels = formatList([]string{c.ExperienceLevel})
	}
	return render("match.tmpl", data)
}

type coverLetterPrompt struct {
	Listing            database.Listing
	Profile            database.UserProfile
	Experience         string
	Education          string
	ProfileSkills      string
	Tone               string
	ToneInstruction    string
	LengthInstruction  string
	HighlightSkills    bool
	IncludeSalary      bool
	CustomInstructions string
}

func buildCoverLetterPrompt(l database.Listing, p database.UserProfile, opts CoverLetterOptions) (string, error) {
	return render("cover_letter.tmpl", coverLetterPrompt{
		Listing:            l,
		Profile:            p,
		Experience:         formatExperience(p.Experience),
		Education:          formatEducation(p.Education),
		ProfileSkills:      formatSkills(p.Skills),
		Tone:               opts.Tone,
		ToneInstruction:    toneInstructions[opts.Tone],
		LengthInstruction:  lengthInstructions[opts.Length],
		HighlightSkills:    opts.HighlightSkills,
		IncludeSalary:      opts.IncludeSalaryExpectations,
		CustomInstructions: strings.TrimSpace(opts.CustomInstructions),
	})
}

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}

func formatExperience(items []database.Experience) string {
	if len(items) == 0 {
		return "No experience provided"
	}
	lines := make([]string, 0, len(items))
	for _, e := range items {
		end := e.EndDate
		if e.Current {
			end = "Present"
		}
		line := fmt.Sprintf("- %s at %s (%s - %s)", e.Title, e.Company, e.StartDate, end)
		if d := strings.TrimSpace(e.Description); d != "" {
			line += ": " + d
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatEducation(items []database.Education) string {
	if len(items) == 0 {
		return "No education provided"
	}
	lines := make([]string, 0, len(items))
	for _, e := range items {
		end := e.EndDate
		if e.Current {
			end = "Present"
		}
		line := fmt.Sprintf("- %s in %s at %s (%s - %s)", e.Degree, e.FieldOfStudy, e.Institution, e.StartDate, end)
		if d := strings.TrimSpace(e.Description); d != "" {
			line += ": " + d
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatSkills(skills []string) string {
	if len(skills) == 0 {
		return "No skills provided"
	}
	return strings.Join(skills, ", ")
}

func formatList(items []string) string {
	kept := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return notSpecified
	}
	return strings.Join(kept, ", ")
}
