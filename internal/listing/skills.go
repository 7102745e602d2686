package listing

import "strings"

// SkillVocabulary is the fixed set of technology names recognized in listing text.
var SkillVocabulary = []string{
	"JavaScript", "Python", "Java", "C#", "PHP", "C++", "TypeScript", "Ruby", "Swift", "Kotlin",
	"React", "Angular", "Vue.js", "Node.js", "Django", "Spring", "Laravel", "Ruby on Rails",
	"AWS", "Azure", "Google Cloud", "Docker", "Kubernetes", "Terraform",
	"SQL", "MongoDB", "PostgreSQL", "MySQL", "Redis", "Elasticsearch",
	"Git", "CI/CD", "DevOps", "Agile", "Scrum",
}

// ExtractSkills returns the criteria skills followed by every vocabulary entry found in
// text, de-duplicated case-insensitively.
func ExtractSkills(text string, criteriaSkills []string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]struct{}, len(criteriaSkills))
	out := make([]string, 0, len(criteriaSkills)+4)

	add := func(skill string) {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			return
		}
		key := strings.ToLower(skill)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, skill)
	}

	for _, s := range criteriaSkills {
		add(s)
	}
	for _, s := range SkillVocabulary {
		if containsWord(lower, strings.ToLower(s)) {
			add(s)
		}
	}
	return out
}
