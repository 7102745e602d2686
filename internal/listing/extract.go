package listing

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	UnknownCompany      = "Unknown Company"
	LocationUnspecified = "Location not specified"
)

var (
	hostSuffixPattern = regexp.MustCompile(`\.(com|org|net|io|co\.\w{2,})$`)
	// a title segment is only a location when it is the whole segment
	titleLocationPattern = regexp.MustCompile(`^(?:[A-Z][a-zA-Z]+(?:[\s-][A-Z][a-zA-Z]+)*,?\s+[A-Z]{2}|(?i:remote|worldwide|anywhere))$`)
	bodyLocationPattern  = regexp.MustCompile(`(?i:\bremote\b|\bworldwide\b|\banywhere\b)|\b[A-Z][a-z]+(?:[\s-][A-Z][a-z]+)*,\s*[A-Z]{2}\b`)
)

// remoteStems match at the start of a word, so "remotely" and "teleworking" count.
var remoteStems = []string{"remote", "work from home", "wfh", "virtual", "telecommut", "telework"}

// ExtractCompany guesses the employer from the result title, falling back to the URL host.
func ExtractCompany(title, rawURL string) string {
	title = strings.TrimSpace(title)

	if _, after, ok := strings.Cut(title, " at "); ok {
		company := after
		for _, sep := range []string{" at ", " - ", " | ", " ("} {
			if before, _, found := strings.Cut(company, sep); found {
				company = before
			}
		}
		if company = strings.TrimSpace(company); company != "" {
			return company
		}
	}

	if before, _, ok := strings.Cut(title, ": "); ok {
		if company := strings.TrimSpace(before); company != "" {
			return company
		}
	}

	if host := hostOf(rawURL); host != "" {
		name := hostSuffixPattern.ReplaceAllString(host, "")
		if name != "" {
			return upperFirst(name)
		}
	}

	return UnknownCompany
}

// ExtractLocation prefers the criteria location, then a trailing " - <location>" title
// segment, then the first location-looking phrase in the body.
func ExtractLocation(title, content, criteriaLocation string) string {
	if loc := strings.TrimSpace(criteriaLocation); loc != "" {
		return loc
	}

	if parts := strings.Split(title, " - "); len(parts) > 1 {
		last := strings.TrimSpace(parts[len(parts)-1])
		if titleLocationPattern.MatchString(last) {
			return canonicalLocation(last)
		}
	}

	if m := bodyLocationPattern.FindString(content); m != "" {
		return canonicalLocation(strings.TrimSpace(m))
	}

	return LocationUnspecified
}

func canonicalLocation(loc string) string {
	switch strings.ToLower(loc) {
	case "remote", "worldwide", "anywhere":
		return upperFirst(strings.ToLower(loc))
	}
	return loc
}

// DetectRemote returns the explicit criteria value when set, otherwise scans title and body.
func DetectRemote(title, content string, explicit *bool) bool {
	if explicit != nil {
		return *explicit
	}
	text := strings.ToLower(title + " " + content)
	for _, stem := range remoteStems {
		if containsPrefix(text, stem) {
			return true
		}
	}
	return false
}

// SourceHost returns the URL host without a leading "www.".
func SourceHost(rawURL string) string {
	return hostOf(rawURL)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// containsWord matches needle in haystack only at word boundaries; both must be lower case.
func containsWord(haystack, needle string) bool {
	return matchAtBoundary(haystack, needle, true)
}

// containsPrefix matches needle at the start of a word in haystack.
func containsPrefix(haystack, needle string) bool {
	return matchAtBoundary(haystack, needle, false)
}

func matchAtBoundary(haystack, needle string, wholeWord bool) bool {
	from := 0
	for {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(needle)
		if boundaryBefore(haystack, start) && (!wholeWord || boundaryAfter(haystack, end)) {
			return true
		}
		from = start + 1
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#'
}
