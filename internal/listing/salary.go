package listing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Salary is a parsed salary band. Estimated is set when a single figure was widened by ±10%.
type Salary struct {
	Min       float64
	Max       float64
	Currency  string
	Period    string
	Estimated bool
}

var (
	salaryRangePattern  = regexp.MustCompile(`[$£€₹]?\s*(\d[\d,]*(?:\.\d+)?)\s*([kK])?\s*(?:-|–|to)\s*[$£€₹]?\s*(\d[\d,]*(?:\.\d+)?)\s*([kK])?`)
	salarySinglePattern = regexp.MustCompile(`[$£€₹]?\s*(\d[\d,]*(?:\.\d+)?)\s*([kK])?`)
	// only currency-prefixed figures are taken from free text
	bodySalaryPattern = regexp.MustCompile(`[$£€₹]\s?\d[\d,]*(?:\.\d+)?\s*[kK]?(?:\s*(?:-|–|to)\s*[$£€₹]?\s?\d[\d,]*(?:\.\d+)?\s*[kK]?)?`)
)

// ParseSalary reads "min - max" or a single figure from s. A single figure yields
// min=0.9×value and max=1.1×value.
func ParseSalary(s string) (Salary, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Salary{}, false
	}

	out := Salary{Currency: detectCurrency(s), Period: detectPeriod(s)}

	if m := salaryRangePattern.FindStringSubmatch(s); m != nil {
		minV, okMin := parseAmount(m[1], m[2])
		maxV, okMax := parseAmount(m[3], m[4])
		if okMin && okMax {
			if minV > maxV {
				minV, maxV = maxV, minV
			}
			out.Min, out.Max = minV, maxV
			return out, true
		}
	}

	if m := salarySinglePattern.FindStringSubmatch(s); m != nil {
		v, ok := parseAmount(m[1], m[2])
		if ok && v > 0 {
			out.Min = round2(v * 0.9)
			out.Max = round2(v * 1.1)
			out.Estimated = true
			return out, true
		}
	}

	return Salary{}, false
}

// FindSalary locates the first currency-prefixed salary phrase in free text.
func FindSalary(text string) (Salary, bool) {
	m := bodySalaryPattern.FindString(text)
	if m == "" {
		return Salary{}, false
	}
	// keep a little trailing context so the period can be detected
	idx := strings.Index(text, m)
	tail := text[idx:]
	if len(tail) > len(m)+16 {
		tail = tail[:len(m)+16]
	}
	s, ok := ParseSalary(m)
	if ok {
		s.Period = detectPeriod(tail)
	}
	return s, ok
}

func parseAmount(digits, thousands string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	if thousands != "" {
		v *= 1000
	}
	return v, true
}

func detectCurrency(s string) string {
	switch {
	case strings.Contains(s, "£") || strings.Contains(strings.ToUpper(s), "GBP"):
		return "GBP"
	case strings.Contains(s, "€") || strings.Contains(strings.ToUpper(s), "EUR"):
		return "EUR"
	case strings.Contains(s, "₹") || strings.Contains(strings.ToUpper(s), "INR"):
		return "INR"
	default:
		return "USD"
	}
}

func detectPeriod(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "/hr") || strings.Contains(lower, "hour"):
		return "hour"
	case strings.Contains(lower, "/mo") || strings.Contains(lower, "month"):
		return "month"
	case strings.Contains(lower, "week"):
		return "week"
	default:
		return "year"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
