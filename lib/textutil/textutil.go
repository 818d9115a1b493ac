package textutil

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases and strips all whitespace, for loose label comparisons.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// Clean removes non-printable characters and collapses runs of whitespace.
func Clean(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

var (
	numberRegex    = regexp.MustCompile(`\d+(?:,\d{3})*(?:\.\d+)?|\.\d+`)
	hoursUnitRegex = regexp.MustCompile(`(?i)^\s*(?:contact\s+)?(?:hours?|hrs?|ceus?|credits?)\b`)
)

// ParseHours reads a non-negative decimal number out of text like "12.5 hrs",
// "Required: 1,000" or "Hours (2025-2027 cycle): 24". The number after the last
// colon wins, then the number directly followed by an hours unit, then the
// first number. It returns nil when there is no number.
func ParseHours(text string) *float64 {
	matches := numberRegex.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	pick := matches[0]
	if colon := strings.LastIndex(text, ":"); colon >= 0 {
		for _, m := range matches {
			if m[0] > colon {
				return parseNumber(text[m[0]:m[1]])
			}
		}
	}
	for _, m := range matches {
		if hoursUnitRegex.MatchString(text[m[1]:]) {
			pick = m
			break
		}
	}
	return parseNumber(text[pick[0]:pick[1]])
}

func parseNumber(match string) *float64 {
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &value
}

var dateLayouts = []string{
	time.DateOnly,
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"01/02/06",
}

var dateRegex = regexp.MustCompile(
	`\d{4}-\d{2}-\d{2}|\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|[A-Z][a-z]{2,8}\.? \d{1,2},? \d{4}|\d{1,2} [A-Z][a-z]{2,8} \d{4}`,
)

// ParseDate finds a date within text and returns it, trying each known layout.
func ParseDate(text string) (time.Time, bool) {
	match := dateRegex.FindString(text)
	if match == "" {
		return time.Time{}, false
	}
	match = strings.Replace(match, ".", "", 1)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, match)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeDate rewrites any recognised date within text as YYYY-MM-DD,
// falling back to the cleaned text itself.
func NormalizeDate(text string) string {
	t, ok := ParseDate(text)
	if !ok {
		return Clean(text)
	}
	return t.Format(time.DateOnly)
}

// BestMatch returns the candidate most similar to target by Jaro-Winkler
// similarity, provided it clears the threshold.
func BestMatch(target string, candidates []string, threshold float64) (string, bool) {
	target = NormalizeName(target)
	var best string
	var bestScore float64
	for _, c := range candidates {
		score := matchr.JaroWinkler(target, NormalizeName(c), false)
		if score > bestScore {
			best = c
			bestScore = score
		}
	}
	if bestScore < threshold || bestScore == 0 {
		return "", false
	}
	return best, true
}
