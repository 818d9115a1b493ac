package scraper

import (
	"regexp"
	"strings"
	"time"

	"cetracker/lib/htmlutil"
	"cetracker/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

// Strategy is one way of finding a value inside a selection.
type Strategy[T any] interface {
	Extract(sel *goquery.Selection) (T, bool)
}

type StrategyFunc[T any] func(sel *goquery.Selection) (T, bool)

func (f StrategyFunc[T]) Extract(sel *goquery.Selection) (T, bool) {
	return f(sel)
}

// Chain is an ordered list of strategies, tried until one finds something.
type Chain[T any] []Strategy[T]

func (c Chain[T]) First(sel *goquery.Selection) (T, bool) {
	for _, strategy := range c {
		value, ok := strategy.Extract(sel)
		if ok {
			return value, true
		}
	}
	var zero T
	return zero, false
}

// Text is First, returning "" when nothing matched.
func (c Chain[T]) Text(sel *goquery.Selection) T {
	value, _ := c.First(sel)
	return value
}

// Selector finds the text of the first element matching css that has any.
func Selector(css string) Strategy[string] {
	return StrategyFunc[string](func(sel *goquery.Selection) (string, bool) {
		var out string
		sel.Find(css).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			out = htmlutil.Text(s)
			return out == ""
		})
		return out, out != ""
	})
}

// Attr finds the value of attr on the first element matching css that has it.
func Attr(css, attr string) Strategy[string] {
	return StrategyFunc[string](func(sel *goquery.Selection) (string, bool) {
		var out string
		sel.Find(css).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			out = strings.TrimSpace(s.AttrOr(attr, ""))
			return out == ""
		})
		return out, out != ""
	})
}

var labelElements = "dt, th, label, strong, b, span, td, div, p, li"

// LabelValue finds the value that follows a label matching re, either in the
// same element after a colon ("State: FL"), or in the next sibling element
// (<dt>State</dt><dd>FL</dd>, <th>State</th><td>FL</td>).
func LabelValue(re *regexp.Regexp) Strategy[string] {
	return StrategyFunc[string](func(sel *goquery.Selection) (string, bool) {
		var out string
		sel.Find(labelElements).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			// only consider the innermost element holding the label
			if s.Children().Length() > 0 && s.Children().FilterFunction(func(_ int, c *goquery.Selection) bool {
				return re.MatchString(htmlutil.Text(c))
			}).Length() > 0 {
				return true
			}
			text := htmlutil.Text(s)
			loc := re.FindStringIndex(text)
			if loc == nil || loc[0] != 0 {
				return true
			}
			rest := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(text[loc[1]:]), ":"))
			if rest != "" {
				out = rest
				return false
			}
			out = htmlutil.Text(s.Next())
			if out == "" {
				out = trailingText(s, text)
			}
			return out == ""
		})
		return out, out != ""
	})
}

// trailingText is the text of the label's parent that follows the label, for
// markup like <p><strong>Deadline:</strong> 07/31/2027</p>.
func trailingText(label *goquery.Selection, labelText string) string {
	parent := htmlutil.Text(label.Parent())
	idx := strings.Index(parent, labelText)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(parent[idx+len(labelText):])
	return strings.TrimSpace(strings.TrimLeft(rest, ":"))
}

// TextPattern matches re against the whole text of the selection and returns
// its first capture group.
func TextPattern(re *regexp.Regexp) Strategy[string] {
	return StrategyFunc[string](func(sel *goquery.Selection) (string, bool) {
		match := re.FindStringSubmatch(htmlutil.Text(sel))
		if len(match) < 2 {
			return "", false
		}
		out := strings.TrimSpace(match[1])
		return out, out != ""
	})
}

// Hours runs the chain and parses the result as a number of hours.
func Hours(c Chain[string], sel *goquery.Selection) *float64 {
	for _, strategy := range c {
		text, ok := strategy.Extract(sel)
		if !ok {
			continue
		}
		if hours := textutil.ParseHours(text); hours != nil {
			return hours
		}
	}
	return nil
}

// Date runs the chain and normalizes the result to YYYY-MM-DD.
func Date(c Chain[string], sel *goquery.Selection) string {
	for _, strategy := range c {
		text, ok := strategy.Extract(sel)
		if !ok {
			continue
		}
		if date, ok := textutil.ParseDate(text); ok {
			return date.Format(time.DateOnly)
		}
	}
	return ""
}
