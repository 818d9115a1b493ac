package htmlutil

import (
	"bytes"
	"net/url"
	"strings"

	"cetracker/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		buffer.WriteByte(' ')
		return
	}
	if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// Text returns the cleaned text of every node in the selection.
func Text(sel *goquery.Selection) string {
	var out strings.Builder
	for _, n := range sel.Nodes {
		out.WriteString(GetText(n))
		out.WriteByte(' ')
	}
	return textutil.Clean(out.String())
}

// Resolve resolves href against base, it returns href unchanged if either fails to parse.
func Resolve(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// TableRows returns the cleaned cell text of each row matched by rows.
// Header rows (rows made only of <th>) are skipped.
func TableRows(rows *goquery.Selection) [][]string {
	var out [][]string
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}
		values := make([]string, cells.Length())
		cells.Each(func(i int, cell *goquery.Selection) {
			values[i] = Text(cell)
		})
		out = append(out, values)
	})
	return out
}
