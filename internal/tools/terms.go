package tools

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
)

// properNoun matches runs of up to four capitalized words.
var properNoun = regexp.MustCompile(`\b[A-Z][\p{L}\p{N}_'\-]+(?:\s+[A-Z][\p{L}\p{N}_'\-]+){0,3}`)

// normalizeTerm trims v and collapses inner whitespace. It returns "" for
// blank input.
func normalizeTerm(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

// dedupeTerms normalizes values and drops case-insensitive duplicates,
// keeping the first spelling seen.
func dedupeTerms(values []string) []string {
	fold := cases.Fold()
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, raw := range values {
		v := normalizeTerm(raw)
		if v == "" {
			continue
		}
		key := fold.String(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// extractTermsFromText returns up to maxTerms distinct capitalized phrases.
func extractTermsFromText(text string, maxTerms int) []string {
	if text == "" {
		return nil
	}
	matches := properNoun.FindAllString(text, maxTerms*3)
	for i, m := range matches {
		matches[i] = strings.TrimRight(m, "'-")
	}
	return firstN(dedupeTerms(matches), maxTerms)
}

// extractTermsFromHTML collects the page title, the first h1 and the
// targets of links into Wikipedia articles.
func extractTermsFromHTML(r io.Reader, maxTerms int) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	var title, h1 string
	var links []string
	limit := maxTerms * 5

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(links) >= limit {
			return
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if title == "" {
					title = normalizeTerm(textContent(n))
				}
			case atom.H1:
				if h1 == "" {
					h1 = normalizeTerm(textContent(n))
				}
			case atom.A:
				if t := wikipediaLinkTarget(attr(n, "href")); t != "" {
					links = append(links, t)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	candidates := make([]string, 0, len(links)+2)
	if title != "" {
		candidates = append(candidates, title)
	}
	if h1 != "" {
		candidates = append(candidates, h1)
	}
	candidates = append(candidates, links...)
	return firstN(dedupeTerms(candidates), maxTerms), nil
}

// wikipediaLinkTarget returns the article title of a Wikipedia link, or "".
func wikipediaLinkTarget(href string) string {
	if !strings.Contains(href, "wikipedia.org/wiki/") {
		return ""
	}
	_, part, _ := strings.Cut(href, "/wiki/")
	part, _, _ = strings.Cut(part, "#")
	part, _, _ = strings.Cut(part, "?")
	if unescaped, err := url.PathUnescape(part); err == nil {
		part = unescaped
	}
	return strings.ReplaceAll(part, "_", " ")
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
