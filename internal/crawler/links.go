package crawler

import (
	"io"
	"net/url"
	"strings"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"golang.org/x/net/html"
)

type link struct {
	URL   string
	Title string
}

type listingPage struct {
	Documents []link
	Details   []link
	Next      string
}

var nextLabels = map[string]bool{
	"next":      true,
	"next page": true,
	"›":         true,
	"»":         true,
}

// parseListing walks every anchor of a listing or detail page and sorts it
// into document links, document-detail links and the pagination link.
func parseListing(r io.Reader, pageURL string) (listingPage, error) {
	var page listingPage
	base, err := url.Parse(pageURL)
	if err != nil {
		return page, err
	}
	doc, err := html.Parse(r)
	if err != nil {
		return page, err
	}

	seenDoc := map[string]bool{}
	seenDetail := map[string]bool{}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := attr(n, "href"); href != "" {
				classify(&page, base, href, textOf(n), seenDoc, seenDetail)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return page, nil
}

func classify(page *listingPage, base *url.URL, href string, text string, seenDoc, seenDetail map[string]bool) {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "#") {
		return
	}
	ref, err := url.Parse(href)
	if err != nil {
		return
	}
	abs := base.ResolveReference(ref).String()

	switch {
	case isDocumentLink(ref):
		if !seenDoc[abs] {
			seenDoc[abs] = true
			page.Documents = append(page.Documents, link{URL: abs, Title: text})
		}
	case strings.Contains(href, "document-detail") && strings.Contains(href, "documentId"):
		if !seenDetail[abs] {
			seenDetail[abs] = true
			page.Details = append(page.Details, link{URL: abs, Title: text})
		}
	case page.Next == "" && nextLabels[strings.ToLower(text)]:
		page.Next = abs
	}
}

// isDocumentLink accepts direct links to a supported file and the site's
// /documents/ download paths, which carry the file name in a middle segment.
func isDocumentLink(ref *url.URL) bool {
	if _, ok := formatFromPath(ref.Path); ok {
		return true
	}
	return strings.Contains(ref.Path, "/documents/")
}

// formatFromPath finds the first path segment naming a supported file,
// e.g. /documents/37343/365525/Master+Circular.pdf/1f2e...
func formatFromPath(p string) (documentModel.Format, bool) {
	segment, ok := fileSegment(p)
	if !ok {
		return "", false
	}
	return documentModel.FormatFromName(segment)
}

func fileSegment(p string) (string, bool) {
	for _, part := range strings.Split(p, "/") {
		if _, ok := documentModel.FormatFromName(part); ok {
			return part, true
		}
	}
	return "", false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
