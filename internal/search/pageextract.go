package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dossier-ai/dossier-agent/internal/httpkit"
)

// maxPageBytes caps how much of a page body is read.
const maxPageBytes = 2 << 20 // 2 MiB

// PageExtractor is a local Extractor that fetches pages directly and
// strips them to readable text. Used when no Tavily key is configured
// for extraction.
type PageExtractor struct {
	httpClient *http.Client
}

// NewPageExtractor creates a local page extractor.
func NewPageExtractor() *PageExtractor {
	return &PageExtractor{
		httpClient: httpkit.NewClient(httpkit.WithTimeout(30 * time.Second)),
	}
}

// Extract fetches each URL and reduces it to title plus readable
// text. Per-URL failures are reported in the document content rather
// than failing the whole batch.
func (p *PageExtractor) Extract(ctx context.Context, urls []string) ([]Document, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("page extract: no urls given")
	}

	docs := make([]Document, 0, len(urls))
	for _, u := range urls {
		doc, err := p.extractOne(ctx, u)
		if err != nil {
			docs = append(docs, Document{URL: u, Content: "Extraction failed: " + err.Error()})
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (p *PageExtractor) extractOne(ctx context.Context, pageURL string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		httpkit.DrainAndClose(resp.Body, 1024)
		return Document{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Document{}, fmt.Errorf("read body: %w", err)
	}

	title, text := readableText(string(raw))
	return Document{URL: pageURL, Title: title, Content: text}, nil
}

// skipElements are HTML elements whose content is excluded.
var skipElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Head:     true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
}

// readableText parses HTML and returns (title, readable text).
func readableText(raw string) (string, string) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", stripTags(raw)
	}

	var content strings.Builder
	title := findTitle(doc)
	walkText(doc, &content)

	return title, collapseWhitespace(content.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(b.String())
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func walkText(n *html.Node, w *strings.Builder) {
	if n.Type == html.ElementNode {
		if skipElements[n.DataAtom] {
			return
		}
		if isBlockElement(n.DataAtom) && w.Len() > 0 {
			w.WriteString("\n\n")
		}
	}

	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			w.WriteString(text)
			w.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, w)
	}

	if n.Type == html.ElementNode && (n.DataAtom == atom.Br || n.DataAtom == atom.Li) {
		w.WriteString("\n")
	}
}

func isBlockElement(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Main,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Blockquote, atom.Pre, atom.Ul, atom.Ol, atom.Table,
		atom.Tr, atom.Dl, atom.Dd, atom.Dt, atom.Hr:
		return true
	}
	return false
}

// collapseWhitespace normalizes spacing and blank-line runs.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var cleaned []string
	prevEmpty := false

	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if prevEmpty {
				continue
			}
			prevEmpty = true
		} else {
			prevEmpty = false
		}
		cleaned = append(cleaned, line)
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// stripTags is a fallback that removes tags without parsing the tree.
func stripTags(s string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return collapseWhitespace(b.String())
		case html.TextToken:
			b.WriteString(tokenizer.Token().Data)
			b.WriteString(" ")
		}
	}
}
