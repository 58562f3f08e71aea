package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Jane Diplomat</title><script>var x = 1;</script></head>
<body>
<nav>Home | About</nav>
<h1>Jane Diplomat</h1>
<p>Ambassador of Atlantis   to the   United Nations.</p>
<ul><li>Fluent in English</li><li>Fluent in Atlantean</li></ul>
<footer>Copyright</footer>
</body>
</html>`

func TestPageExtractorReadableText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, samplePage)
	}))
	defer srv.Close()

	docs, err := NewPageExtractor().Extract(context.Background(), []string{srv.URL})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs", len(docs))
	}

	doc := docs[0]
	if doc.Title != "Jane Diplomat" {
		t.Errorf("title = %q", doc.Title)
	}
	if !strings.Contains(doc.Content, "Ambassador of Atlantis to the United Nations.") {
		t.Errorf("content missing normalized paragraph: %q", doc.Content)
	}
	if strings.Contains(doc.Content, "var x") {
		t.Error("script content leaked into text")
	}
	if strings.Contains(doc.Content, "Home | About") || strings.Contains(doc.Content, "Copyright") {
		t.Error("nav/footer content leaked into text")
	}
}

func TestPageExtractorReportsPerURLFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/good" {
			io.WriteString(w, "<html><body><p>ok</p></body></html>")
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	docs, err := NewPageExtractor().Extract(context.Background(), []string{srv.URL + "/good", srv.URL + "/missing"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs", len(docs))
	}
	if !strings.Contains(docs[0].Content, "ok") {
		t.Errorf("docs[0] = %+v", docs[0])
	}
	if !strings.HasPrefix(docs[1].Content, "Extraction failed:") {
		t.Errorf("docs[1] = %+v", docs[1])
	}
}

func TestCollapseWhitespace(t *testing.T) {
	in := "a   b\n\n\n\nc\t d"
	got := collapseWhitespace(in)
	if got != "a b\n\nc d" {
		t.Errorf("collapseWhitespace = %q", got)
	}
}
