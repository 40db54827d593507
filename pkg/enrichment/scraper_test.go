package enrichment

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestExtractPage(t *testing.T) {
	doc := docFromHTML(t, `<html><head>
<title>Acme Corp - About</title>
<meta name="description" content="Acme builds industrial robots for logistics.">
</head><body>
<nav><a>Home</a><a>Products</a></nav>
<p>Acme Corporation has manufactured warehouse automation systems since 1998.</p>
<p>ok</p>
<script>var x = 1;</script>
<footer>Copyright Acme</footer>
</body></html>`)

	title, content, err := extractPage(doc)
	if err != nil {
		t.Fatal(err)
	}

	if title != "Acme Corp - About" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(content, "industrial robots for logistics") {
		t.Error("meta description missing from content")
	}
	if !strings.Contains(content, "warehouse automation systems") {
		t.Error("paragraph text missing from content")
	}
	if strings.Contains(content, "var x") || strings.Contains(content, "Copyright") {
		t.Error("boilerplate leaked into content")
	}
	if strings.Contains(content, "\nok") {
		t.Error("short fragments should be dropped")
	}
}

func TestExtractPageEmptyBody(t *testing.T) {
	doc := docFromHTML(t, `<html><head><title>Empty</title></head><body><nav>menu</nav></body></html>`)

	if _, _, err := extractPage(doc); err == nil {
		t.Error("expected error for page with no extractable text")
	}
}

func TestParseSearchResults(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Facme.com%2Fabout&rut=abc">Acme - About Us</a>
<a class="result__a" href="https://example.com/direct">Direct Link</a>
<a class="result__a">No href</a>
<a class="result__a" href="https://example.com/third">Third</a>
<a class="other" href="https://example.com/ignored">Ignored</a>
</body></html>`)

	results := parseSearchResults(doc, 2)

	if len(results) != 2 {
		t.Fatalf("got %d results, want limit of 2", len(results))
	}
	if results[0].URL != "https://acme.com/about" {
		t.Errorf("redirect not resolved: %q", results[0].URL)
	}
	if results[0].Title != "Acme - About Us" {
		t.Errorf("title = %q", results[0].Title)
	}
	if results[1].URL != "https://example.com/direct" {
		t.Errorf("direct link = %q", results[1].URL)
	}
}
