package discover

import (
	"strings"
	"testing"
)

const homePage = `<!DOCTYPE html>
<html><body>
<nav>
  <a href="/">Home</a>
  <a href="/shop">Shop</a>
  <a href="/shop/kategorie/impressum-rahmen">Bilderrahmen "Impressum"</a>
</nav>
<main>
  <p>Willkommen bei Beispiel.</p>
  <a href="https://other-site.example.com/impressum" >Partner Impressum</a>
  <a href="/agb" rel="nofollow">AGB</a>
</main>
<footer class="site-footer">
  <a href="/impressum">Impressum</a>
  <a href="/datenschutz">Datenschutz</a>
  <a href="/kontakt">Kontakt</a>
</footer>
</body></html>`

func TestLegalURLsRanking(t *testing.T) {
	urls := LegalURLs(homePage, "https://example.de/", 3)
	if len(urls) != 3 {
		t.Fatalf("got %d candidates: %v", len(urls), urls)
	}
	if urls[0] != "https://example.de/impressum" {
		t.Errorf("top candidate = %q, want /impressum", urls[0])
	}
	for _, u := range urls {
		if strings.Contains(u, "other-site") {
			t.Errorf("external host leaked: %q", u)
		}
		if strings.Contains(u, "/agb") {
			t.Errorf("nofollow link leaked: %q", u)
		}
	}
}

func TestLegalURLsShallownessTieBreak(t *testing.T) {
	page := `<html><body><footer>
	<a href="/de/unternehmen/rechtliches/impressum">Impressum</a>
	<a href="/impressum">Impressum</a>
	</footer></body></html>`
	urls := LegalURLs(page, "https://example.de/", 2)
	if len(urls) != 2 {
		t.Fatalf("got %v", urls)
	}
	if urls[0] != "https://example.de/impressum" {
		t.Errorf("shallower path should win: %v", urls)
	}
}

func TestLegalURLsEmpty(t *testing.T) {
	urls := LegalURLs("<html><body><a href='/shop'>Shop</a></body></html>", "https://example.de/", 3)
	if len(urls) != 0 {
		t.Errorf("want no candidates, got %v", urls)
	}
}

func TestFallbackURLs(t *testing.T) {
	urls := FallbackURLs("https://www.example.at/", 3)
	want := []string{
		"https://www.example.at/impressum",
		"https://www.example.at/impressum.html",
		"https://www.example.at/imprint",
	}
	if len(urls) != len(want) {
		t.Fatalf("got %v", urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
}
