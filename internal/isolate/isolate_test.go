package isolate

import (
	"strings"
	"testing"
)

const impressumPage = `<!DOCTYPE html>
<html><head><title>Impressum - Beispiel GmbH</title>
<style>body{color:#000}</style>
<script>var tracking = true;</script>
</head><body>
<nav class="navbar"><a href="/">Home</a><a href="/shop">Shop</a></nav>
<div class="cookie-consent">Wir verwenden Cookies. <button>OK</button></div>
<main>
<h1>Impressum</h1>
<p>Beispiel GmbH<br>Musterweg 7<br>80333 München</p>
<p>Geschäftsführer: Max Mustermann</p>
<p>HRB 12345 Amtsgericht München</p>
<p>Telefon: +49 89 123456<br>E-Mail: info@beispiel.de</p>
<p>Umsatzsteuer-Identifikationsnummer gemäß §27a UStG: DE123456789</p>
</main>
<aside class="sidebar">Newsletter abonnieren!</aside>
<footer class="site-footer"><a href="/datenschutz">Datenschutz</a></footer>
</body></html>`

func TestTextPreservesLines(t *testing.T) {
	text := Text(impressumPage, "https://beispiel.de/impressum")
	for _, want := range []string{
		"Beispiel GmbH",
		"Musterweg 7",
		"80333 München",
		"Geschäftsführer: Max Mustermann",
		"HRB 12345 Amtsgericht München",
	} {
		if !containsLine(text, want) {
			t.Errorf("missing line %q in:\n%s", want, text)
		}
	}

	// Name, street and postal line must stay separate lines, in order.
	lines := strings.Split(text, "\n")
	idx := map[string]int{}
	for i, l := range lines {
		idx[l] = i
	}
	if !(idx["Beispiel GmbH"] < idx["Musterweg 7"] && idx["Musterweg 7"] < idx["80333 München"]) {
		t.Errorf("address lines out of order:\n%s", text)
	}
}

func TestTextStripsBoilerplate(t *testing.T) {
	text := Text(impressumPage, "https://beispiel.de/impressum")
	for _, banned := range []string{"Cookies", "Newsletter", "var tracking"} {
		if strings.Contains(text, banned) {
			t.Errorf("boilerplate %q survived:\n%s", banned, text)
		}
	}
}

func TestTextDensestRegionFallback(t *testing.T) {
	// No <main>, no readability-friendly markup: a bare footer block.
	page := `<html><body>
	<div class="navbar">Home Shop Kontakt</div>
	<div id="bottom">
	Beispiel GmbH<br>Musterweg 7<br>80333 München<br>
	Vertreten durch den Geschäftsführer Max Mustermann. Registergericht ist das
	Amtsgericht München, Registernummer HRB 12345. Umsatzsteuer-ID DE123456789.
	</div>
	</body></html>`
	text := Text(page, "")
	if !strings.Contains(text, "Beispiel GmbH") || !strings.Contains(text, "80333 München") {
		t.Errorf("fallback missed content:\n%s", text)
	}
}

func TestNormalise(t *testing.T) {
	got := normalise("  Beispiel   GmbH  \n\n\n\nMusterweg\t7\n\n")
	want := "Beispiel GmbH\n\nMusterweg 7"
	if got != want {
		t.Errorf("normalise = %q, want %q", got, want)
	}
}

func containsLine(text, line string) bool {
	for _, l := range strings.Split(text, "\n") {
		if l == line {
			return true
		}
	}
	return false
}
