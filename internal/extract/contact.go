package extract

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// phoneLabelRe captures labelled phone numbers; bare number scraping
	// produces too many false hits on registration ids.
	phoneLabelRe = regexp.MustCompile(`(?im)^.*?\b(?:telefon|tel\.?|fon|phone|tél\.?|teléfono|telefono)\b\.?\s*:?\s*([+(]?[0-9][0-9\s()/.\-]{5,24}[0-9])`)
	faxLabelRe   = regexp.MustCompile(`(?im)^.*?\b(?:telefax|fax)\b\.?\s*:?\s*([+(]?[0-9][0-9\s()/.\-]{5,24}[0-9])`)
)

// extractEmails returns the deduplicated email addresses in text, with
// common "(at)" obfuscations resolved.
func extractEmails(text string) []string {
	deobfuscated := strings.NewReplacer(
		" (at) ", "@", "(at)", "@", " [at] ", "@", "[at]", "@",
		" (dot) ", ".", "(dot)", ".", " [dot] ", ".", "[dot]", ".",
	).Replace(text)
	seen := make(map[string]bool)
	var out []string
	for _, m := range emailRe.FindAllString(deobfuscated, -1) {
		low := strings.ToLower(m)
		// Image filenames like logo@2x.png match the shape.
		if strings.HasSuffix(low, ".png") || strings.HasSuffix(low, ".jpg") ||
			strings.HasSuffix(low, ".svg") || strings.HasSuffix(low, ".gif") ||
			strings.HasSuffix(low, ".webp") {
			continue
		}
		if !seen[low] {
			seen[low] = true
			out = append(out, low)
		}
	}
	return out
}

// extractPhones returns labelled phone numbers, deduplicated, raw form.
// Normalisation to international format happens in validation.
func extractPhones(text string) []string {
	return matchGroups(phoneLabelRe, text)
}

// extractFax returns the first labelled fax number.
func extractFax(text string) string {
	if fs := matchGroups(faxLabelRe, text); len(fs) > 0 {
		return fs[0]
	}
	return ""
}

func matchGroups(re *regexp.Regexp, text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		v := strings.TrimSpace(m[1])
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// personTitles are stripped from representative names.
var personTitles = []string{
	"Dr.", "Prof.", "Dipl.-Ing.", "Dipl.-Kfm.", "Mag.", "Ing.",
	"Herr", "Frau", "Mr.", "Mrs.", "Ms.", "M.", "Mme",
}

// splitPersons breaks a representative clause ("Max Mustermann und Erika
// Beispiel") into individual cleaned names.
func splitPersons(clause string) []string {
	clause = strings.TrimSpace(clause)
	// Cut trailing sentences glued onto the same line.
	for _, stop := range []string{" | ", " · ", ";", " - "} {
		if i := strings.Index(clause, stop); i > 0 {
			clause = clause[:i]
		}
	}
	parts := regexp.MustCompile(`\s*(?:,|&| und | and | et | e | y )\s*`).Split(clause, -1)
	var out []string
	for _, p := range parts {
		if name := CleanPersonName(p); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// CleanPersonName strips titles and rejects non-name shapes (2 to 4 tokens,
// no digits, no form or label tokens).
func CleanPersonName(raw string) string {
	s := strings.TrimSpace(strings.Trim(raw, ".,:;"))
	for changed := true; changed; {
		changed = false
		for _, title := range personTitles {
			if strings.HasPrefix(s, title+" ") || s == title {
				s = strings.TrimSpace(strings.TrimPrefix(s, title))
				changed = true
			}
		}
	}
	if strings.ContainsAny(s, "0123456789@") {
		return ""
	}
	tokens := strings.Fields(s)
	if len(tokens) < 2 || len(tokens) > 4 {
		return ""
	}
	lower := strings.ToLower(s)
	for _, label := range labelDenylist {
		if strings.Contains(lower, label) {
			return ""
		}
	}
	if FindLegalForm(s, "") != "" {
		return ""
	}
	return strings.Join(tokens, " ")
}
