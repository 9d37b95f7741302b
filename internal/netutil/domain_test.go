package netutil

import "testing"

func TestNormalizeHost(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Example.DE", "example.de"},
		{"https://www.example.de/impressum", "example.de"},
		{"example.de:8080", "example.de"},
		{"www.example.co.uk", "example.co.uk"},
		{"example.de.", "example.de"},
		{"  example.fr ", "example.fr"},
	}
	for _, c := range cases {
		if got := NormalizeHost(c.in); got != c.want {
			t.Errorf("NormalizeHost(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRegisteredDomain(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"shop.example.co.uk", "example.co.uk"},
		{"example.de", "example.de"},
		{"a.b.example.de", "example.de"},
	}
	for _, c := range cases {
		if got := RegisteredDomain(c.in); got != c.want {
			t.Errorf("RegisteredDomain(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSecondLevelLabel(t *testing.T) {
	if got := SecondLevelLabel("www.beispiel-firma.de"); got != "beispiel-firma" {
		t.Errorf("SecondLevelLabel = %q", got)
	}
}

func TestTLD(t *testing.T) {
	if got := TLD("https://example.at/"); got != "at" {
		t.Errorf("TLD = %q", got)
	}
}
