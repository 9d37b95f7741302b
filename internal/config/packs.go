package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// CountryPack is a user-supplied extractor pattern set loaded from YAML.
// Packs extend the built-in country extractors; they never replace them.
type CountryPack struct {
	Country        string   `yaml:"country"`
	TLDs           []string `yaml:"tlds"`
	LegalForms     []string `yaml:"legal_forms"`
	PostalPattern  string   `yaml:"postal_pattern"`
	RegisterLabels []string `yaml:"register_labels"`
	ContactLabels  []string `yaml:"contact_labels"`
	VATPattern     string   `yaml:"vat_pattern"`

	// Compiled from PostalPattern/VATPattern on load.
	PostalRe *regexp.Regexp `yaml:"-"`
	VATRe    *regexp.Regexp `yaml:"-"`
}

type packFile struct {
	Packs []CountryPack `yaml:"packs"`
}

// LoadCountryPacks reads and compiles extra country pattern packs from a
// YAML file. An empty path returns no packs.
func LoadCountryPacks(path string) ([]CountryPack, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read country pattern set: %w", err)
	}
	var f packFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse country pattern set: %w", err)
	}
	for i := range f.Packs {
		p := &f.Packs[i]
		if p.Country == "" {
			return nil, fmt.Errorf("country pattern set: pack %d has no country name", i)
		}
		if p.PostalPattern != "" {
			re, err := regexp.Compile(p.PostalPattern)
			if err != nil {
				return nil, fmt.Errorf("country pack %q: postal_pattern: %w", p.Country, err)
			}
			p.PostalRe = re
		}
		if p.VATPattern != "" {
			re, err := regexp.Compile(p.VATPattern)
			if err != nil {
				return nil, fmt.Errorf("country pack %q: vat_pattern: %w", p.Country, err)
			}
			p.VATRe = re
		}
	}
	return f.Packs, nil
}

// Blacklist holds domain exclusion patterns grouped by match mode.
type Blacklist struct {
	Exact   []string `yaml:"exact"`
	Suffix  []string `yaml:"suffix"`
	Keyword []string `yaml:"keyword"`
}

// LoadBlacklist reads a YAML blacklist file and merges in inline patterns
// from the environment. Inline patterns use suffix matching when they start
// with a dot, otherwise exact matching.
func LoadBlacklist(path string, inline []string) (*Blacklist, error) {
	bl := &Blacklist{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read blacklist: %w", err)
		}
		if err := yaml.Unmarshal(raw, bl); err != nil {
			return nil, fmt.Errorf("parse blacklist: %w", err)
		}
	}
	for _, p := range inline {
		if len(p) > 0 && p[0] == '.' {
			bl.Suffix = append(bl.Suffix, p)
		} else {
			bl.Exact = append(bl.Exact, p)
		}
	}
	return bl, nil
}
