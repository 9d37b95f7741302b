package preflight

import "strings"

// parkedIndicators are registrar and placeholder boilerplate phrases. A home
// page containing any of them is classified PARKED.
var parkedIndicators = []string{
	"this domain is parked",
	"domain is for sale",
	"diese domain ist zu verkaufen",
	"diese domain wurde geparkt",
	"buy this domain",
	"domain kaufen",
	"under construction",
	"website coming soon",
	"seite befindet sich im aufbau",
	"this webpage was generated by the domain owner",
	"parked free, courtesy of",
	"sedoparking",
	"domainparking",
	"sponsored listings",
}

// DetectParked scans home-page text for parked-domain boilerplate.
func DetectParked(pageText string) bool {
	t := strings.ToLower(pageText)
	for _, ind := range parkedIndicators {
		if strings.Contains(t, ind) {
			return true
		}
	}
	return false
}
