// Package address normalizes free-form address input before it reaches a carrier.
package address

import (
	"log/slog"
	"strings"

	"github.com/BearBump/ShipBox/internal/models"
)

// DefaultCountryCode is used when the input cannot be recognized.
const DefaultCountryCode = "US"

var countryCodes = map[string]string{
	"united states":            "US",
	"united states of america": "US",
	"usa":                      "US",
	"u.s.":                     "US",
	"u.s.a.":                   "US",
	"america":                  "US",
	"canada":                   "CA",
	"mexico":                   "MX",
	"united kingdom":           "GB",
	"great britain":            "GB",
	"britain":                  "GB",
	"england":                  "GB",
	"scotland":                 "GB",
	"wales":                    "GB",
	"northern ireland":         "GB",
	"ireland":                  "IE",
	"belgium":                  "BE",
	"belgique":                 "BE",
	"belgie":                   "BE",
	"belgië":                   "BE",
	"netherlands":              "NL",
	"the netherlands":          "NL",
	"holland":                  "NL",
	"nederland":                "NL",
	"luxembourg":               "LU",
	"france":                   "FR",
	"germany":                  "DE",
	"deutschland":              "DE",
	"austria":                  "AT",
	"switzerland":              "CH",
	"schweiz":                  "CH",
	"suisse":                   "CH",
	"italy":                    "IT",
	"italia":                   "IT",
	"spain":                    "ES",
	"espana":                   "ES",
	"españa":                   "ES",
	"portugal":                 "PT",
	"denmark":                  "DK",
	"sweden":                   "SE",
	"norway":                   "NO",
	"finland":                  "FI",
	"iceland":                  "IS",
	"poland":                   "PL",
	"czech republic":           "CZ",
	"czechia":                  "CZ",
	"slovakia":                 "SK",
	"hungary":                  "HU",
	"romania":                  "RO",
	"bulgaria":                 "BG",
	"greece":                   "GR",
	"croatia":                  "HR",
	"slovenia":                 "SI",
	"serbia":                   "RS",
	"estonia":                  "EE",
	"latvia":                   "LV",
	"lithuania":                "LT",
	"ukraine":                  "UA",
	"turkey":                   "TR",
	"turkiye":                  "TR",
	"türkiye":                  "TR",
	"israel":                   "IL",
	"united arab emirates":     "AE",
	"uae":                      "AE",
	"saudi arabia":             "SA",
	"qatar":                    "QA",
	"egypt":                    "EG",
	"morocco":                  "MA",
	"nigeria":                  "NG",
	"kenya":                    "KE",
	"south africa":             "ZA",
	"india":                    "IN",
	"pakistan":                 "PK",
	"bangladesh":               "BD",
	"china":                    "CN",
	"hong kong":                "HK",
	"taiwan":                   "TW",
	"japan":                    "JP",
	"south korea":              "KR",
	"korea":                    "KR",
	"republic of korea":        "KR",
	"singapore":                "SG",
	"malaysia":                 "MY",
	"thailand":                 "TH",
	"vietnam":                  "VN",
	"viet nam":                 "VN",
	"indonesia":                "ID",
	"philippines":              "PH",
	"australia":                "AU",
	"new zealand":              "NZ",
	"brazil":                   "BR",
	"brasil":                   "BR",
	"argentina":                "AR",
	"chile":                    "CL",
	"colombia":                 "CO",
	"peru":                     "PE",
	"puerto rico":              "PR",
}

// NormalizeCountryCode coerces a country name or code into an ISO-3166 alpha-2 code.
// It never fails: unrecognized input becomes DefaultCountryCode and a warning is logged.
func NormalizeCountryCode(in string) string {
	s := strings.TrimSpace(in)
	if isTwoLetters(s) {
		return strings.ToUpper(s)
	}
	if code, ok := countryCodes[strings.ToLower(s)]; ok {
		return code
	}
	slog.Warn("unrecognized country, falling back", "input", in, "country", DefaultCountryCode)
	return DefaultCountryCode
}

// NormalizeAddress returns a copy of a with its country normalized.
func NormalizeAddress(a models.Address) models.Address {
	a.Country = NormalizeCountryCode(a.Country)
	return a
}

func isTwoLetters(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
