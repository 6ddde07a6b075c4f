package config

import "strings"

// StateNames maps every supported state and territory code to its full name.
// HUD publishes FMR areas for the fifty states plus DC and the territories.
var StateNames = map[string]string{
	"AL": "Alabama",
	"AK": "Alaska",
	"AZ": "Arizona",
	"AR": "Arkansas",
	"CA": "California",
	"CO": "Colorado",
	"CT": "Connecticut",
	"DE": "Delaware",
	"FL": "Florida",
	"GA": "Georgia",
	"HI": "Hawaii",
	"ID": "Idaho",
	"IL": "Illinois",
	"IN": "Indiana",
	"IA": "Iowa",
	"KS": "Kansas",
	"KY": "Kentucky",
	"LA": "Louisiana",
	"ME": "Maine",
	"MD": "Maryland",
	"MA": "Massachusetts",
	"MI": "Michigan",
	"MN": "Minnesota",
	"MS": "Mississippi",
	"MO": "Missouri",
	"MT": "Montana",
	"NE": "Nebraska",
	"NV": "Nevada",
	"NH": "New Hampshire",
	"NJ": "New Jersey",
	"NM": "New Mexico",
	"NY": "New York",
	"NC": "North Carolina",
	"ND": "North Dakota",
	"OH": "Ohio",
	"OK": "Oklahoma",
	"OR": "Oregon",
	"PA": "Pennsylvania",
	"RI": "Rhode Island",
	"SC": "South Carolina",
	"SD": "South Dakota",
	"TN": "Tennessee",
	"TX": "Texas",
	"UT": "Utah",
	"VT": "Vermont",
	"VA": "Virginia",
	"WA": "Washington",
	"WV": "West Virginia",
	"WI": "Wisconsin",
	"WY": "Wyoming",
	"DC": "District of Columbia",
	"AS": "American Samoa",
	"GU": "Guam",
	"MP": "Northern Mariana Islands",
	"PR": "Puerto Rico",
	"VI": "Virgin Islands",
}

// stateCodes resolves lowercased full names back to their codes.
var stateCodes = buildStateCodes()

func buildStateCodes() map[string]string {
	codes := make(map[string]string, len(StateNames))
	for code, name := range StateNames {
		codes[strings.ToLower(name)] = code
	}
	return codes
}

// NormalizeState canonicalizes a state code or full name to its two letter
// uppercase code. It returns "" when the value does not identify a supported
// state or territory.
func NormalizeState(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if code, ok := stateCodes[strings.ToLower(value)]; ok {
		return code
	}
	code := strings.ToUpper(value)
	if _, ok := StateNames[code]; ok {
		return code
	}
	return ""
}

// IsStateCode reports whether code is a canonical two letter state code.
func IsStateCode(code string) bool {
	_, ok := StateNames[code]
	return ok
}

// StateName returns the full name for a canonical code, or "" when unknown.
func StateName(code string) string {
	return StateNames[code]
}
