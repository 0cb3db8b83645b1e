package domain

import (
	"strings"
	"time"
)

// DefaultLocationName is used when a user has not picked a location.
const DefaultLocationName = "Jerusalem"

// Location is a named place used to compute sunset for the day boundary.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
	TimeZone  string // IANA name
	Israel    bool   // false means one-day Diaspora leap alignment is observed
}

// Zone loads the location's time zone, falling back to UTC.
func (l Location) Zone() *time.Location {
	if l.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(l.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

var locations = []Location{
	{"Jerusalem", 31.778, 35.235, "Asia/Jerusalem", true},
	{"Tel Aviv", 32.0853, 34.7818, "Asia/Jerusalem", true},
	{"Bnei Brak", 32.0807, 34.8338, "Asia/Jerusalem", true},
	{"Haifa", 32.794, 34.9896, "Asia/Jerusalem", true},
	{"Beit Shemesh", 31.7470, 34.9881, "Asia/Jerusalem", true},
	{"New York", 40.7128, -74.006, "America/New_York", false},
	{"Lakewood", 40.0821, -74.2097, "America/New_York", false},
	{"Chicago", 41.8781, -87.6298, "America/Chicago", false},
	{"Los Angeles", 34.0522, -118.2437, "America/Los_Angeles", false},
	{"Toronto", 43.6532, -79.3832, "America/Toronto", false},
	{"Montreal", 45.5017, -73.5673, "America/Toronto", false},
	{"London", 51.5074, -0.1278, "Europe/London", false},
	{"Manchester", 53.4808, -2.2426, "Europe/London", false},
	{"Antwerp", 51.2194, 4.4025, "Europe/Brussels", false},
	{"Paris", 48.8566, 2.3522, "Europe/Paris", false},
	{"Moscow", 55.7558, 37.6173, "Europe/Moscow", false},
	{"Johannesburg", -26.2041, 28.0473, "Africa/Johannesburg", false},
	{"Melbourne", -37.8136, 144.9631, "Australia/Melbourne", false},
	{"Buenos Aires", -34.6037, -58.3816, "America/Argentina/Buenos_Aires", false},
}

// FindLocation looks a location up by name, case-insensitively.
func FindLocation(name string) (Location, bool) {
	for _, l := range locations {
		if strings.EqualFold(l.Name, strings.TrimSpace(name)) {
			return l, true
		}
	}
	return Location{}, false
}

// LocationOrDefault resolves name, falling back to Jerusalem.
func LocationOrDefault(name string) Location {
	if l, ok := FindLocation(name); ok {
		return l
	}
	l, _ := FindLocation(DefaultLocationName)
	return l
}

// Locations returns the built-in location list.
func Locations() []Location {
	out := make([]Location, len(locations))
	copy(out, locations)
	return out
}
