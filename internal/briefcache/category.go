package briefcache

import (
	"strings"
)

// Category is the coarse aircraft class used in cache keys
type Category string

const (
	CategorySmall  Category = "SMALL"
	CategoryMedium Category = "MEDIUM"
	CategoryLarge  Category = "LARGE"
)

var (
	largeKeywords  = []string{"boeing", "airbus", "737", "747", "a320", "gulfstream", "global", "crj", "erj"}
	mediumKeywords = []string{"king air", "pilatus", "pc-12", "citation", "phenom", "learjet", "tbm"}
)

// CategoryOf classifies a free-text aircraft description
func CategoryOf(description string) Category {
	d := strings.ToLower(strings.TrimSpace(description))
	if containsAny(d, largeKeywords) {
		return CategoryLarge
	}
	if containsAny(d, mediumKeywords) {
		return CategoryMedium
	}
	return CategorySmall
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Key identifies a cached briefing
type Key struct {
	ICAO     string
	Category Category
}

// KeyFor builds the composite key for an airport and aircraft description
func KeyFor(icao, description string) Key {
	return Key{ICAO: strings.ToUpper(strings.TrimSpace(icao)), Category: CategoryOf(description)}
}

func (k Key) String() string {
	return k.ICAO + "_" + string(k.Category)
}
