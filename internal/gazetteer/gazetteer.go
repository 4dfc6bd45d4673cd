package gazetteer

import (
	"strings"
)

// DefaultDomesticPrefix is prepended to 3-character codes (BWI -> KBWI)
const DefaultDomesticPrefix = "K"

// Gazetteer resolves airport codes against static ICAO and local-identifier tables.
// It is built once and never mutated, so it is safe to share between goroutines.
type Gazetteer struct {
	byICAO         map[string]*Airport
	byLocalID      map[string]*Airport
	icaoOrder      []string
	domesticPrefix string
}

// New builds a gazetteer from a list of records. The first record for a given
// ICAO code or local identifier wins. Records without an ICAO code are only
// reachable through their local identifier.
func New(airports []Airport, domesticPrefix string) *Gazetteer {
	if domesticPrefix == "" {
		domesticPrefix = DefaultDomesticPrefix
	}

	g := &Gazetteer{
		byICAO:         make(map[string]*Airport, len(airports)),
		byLocalID:      make(map[string]*Airport),
		domesticPrefix: strings.ToUpper(domesticPrefix),
	}

	for i := range airports {
		a := airports[i]
		a.ICAO = normalize(a.ICAO)
		a.LocalID = normalize(a.LocalID)
		if a.Timezone == "" {
			a.Timezone = "UTC"
		}
		if a.Type == "" {
			a.Type = TypeSmall
		}
		rec := &a

		if a.ICAO != "" {
			if _, exists := g.byICAO[a.ICAO]; !exists {
				g.byICAO[a.ICAO] = rec
				g.icaoOrder = append(g.icaoOrder, a.ICAO)
			}
		}
		if a.LocalID != "" {
			if _, exists := g.byLocalID[a.LocalID]; !exists {
				g.byLocalID[a.LocalID] = rec
			}
		}
	}

	return g
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve normalizes a raw user code. Rules are applied in order, first match wins:
// exact ICAO, local identifier, domestic prefix for 3-character codes, passthrough.
func (g *Gazetteer) Resolve(raw string) Resolution {
	input := normalize(raw)
	res := Resolution{Input: input, Code: input, Method: MethodUnresolved}
	if input == "" {
		return res
	}

	if a, ok := g.byICAO[input]; ok {
		res.Airport = a
		res.Method = MethodExact
		return res
	}

	if a, ok := g.byLocalID[input]; ok {
		res.Airport = a
		res.Method = MethodLocalID
		if a.ICAO != "" {
			res.Code = a.ICAO
		}
		if len(input) == 3 {
			if prefixed, ok := g.byICAO[g.domesticPrefix+input]; ok && prefixed != a {
				res.Ambiguous = true
			}
		}
		return res
	}

	if len(input) == 3 {
		if a, ok := g.byICAO[g.domesticPrefix+input]; ok {
			res.Airport = a
			res.Code = a.ICAO
			res.Method = MethodDomesticPrefix
			return res
		}
	}

	return res
}

// Lookup returns the record for an exact code, checking the ICAO table first and
// the local-identifier table second.
func (g *Gazetteer) Lookup(code string) (*Airport, bool) {
	code = normalize(code)
	if a, ok := g.byICAO[code]; ok {
		return a, true
	}
	a, ok := g.byLocalID[code]
	return a, ok
}

// All calls fn for every ICAO-keyed airport in load order until fn returns false
func (g *Gazetteer) All(fn func(*Airport) bool) {
	for _, code := range g.icaoOrder {
		if !fn(g.byICAO[code]) {
			return
		}
	}
}

// Len returns the number of ICAO-keyed airports
func (g *Gazetteer) Len() int {
	return len(g.byICAO)
}

// LocalIDCount returns the number of local-identifier entries
func (g *Gazetteer) LocalIDCount() int {
	return len(g.byLocalID)
}

// RunwayHeadings returns a copy of the runway end headings for a code, or an empty map
func (g *Gazetteer) RunwayHeadings(code string) map[string]float64 {
	headings := make(map[string]float64)
	a, ok := g.Lookup(code)
	if !ok {
		return headings
	}
	for ident, hdg := range a.Runways {
		headings[ident] = hdg
	}
	return headings
}
