package gazetteer

// AirportType classifies an airport by size
type AirportType string

const (
	TypeLarge  AirportType = "large"
	TypeMedium AirportType = "medium"
	TypeSmall  AirportType = "small"
	TypeOther  AirportType = "other"
)

// ParseAirportType maps dataset classifications ("large_airport", "medium", ...)
// onto AirportType. Unknown values map to TypeOther, empty to TypeSmall.
func ParseAirportType(s string) AirportType {
	switch s {
	case "large_airport", "large":
		return TypeLarge
	case "medium_airport", "medium":
		return TypeMedium
	case "small_airport", "small", "":
		return TypeSmall
	default:
		return TypeOther
	}
}

// IsMajor reports whether the airport is large or medium
func (t AirportType) IsMajor() bool {
	return t == TypeLarge || t == TypeMedium
}

// Airport is an immutable gazetteer record
type Airport struct {
	ICAO     string             `json:"icao"`
	LocalID  string             `json:"local_id,omitempty"`
	Name     string             `json:"name"`
	Lat      float64            `json:"lat"`
	Lon      float64            `json:"lon"`
	Timezone string             `json:"timezone"`
	Type     AirportType        `json:"type"`
	Runways  map[string]float64 `json:"runways,omitempty"` // runway end ident -> true heading
}

// ResolveMethod records which resolution rule produced a code
type ResolveMethod string

const (
	MethodExact          ResolveMethod = "exact"
	MethodLocalID        ResolveMethod = "local_id"
	MethodDomesticPrefix ResolveMethod = "domestic_prefix"
	MethodUnresolved     ResolveMethod = "unresolved"
)

// Resolution is the outcome of normalizing a user supplied code
type Resolution struct {
	Input   string        // uppercased, trimmed input
	Code    string        // canonical code, or the input when unresolved
	Airport *Airport      // nil when unresolved
	Method  ResolveMethod //
	// Ambiguous is set when a 3-character input matched a local identifier while
	// the domestic-prefixed ICAO code names a different airport.
	Ambiguous bool
}

// Resolved reports whether an airport record was found
func (r Resolution) Resolved() bool {
	return r.Airport != nil
}
