package geo

import "fmt"

// Severity classifies a restricted zone
type Severity string

const (
	SeverityProhibited Severity = "PROHIBITED"
	SeverityRestricted Severity = "RESTRICTED"
)

// ProximityBufferNM is the band outside a zone radius that still produces an advisory
const ProximityBufferNM = 5.0

// Zone is a circular permanent airspace restriction
type Zone struct {
	ID       string
	Name     string
	Lat      float64
	Lon      float64
	RadiusNM float64
	Severity Severity
}

// Zones is the static restricted-airspace table. Order is significant: warnings
// are emitted in this order.
var Zones = []Zone{
	{ID: "DC_SFRA", Name: "Washington DC SFRA", Lat: 38.8512, Lon: -77.0377, RadiusNM: 30, Severity: SeverityRestricted},
	{ID: "DC_FRZ", Name: "Washington DC Flight Restricted Zone (FRZ)", Lat: 38.8512, Lon: -77.0377, RadiusNM: 13, Severity: SeverityProhibited},
	{ID: "P_40", Name: "P-40 (Camp David)", Lat: 39.6483, Lon: -77.4636, RadiusNM: 5, Severity: SeverityProhibited},
	{ID: "P_47", Name: "P-47 (Pantex Nuclear Facility, TX)", Lat: 35.3130, Lon: -101.5580, RadiusNM: 4, Severity: SeverityProhibited},
	{ID: "P_49", Name: "P-49 (Crawford, TX)", Lat: 31.5800, Lon: -97.4100, RadiusNM: 5, Severity: SeverityProhibited},
	{ID: "P_50", Name: "P-50 (Kings Bay Sub Base, GA)", Lat: 30.7967, Lon: -81.5200, RadiusNM: 3, Severity: SeverityProhibited},
	{ID: "P_51", Name: "P-51 (Bangor Sub Base, WA)", Lat: 47.7300, Lon: -122.7200, RadiusNM: 4, Severity: SeverityProhibited},
	{ID: "DISNEY_FL", Name: "Disney World (The Mouse)", Lat: 28.4179, Lon: -81.5812, RadiusNM: 3, Severity: SeverityRestricted},
	{ID: "DISNEY_CA", Name: "Disneyland", Lat: 33.8121, Lon: -117.9190, RadiusNM: 3, Severity: SeverityRestricted},
}

// CheckZones classifies the point against the static zone table.
func CheckZones(code string, lat, lon float64) []string {
	return CheckZonesIn(Zones, code, lat, lon)
}

// CheckZonesIn classifies the point against every zone independently and returns one
// message per zone that is hit or nearly hit, in table order.
func CheckZonesIn(zones []Zone, code string, lat, lon float64) []string {
	var warnings []string

	for _, zone := range zones {
		dist := DistanceNM(lat, lon, zone.Lat, zone.Lon)

		switch {
		case dist <= zone.RadiusNM:
			if zone.Severity == SeverityProhibited {
				warnings = append(warnings, fmt.Sprintf(
					"CRITICAL: %s is located within the %s (%.1fnm from center). Flight strictly restricted; special procedures required.",
					code, zone.Name, dist))
			} else {
				warnings = append(warnings, fmt.Sprintf(
					"WARNING: %s is located within the %s (%.1fnm from center). Special procedures required.",
					code, zone.Name, dist))
			}
		case dist <= zone.RadiusNM+ProximityBufferNM:
			warnings = append(warnings, fmt.Sprintf(
				"ADVISORY: %s is just outside (%.1fnm from the center) of the %s. Exercise caution near boundary.",
				code, dist, zone.Name))
		}
	}

	return warnings
}
