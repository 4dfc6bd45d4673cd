package analysis

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// SameAirportNM is the distance under which the reporting station counts as the target itself
const SameAirportNM = 2.0

var profiles = map[string]string{
	"SMALL":  "Cessna 172/Piper Archer (Max Crosswind: 15kts, IFR: No Radar)",
	"MEDIUM": "Baron/Cirrus SR22 (Max Crosswind: 20kts, IFR: Capable)",
	"LARGE":  "TBM/Citation (Max Crosswind: 30kts, High Altitude Capable)",
}

// ProfileFor returns the aircraft profile line for a category, SMALL when unknown
func ProfileFor(category string) string {
	if p, ok := profiles[strings.ToUpper(category)]; ok {
		return p
	}
	return profiles["SMALL"]
}

type systemData struct {
	Profile  string
	Timezone string
	Opening  string
}

type userData struct {
	Target           string
	Station          string
	DistanceNM       float64
	Runways          []RunwayHeading
	AirspaceWarnings []string
	METAR            string
	Temperature      string // observed, empty when the report has none
	TAF              string
	NOTAMs           []string
}

// BuildPrompt renders the system and user messages for a request
func BuildPrompt(req Request) (Prompt, error) {
	target := targetDisplay(req)
	station := req.ReportingStation
	if station == "" {
		station = req.Code
	}

	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}

	sys := systemData{
		Profile:  ProfileFor(req.AircraftCategory),
		Timezone: tz,
		Opening:  openingInstruction(req, target, station),
	}
	user := userData{
		Target:           target,
		Station:          station,
		DistanceNM:       req.DistanceNM,
		Runways:          req.Runways,
		AirspaceWarnings: req.AirspaceWarnings,
		METAR:            req.Weather.METAR,
		Temperature:      observedTemperature(req.Weather.METAR),
		TAF:              req.Weather.TAF,
		NOTAMs:           req.NOTAMs,
	}

	var s, u bytes.Buffer
	if err := templates.ExecuteTemplate(&s, "system.tmpl", sys); err != nil {
		return Prompt{}, fmt.Errorf("failed to render system prompt: %w", err)
	}
	if err := templates.ExecuteTemplate(&u, "user.tmpl", user); err != nil {
		return Prompt{}, fmt.Errorf("failed to render user prompt: %w", err)
	}

	return Prompt{System: s.String(), User: u.String()}, nil
}

func observedTemperature(metar string) string {
	c, ok := weather.ParseTemperature(metar)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.1fC (%.0fF)", c, c*9/5+32)
}

// IsSameAirport reports whether the weather came from the target airport itself
func IsSameAirport(req Request) bool {
	return req.ReportingStation == "" || req.ReportingStation == req.Code || req.DistanceNM < SameAirportNM
}

func targetDisplay(req Request) string {
	if req.Name != "" && req.Name != req.Code {
		return fmt.Sprintf("%s (%s)", req.Name, req.Code)
	}
	return req.Code
}

func openingInstruction(req Request, target, station string) string {
	switch {
	case !req.Weather.HasWeather():
		return fmt.Sprintf("Start the weather section exactly with: 'No weather data available within 50nm of %s.'", target)
	case IsSameAirport(req):
		return fmt.Sprintf("Start the weather section exactly with: 'Conditions at %s are...'", target)
	default:
		return fmt.Sprintf("Start the weather section exactly with: 'Weather reported at %s (%.1fnm away) indicates...'", station, req.DistanceNM)
	}
}
