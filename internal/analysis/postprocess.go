package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

var visibilityFractions = map[string]string{
	"0.125": "1/8",
	"0.25":  "1/4",
	"0.375": "3/8",
	"0.5":   "1/2",
	"0.625": "5/8",
	"0.75":  "3/4",
	"1.25":  "1 1/4",
	"1.5":   "1 1/2",
	"1.75":  "1 3/4",
}

// ExtractJSON returns the body of the first fenced code block, or the trimmed text.
// Empty input yields "{}".
func ExtractJSON(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	if m := fencedJSON.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return strings.TrimSpace(s)
}

// FormatVisibility rewrites decimal statute-mile visibilities as aviation fractions.
// Anything it does not recognise is returned unchanged.
func FormatVisibility(val string) string {
	clean := strings.TrimSpace(strings.ReplaceAll(strings.ToUpper(val), "SM", ""))
	if frac, ok := visibilityFractions[clean]; ok {
		return frac + " SM"
	}
	return val
}

// ParseSummary decodes a model response into a Summary and normalizes it
func ParseSummary(text string) (Summary, error) {
	var s Summary
	if err := json.Unmarshal([]byte(ExtractJSON(text)), &s); err != nil {
		return Summary{}, fmt.Errorf("failed to decode analysis JSON: %w", err)
	}

	s.Bubbles.Visibility = FormatVisibility(s.Bubbles.Visibility)
	if s.FlightCategory == "" {
		s.FlightCategory = CategoryUnknown
	}
	if s.CrosswindStatus == "" {
		s.CrosswindStatus = CrosswindUnknown
	}
	if s.AirspaceWarnings == nil {
		s.AirspaceWarnings = []string{}
	}
	if s.CriticalNOTAMs == nil {
		s.CriticalNOTAMs = []string{}
	}
	return s, nil
}

// Degraded is the placeholder summary served when the analysis fails.
// It is never cached.
func Degraded(err error) *Result {
	msg := "analysis unavailable"
	if err != nil {
		msg = err.Error()
	}
	return &Result{
		Degraded: true,
		Summary: Summary{
			FlightCategory:   CategoryUnknown,
			CrosswindStatus:  CrosswindUnknown,
			SummaryWeather:   "AI Parsing Error: " + msg,
			SummaryCrosswind: "--",
			SummaryAirspace:  "--",
			SummaryNOTAMs:    "--",
			Timeline: map[string]TimelineEntry{
				"t_06": {TimeLabel: "--", Summary: "Forecast unavailable"},
				"t_12": {TimeLabel: "--", Summary: "--"},
			},
			Bubbles:          Bubbles{Wind: "--", Visibility: "--", Ceiling: "--", Temp: "--"},
			AirspaceWarnings: []string{},
			CriticalNOTAMs:   []string{},
		},
	}
}
