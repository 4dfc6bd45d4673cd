package gazetteer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAirports() []Airport {
	return []Airport{
		{ICAO: "KBWI", LocalID: "BWI", Name: "Baltimore/Washington Intl", Lat: 39.1754, Lon: -76.6683, Timezone: "America/New_York", Type: TypeLarge},
		{ICAO: "KDCA", LocalID: "DCA", Name: "Ronald Reagan Washington National", Lat: 38.8521, Lon: -77.0377, Timezone: "America/New_York", Type: TypeLarge},
		{ICAO: "EGLL", Name: "London Heathrow", Lat: 51.4706, Lon: -0.4619, Timezone: "Europe/London", Type: TypeLarge},
		// Only reachable through the domestic prefix
		{ICAO: "KXYZ", Name: "Prefix Only Field", Lat: 40, Lon: -80, Type: TypeSmall},
		// Local identifier collides with the K-prefixed ICAO of another airport
		{ICAO: "KABC", Name: "Alpha Bravo Charlie", Lat: 41, Lon: -81, Type: TypeMedium},
		{ICAO: "", LocalID: "ABC", Name: "Local ABC Strip", Lat: 42, Lon: -82, Type: TypeSmall},
	}
}

func TestResolve(t *testing.T) {
	g := New(testAirports(), "")

	tests := []struct {
		name      string
		input     string
		code      string
		method    ResolveMethod
		resolved  bool
		ambiguous bool
	}{
		{"exact icao", "KBWI", "KBWI", MethodExact, true, false},
		{"lowercase and whitespace", "  kbwi ", "KBWI", MethodExact, true, false},
		{"local id maps to icao", "BWI", "KBWI", MethodLocalID, true, false},
		{"domestic prefix", "XYZ", "KXYZ", MethodDomesticPrefix, true, false},
		{"local id wins over prefix", "ABC", "ABC", MethodLocalID, true, true},
		{"non-us icao", "egll", "EGLL", MethodExact, true, false},
		{"unknown passthrough", "ZZZZ", "ZZZZ", MethodUnresolved, false, false},
		{"unknown three letter", "QQQ", "QQQ", MethodUnresolved, false, false},
		{"empty", "", "", MethodUnresolved, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := g.Resolve(tt.input)
			assert.Equal(t, tt.code, res.Code)
			assert.Equal(t, tt.method, res.Method)
			assert.Equal(t, tt.resolved, res.Resolved())
			assert.Equal(t, tt.ambiguous, res.Ambiguous)
		})
	}
}

func TestResolveLocalIDAirportName(t *testing.T) {
	g := New(testAirports(), "K")

	res := g.Resolve("ABC")
	require.True(t, res.Resolved())
	assert.Equal(t, "Local ABC Strip", res.Airport.Name)

	res = g.Resolve("KABC")
	require.True(t, res.Resolved())
	assert.Equal(t, "Alpha Bravo Charlie", res.Airport.Name)
}

func TestResolveCustomPrefix(t *testing.T) {
	g := New([]Airport{{ICAO: "CYYZ", Name: "Toronto Pearson", Lat: 43.68, Lon: -79.63}}, "c")

	res := g.Resolve("YYZ")
	assert.Equal(t, "CYYZ", res.Code)
	assert.Equal(t, MethodDomesticPrefix, res.Method)
}

func TestLookupAndDefaults(t *testing.T) {
	g := New(testAirports(), "")

	a, ok := g.Lookup("kxyz")
	require.True(t, ok)
	assert.Equal(t, "UTC", a.Timezone)

	a, ok = g.Lookup("ABC")
	require.True(t, ok)
	assert.Equal(t, "Local ABC Strip", a.Name)

	_, ok = g.Lookup("NOPE")
	assert.False(t, ok)

	assert.Equal(t, 5, g.Len())
	assert.Equal(t, 3, g.LocalIDCount())
}

func TestAllStopsEarly(t *testing.T) {
	g := New(testAirports(), "")

	var seen []string
	g.All(func(a *Airport) bool {
		seen = append(seen, a.ICAO)
		return len(seen) < 2
	})
	assert.Equal(t, []string{"KBWI", "KDCA"}, seen)
}

func TestReadAirportsHeaderAliases(t *testing.T) {
	csvData := strings.Join([]string{
		"ident,type,name,latitude_deg,longitude_deg,gps_code,local_code",
		"00A,heliport,Total Rf Heliport,40.07,-74.93,K00A,00A",
		"KBWI,large_airport,Baltimore/Washington Intl,39.1754,-76.6683,KBWI,BWI",
		"BAD,small_airport,Broken Coords,north,-70,,",
	}, "\n")

	airports, err := ReadAirports(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, airports, 2)

	// "ident" is listed after "gps_code" in the alias order, so gps_code wins
	assert.Equal(t, "K00A", airports[0].ICAO)
	assert.Equal(t, TypeOther, airports[0].Type)
	assert.Equal(t, "KBWI", airports[1].ICAO)
	assert.Equal(t, "BWI", airports[1].LocalID)
	assert.Equal(t, TypeLarge, airports[1].Type)
	assert.InDelta(t, 39.1754, airports[1].Lat, 1e-9)
}

func TestReadAirportsMissingColumns(t *testing.T) {
	_, err := ReadAirports(strings.NewReader("name,city\nfoo,bar\n"))
	assert.Error(t, err)
}

func TestLoadFilesWithRunways(t *testing.T) {
	dir := t.TempDir()
	airportsPath := filepath.Join(dir, "airports.csv")
	runwaysPath := filepath.Join(dir, "runways.csv")

	require.NoError(t, os.WriteFile(airportsPath, []byte(
		"icao,lid,name,lat,lon,tz,type\n"+
			"KBWI,BWI,Baltimore/Washington Intl,39.1754,-76.6683,America/New_York,large_airport\n"), 0o644))
	require.NoError(t, os.WriteFile(runwaysPath, []byte(
		"airport_ident,le_ident,le_heading_degT,he_ident,he_heading_degT\n"+
			"KBWI,10,100.5,28,280.5\n"+
			"KBWI,15R,,33L,335\n"), 0o644))

	g, err := LoadFiles(airportsPath, runwaysPath, "K")
	require.NoError(t, err)

	res := g.Resolve("bwi")
	require.True(t, res.Resolved())
	assert.Equal(t, "America/New_York", res.Airport.Timezone)

	headings := g.RunwayHeadings("BWI")
	assert.Equal(t, map[string]float64{"10": 100.5, "28": 280.5, "33L": 335}, headings)

	// Returned map is a copy
	headings["10"] = 0
	assert.Equal(t, 100.5, g.RunwayHeadings("KBWI")["10"])

	assert.Empty(t, g.RunwayHeadings("KJFK"))
}

func TestLoadFilesMissing(t *testing.T) {
	_, err := LoadFiles(filepath.Join(t.TempDir(), "nope.csv"), "", "K")
	assert.Error(t, err)
}
