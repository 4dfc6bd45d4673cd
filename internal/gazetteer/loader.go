package gazetteer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Column aliases, in order of preference. Both OurAirports exports and
// airportsdata-style CSVs are accepted.
var (
	colICAO     = []string{"icao", "icao_code", "gps_code", "ident"}
	colLocalID  = []string{"lid", "local_code"}
	colName     = []string{"name"}
	colLat      = []string{"lat", "latitude_deg", "latitude"}
	colLon      = []string{"lon", "longitude_deg", "longitude"}
	colTimezone = []string{"tz", "timezone"}
	colType     = []string{"type"}

	colRunwayAirport = []string{"airport_ident", "icao"}
	colLEIdent       = []string{"le_ident"}
	colLEHeading     = []string{"le_heading_degt"}
	colHEIdent       = []string{"he_ident"}
	colHEHeading     = []string{"he_heading_degt"}
)

// LoadFiles loads airports from airportsPath and, when runwaysPath is not empty,
// attaches runway headings from runwaysPath.
func LoadFiles(airportsPath, runwaysPath, domesticPrefix string) (*Gazetteer, error) {
	f, err := os.Open(airportsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open airports database: %w", err)
	}
	defer f.Close()

	airports, err := ReadAirports(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read airports database %s: %w", airportsPath, err)
	}

	if runwaysPath != "" {
		rf, err := os.Open(runwaysPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open runways database: %w", err)
		}
		defer rf.Close()

		runways, err := ReadRunways(rf)
		if err != nil {
			return nil, fmt.Errorf("failed to read runways database %s: %w", runwaysPath, err)
		}
		AttachRunways(airports, runways)
	}

	return New(airports, domesticPrefix), nil
}

// ReadAirports parses an airports CSV with a header row. Rows with unparseable
// coordinates are skipped.
func ReadAirports(r io.Reader) ([]Airport, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := indexHeader(header)

	icaoCols := cols.all(colICAO)
	latCol, lonCol := cols.first(colLat), cols.first(colLon)
	if len(icaoCols) == 0 || latCol < 0 || lonCol < 0 {
		return nil, fmt.Errorf("airports CSV must have code, latitude and longitude columns")
	}
	nameCol := cols.first(colName)
	lidCol := cols.first(colLocalID)
	tzCol := cols.first(colTimezone)
	typeCol := cols.first(colType)

	var airports []Airport
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		lat, err := strconv.ParseFloat(field(record, latCol), 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(field(record, lonCol), 64)
		if err != nil {
			continue
		}

		var icao string
		for _, c := range icaoCols {
			if v := field(record, c); v != "" {
				icao = v
				break
			}
		}

		a := Airport{
			ICAO:     icao,
			LocalID:  field(record, lidCol),
			Name:     field(record, nameCol),
			Lat:      lat,
			Lon:      lon,
			Timezone: field(record, tzCol),
			Type:     ParseAirportType(field(record, typeCol)),
		}
		if a.ICAO == "" && a.LocalID == "" {
			continue
		}
		airports = append(airports, a)
	}

	return airports, nil
}

// RunwayEnds maps an airport code to its runway end headings
type RunwayEnds map[string]map[string]float64

// ReadRunways parses an OurAirports runways CSV. Ends without a heading are skipped.
func ReadRunways(r io.Reader) (RunwayEnds, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := indexHeader(header)
	aptCol := cols.first(colRunwayAirport)
	if aptCol < 0 {
		return nil, fmt.Errorf("runways CSV must have an airport_ident column")
	}
	ends := [][2]int{
		{cols.first(colLEIdent), cols.first(colLEHeading)},
		{cols.first(colHEIdent), cols.first(colHEHeading)},
	}

	runways := make(RunwayEnds)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		code := strings.ToUpper(field(record, aptCol))
		if code == "" {
			continue
		}
		for _, end := range ends {
			ident := field(record, end[0])
			hdg, err := strconv.ParseFloat(field(record, end[1]), 64)
			if ident == "" || err != nil {
				continue
			}
			if runways[code] == nil {
				runways[code] = make(map[string]float64)
			}
			runways[code][ident] = hdg
		}
	}

	return runways, nil
}

// AttachRunways sets runway headings on airports, matching by ICAO code first
// and local identifier second.
func AttachRunways(airports []Airport, runways RunwayEnds) {
	for i := range airports {
		a := &airports[i]
		if r, ok := runways[strings.ToUpper(a.ICAO)]; ok {
			a.Runways = r
		} else if r, ok := runways[strings.ToUpper(a.LocalID)]; ok && a.LocalID != "" {
			a.Runways = r
		}
	}
}

type headerIndex map[string]int

func indexHeader(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, exists := idx[h]; !exists {
			idx[h] = i
		}
	}
	return idx
}

func (h headerIndex) first(names []string) int {
	for _, n := range names {
		if i, ok := h[n]; ok {
			return i
		}
	}
	return -1
}

func (h headerIndex) all(names []string) []int {
	var out []int
	for _, n := range names {
		if i, ok := h[n]; ok {
			out = append(out, i)
		}
	}
	return out
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
