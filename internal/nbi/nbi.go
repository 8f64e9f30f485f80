// Package nbi models the National Bridge Inventory extract and the inventory
// prefilter that runs before any geometry is derived.
package nbi

import (
	"math"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// feetPerMeter converts the inventory's structure length to meters.
const feetPerMeter = 3.281

// BridgeRecord is one structure from the inventory extract. The structure
// number is the unique key; records are immutable once loaded except for
// removal by the prefilter.
type BridgeRecord struct {
	StructureNumber    string  `csv:"structure_number"`
	Latitude           float64 `csv:"latitude"`
	Longitude          float64 `csv:"longitude"`
	FacilityCarried    string  `csv:"facility_carried_name"`
	FeatureIntersected string  `csv:"feature_intersected_name"`
	StructureLengthFt  float64 `csv:"structure_length_ft"`
	SpanDesign         string  `csv:"span_design"`
	OperationalStatus  string  `csv:"operational_status_code"`
}

// LengthMeters converts the structure length from feet, rounded to two
// decimals. The conversion happens regardless of any later projection outcome.
func (b BridgeRecord) LengthMeters() float64 {
	return math.Round(b.StructureLengthFt/feetPerMeter*100) / 100
}

// LoadCSV reads a bridge inventory extract. A missing file or a header
// without the required columns aborts the run with the path in the error.
func LoadCSV(path string) ([]BridgeRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "nbi: read inventory %s", path)
	}

	var records []BridgeRecord
	if err := csvutil.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "nbi: parse inventory %s", path)
	}
	for i := range records {
		records[i].StructureNumber = strings.TrimSpace(records[i].StructureNumber)
	}
	return records, nil
}

// FilterCounts reports how many records each prefilter rule removed. The
// counts feed the audit ledger.
type FilterCounts struct {
	DuplicateCoordinates int
	NonPostedCulverts    int
}

// Filter removes records the pipeline must never edit:
//   - duplicate coordinate pairs (the first occurrence survives)
//   - structure numbers containing "*" (inventory duplicates)
//   - culverts whose operational status is not posted ("P")
//
// Order of input is preserved for the survivors.
func Filter(records []BridgeRecord) ([]BridgeRecord, FilterCounts) {
	var counts FilterCounts

	type coordKey struct{ lat, lon float64 }
	seen := make(map[coordKey]bool, len(records))

	out := make([]BridgeRecord, 0, len(records))
	for _, r := range records {
		key := coordKey{r.Latitude, r.Longitude}
		if seen[key] || strings.Contains(r.StructureNumber, "*") {
			counts.DuplicateCoordinates++
			continue
		}
		seen[key] = true

		if r.SpanDesign == "Culvert" && r.OperationalStatus != "P" {
			counts.NonPostedCulverts++
			continue
		}

		out = append(out, r)
	}
	return out, counts
}

// ByStructureNumber indexes records by their key.
func ByStructureNumber(records []BridgeRecord) map[string]BridgeRecord {
	m := make(map[string]BridgeRecord, len(records))
	for _, r := range records {
		m[r.StructureNumber] = r
	}
	return m
}
