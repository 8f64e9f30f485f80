package nbi

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// LoadXLSX reads a bridge inventory extract distributed as a workbook. The
// first sheet must carry the same column names as the CSV contract; extra
// columns are ignored.
func LoadXLSX(path string) ([]BridgeRecord, error) {
	wb, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "nbi: open workbook %s", path)
	}
	if len(wb.Sheets) == 0 {
		return nil, eris.Errorf("nbi: workbook %s has no sheets", path)
	}
	sheet := wb.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("nbi: workbook %s has no header row", path)
	}

	idx := make(map[string]int)
	for i, cell := range sheet.Rows[0].Cells {
		idx[strings.TrimSpace(cell.String())] = i
	}
	for _, col := range []string{"structure_number", "latitude", "longitude"} {
		if _, ok := idx[col]; !ok {
			return nil, eris.Errorf("nbi: workbook %s missing required column %q", path, col)
		}
	}

	cellStr := func(row *xlsx.Row, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row.Cells) {
			return ""
		}
		return strings.TrimSpace(row.Cells[i].String())
	}
	cellFloat := func(row *xlsx.Row, col string) float64 {
		f, err := strconv.ParseFloat(cellStr(row, col), 64)
		if err != nil {
			return 0
		}
		return f
	}

	records := make([]BridgeRecord, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		sn := cellStr(row, "structure_number")
		if sn == "" {
			continue
		}
		records = append(records, BridgeRecord{
			StructureNumber:    sn,
			Latitude:           cellFloat(row, "latitude"),
			Longitude:          cellFloat(row, "longitude"),
			FacilityCarried:    cellStr(row, "facility_carried_name"),
			FeatureIntersected: cellStr(row, "feature_intersected_name"),
			StructureLengthFt:  cellFloat(row, "structure_length_ft"),
			SpanDesign:         cellStr(row, "span_design"),
			OperationalStatus:  cellStr(row, "operational_status_code"),
		})
	}
	return records, nil
}
