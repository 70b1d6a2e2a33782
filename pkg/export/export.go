package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/wattplan/wattplan/core/model"
)

// WriteJSON writes the full plan result to w in JSON format.
func WriteJSON(w io.Writer, result model.PlanResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// WriteCSV writes the decision list to w in CSV format.
func WriteCSV(w io.Writer, decisions []model.IntervalDecision) error {
	cw := csv.NewWriter(w)
	header := []string{"start", "mode", "reason", "battery_end_kwh", "grid_import_kwh", "grid_export_kwh", "cost"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, d := range decisions {
		rec := []string{
			d.Start.Format(time.RFC3339),
			d.Mode.String(),
			d.Reason,
			strconv.FormatFloat(d.BatteryEnd, 'f', -1, 64),
			strconv.FormatFloat(d.GridImport, 'f', -1, 64),
			strconv.FormatFloat(d.GridExport, 'f', -1, 64),
			strconv.FormatFloat(d.Cost, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
