package analysis

import (
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ria-hunter/internal/match"
	"github.com/sells-group/ria-hunter/internal/model"
)

// ReportRow records how one analytical firm was reconciled against the
// persisted profiles.
type ReportRow struct {
	CRDNumber        string  `csv:"crd_number"`
	LegalName        string  `csv:"legal_name"`
	AnalysisName     string  `csv:"analysis_name"`
	PrivateFundCount int64   `csv:"private_fund_count"`
	PrivateFundAUM   float64 `csv:"private_fund_aum"`
	City             string  `csv:"city"`
	State            string  `csv:"state"`
	MatchType        string  `csv:"match_type"`
}

// BuildReport matches every analysis row against the profile set. Unmatched
// rows are reported with an empty CRD so nothing silently disappears.
func BuildReport(rows []PlacementRow, profiles []model.Profile, m *match.Matcher) []ReportRow {
	report := make([]ReportRow, 0, len(rows))
	for _, row := range rows {
		r := ReportRow{
			AnalysisName:     row.FirmName,
			PrivateFundCount: row.NumPrivateFunds,
			PrivateFundAUM:   row.TotalGrossAssets,
			City:             row.City,
			State:            row.State,
		}
		res := m.Match(match.Target{FirmName: row.FirmName}, profiles)
		r.MatchType = string(res.Type)
		if res.Type != match.TypeNone {
			r.CRDNumber = profiles[res.Index].CRDNumber
			r.LegalName = profiles[res.Index].FirmName
		}
		report = append(report, r)
	}
	return report
}

// WriteAnalysisCSV writes placement rows to path.
func WriteAnalysisCSV(path string, rows []PlacementRow) error {
	return writeCSV(path, rows)
}

// ReadAnalysisCSV loads placement rows from path.
func ReadAnalysisCSV(path string) ([]PlacementRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: open %s", path)
	}
	defer f.Close()

	dec, err := csvutil.NewDecoder(csv.NewReader(f))
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: read header of %s", path)
	}

	var rows []PlacementRow
	for {
		var row PlacementRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrapf(err, "analysis: decode %s", path)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteReportCSV writes the matching report to path.
func WriteReportCSV(path string, rows []ReportRow) error {
	return writeCSV(path, rows)
}

func writeCSV[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "analysis: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return eris.Wrapf(err, "analysis: encode row %d", i)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "analysis: flush %s", path)
	}
	return nil
}
