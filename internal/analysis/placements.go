// Package analysis aggregates Schedule D 7.B(1) private fund filings into
// per-adviser placement activity and reconciles the results against
// persisted profiles.
package analysis

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ria-hunter/internal/adv"
)

// nameColumns are tried in order when picking the adviser identifier column.
// Some vintages only populate signatory fields.
var nameColumns = []string{"1C-Legal", "1C-Business", "1A", "Signatory", "1J-Name"}

// PlacementRow is one aggregated adviser in the analysis output.
type PlacementRow struct {
	FirmName         string  `csv:"firm_name"`
	NumPrivateFunds  int64   `csv:"num_private_funds"`
	TotalGrossAssets float64 `csv:"total_gross_assets"`
	City             string  `csv:"city"`
	State            string  `csv:"state"`
}

// Analyzer merges private fund schedules with base filings and aggregates
// fund activity for advisers in the configured location.
type Analyzer struct {
	RawDir        string
	City          string
	State         string
	CityVariants  []string
	MinFundAssets int64
}

// Run performs the full analysis and returns rows sorted by fund count then
// gross assets, both descending.
func (a *Analyzer) Run(ctx context.Context) ([]PlacementRow, error) {
	log := zap.L().With(zap.String("component", "analysis"))

	fundTables, err := a.loadMatching(ctx, "IA_Schedule_D_7B1_*.csv")
	if err != nil {
		return nil, err
	}
	baseTables, err := a.loadMatching(ctx, "IA_ADV_Base_A_*.csv")
	if err != nil {
		return nil, err
	}
	if len(fundTables) == 0 || len(baseTables) == 0 {
		return nil, eris.Errorf("analysis: need both fund and base files under %s", a.RawDir)
	}

	// Index base filings by FilingID, first occurrence wins.
	baseByFiling := make(map[string]baseInfo)
	for _, t := range baseTables {
		for _, row := range t.Rows {
			id := strings.TrimSpace(t.Get(row, "FilingID"))
			if id == "" {
				continue
			}
			if _, ok := baseByFiling[id]; ok {
				continue
			}
			info := baseInfo{
				city:  adv.TrimQuotes(t.Get(row, "1F1-City")),
				state: adv.TrimQuotes(t.Get(row, "1F1-State")),
			}
			for _, col := range nameColumns {
				info.names = append(info.names, adv.TrimQuotes(t.Get(row, col)))
			}
			baseByFiling[id] = info
		}
	}

	// Inner-join fund rows to base filings and keep the configured location.
	var joined []fundRecord
	for _, t := range fundTables {
		for _, row := range t.Rows {
			id := strings.TrimSpace(t.Get(row, "FilingID"))
			info, ok := baseByFiling[id]
			if !ok {
				continue
			}
			if !a.inLocation(info.city, info.state) {
				continue
			}
			joined = append(joined, fundRecord{
				base:        info,
				fundName:    adv.TrimQuotes(t.Get(row, "Fund Name")),
				grossAssets: adv.ParseFloat64Or(adv.TrimQuotes(t.Get(row, "Gross Asset Value")), 0),
			})
		}
	}
	log.Info("filtered fund records", zap.Int("count", len(joined)))
	if len(joined) == 0 {
		return nil, nil
	}

	nameIdx := pickNameColumn(joined)
	if nameIdx < 0 {
		return nil, eris.New("analysis: no usable adviser name column found")
	}
	log.Info("selected adviser name column", zap.String("column", nameColumns[nameIdx]))

	// Aggregate per adviser name.
	agg := make(map[string]*PlacementRow)
	var order []string
	for _, rec := range joined {
		name := rec.base.names[nameIdx]
		if name == "" || name == "N" || name == "Y" {
			continue
		}
		row, ok := agg[name]
		if !ok {
			row = &PlacementRow{FirmName: name, City: rec.base.city, State: rec.base.state}
			agg[name] = row
			order = append(order, name)
		}
		if rec.fundName != "" {
			row.NumPrivateFunds++
		}
		row.TotalGrossAssets += rec.grossAssets
	}

	var out []PlacementRow
	for _, name := range order {
		row := agg[name]
		if row.TotalGrossAssets < float64(a.MinFundAssets) {
			continue
		}
		out = append(out, *row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].NumPrivateFunds != out[j].NumPrivateFunds {
			return out[i].NumPrivateFunds > out[j].NumPrivateFunds
		}
		if out[i].TotalGrossAssets != out[j].TotalGrossAssets {
			return out[i].TotalGrossAssets > out[j].TotalGrossAssets
		}
		return out[i].FirmName < out[j].FirmName
	})

	log.Info("analysis complete", zap.Int("advisers", len(out)))
	return out, nil
}

type baseInfo struct {
	city  string
	state string
	names []string
}

type fundRecord struct {
	base        baseInfo
	fundName    string
	grossAssets float64
}

// inLocation checks the business address against the configured city and
// state, tolerating known city spelling variants.
func (a *Analyzer) inLocation(city, state string) bool {
	if !strings.EqualFold(strings.TrimSpace(state), a.State) {
		return false
	}
	c := strings.ToUpper(strings.TrimSpace(city))
	if c == strings.ToUpper(a.City) {
		return true
	}
	for _, v := range a.CityVariants {
		if c == strings.ToUpper(v) {
			return true
		}
	}
	return false
}

// pickNameColumn returns the index of the first candidate column whose
// values identify advisers rather than Y/N flags.
func pickNameColumn(records []fundRecord) int {
	for i := range nameColumns {
		uniq := make(map[string]bool)
		flagsOnly := true
		for _, rec := range records {
			v := rec.base.names[i]
			if v == "" {
				continue
			}
			uniq[v] = true
			switch strings.ToUpper(v) {
			case "Y", "N", "YES", "NO":
			default:
				flagsOnly = false
			}
		}
		if len(uniq) > 2 && !flagsOnly {
			return i
		}
	}
	return -1
}

// loadMatching reads every CSV matching pattern inside the period dirs.
// Unreadable files are skipped with a warning.
func (a *Analyzer) loadMatching(ctx context.Context, pattern string) ([]*adv.RawTable, error) {
	log := zap.L().With(zap.String("component", "analysis"))

	entries, err := os.ReadDir(a.RawDir)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: read raw dir %s", a.RawDir)
	}

	var tables []*adv.RawTable
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		lower := strings.ToLower(name)
		if !strings.HasPrefix(name, "ADV_Filing_Data_") &&
			!strings.HasPrefix(lower, "adv-filing-data-") &&
			!strings.HasPrefix(lower, "adv_filing_data_") {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(a.RawDir, name, pattern))
		if err != nil {
			return nil, eris.Wrapf(err, "analysis: glob %s", pattern)
		}
		sort.Strings(matches)
		for _, file := range matches {
			t, _, err := adv.ReadCSVFile(file)
			if err != nil {
				log.Warn("skipping unreadable file",
					zap.String("file", filepath.Base(file)), zap.Error(err))
				continue
			}
			tables = append(tables, t)
		}
	}
	return tables, nil
}
