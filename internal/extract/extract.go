// Package extract combines raw monthly SEC Form ADV FOIA dumps into a single
// normalized base table with per-row provenance.
package extract

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

// CombinedFileName is the output file for the merged base table.
const CombinedFileName = "adv_base_combined.csv"

// provenance columns appended to every combined row.
var provenanceCols = []string{"source_file", "filing_period"}

// Extractor scans a raw FOIA directory tree and produces the combined base
// table plus schedule narrative extracts.
type Extractor struct {
	RawDir string
	OutDir string

	// MaxSampleRows caps narrative extraction per schedule file; 0 = no cap.
	MaxSampleRows int
}

// Result summarizes one extraction run.
type Result struct {
	Periods    int
	BaseFiles  int
	Rows       int
	Narratives int
}

// Run extracts base files from every filing period, merges them, dedups by
// FilingID, and writes the combined CSV and schedule narratives JSON.
func (e *Extractor) Run(ctx context.Context) (*Result, error) {
	log := zap.L().With(zap.String("component", "extract"))

	dirs, err := e.periodDirs()
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, eris.Errorf("extract: no ADV filing directories under %s", e.RawDir)
	}
	log.Info("found filing directories", zap.Int("count", len(dirs)))

	if err := os.MkdirAll(e.OutDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "extract: create output dir %s", e.OutDir)
	}

	combined := newCombiner()
	baseFiles := 0

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		matches, err := filepath.Glob(filepath.Join(dir, "IA_ADV_Base_A_*.csv"))
		if err != nil {
			return nil, eris.Wrapf(err, "extract: glob base files in %s", dir)
		}
		if len(matches) == 0 {
			log.Warn("no base file found", zap.String("dir", filepath.Base(dir)))
			continue
		}
		sort.Strings(matches)
		baseFile := matches[0]

		table, enc, err := adv.ReadCSVFile(baseFile)
		if err != nil {
			log.Warn("skipping unreadable base file",
				zap.String("file", filepath.Base(baseFile)), zap.Error(err))
			continue
		}
		log.Info("processing base file",
			zap.String("file", filepath.Base(baseFile)),
			zap.String("encoding", enc),
			zap.Int("rows", len(table.Rows)))

		combined.add(table, filepath.Base(baseFile), filepath.Base(dir))
		baseFiles++
	}

	if baseFiles == 0 {
		return nil, eris.New("extract: no readable base files found")
	}

	out := combined.table()
	dedupByFilingID(out)

	outPath := filepath.Join(e.OutDir, CombinedFileName)
	if err := out.WriteCSVFile(outPath); err != nil {
		return nil, err
	}
	log.Info("wrote combined base table",
		zap.String("file", outPath), zap.Int("rows", len(out.Rows)))

	narratives, err := e.extractScheduleNarratives(ctx, dirs)
	if err != nil {
		return nil, err
	}

	return &Result{
		Periods:    len(dirs),
		BaseFiles:  baseFiles,
		Rows:       len(out.Rows),
		Narratives: narratives,
	}, nil
}

// periodDirs lists per-month filing directories under RawDir, sorted.
func (e *Extractor) periodDirs() ([]string, error) {
	entries, err := os.ReadDir(e.RawDir)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read raw dir %s", e.RawDir)
	}
	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "ADV_Filing_Data_") || strings.HasPrefix(name, "adv-filing-data-") {
			dirs = append(dirs, filepath.Join(e.RawDir, name))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// combiner merges tables with differing column sets into one table with the
// union of all columns. Columns are matched by normalized name since header
// spelling drifts between periods.
type combiner struct {
	header []string
	index  map[string]int
	rows   [][]string
}

func newCombiner() *combiner {
	c := &combiner{index: make(map[string]int)}
	return c
}

func (c *combiner) colIdx(name string) int {
	key := adv.NormalizeCol(name)
	if idx, ok := c.index[key]; ok {
		return idx
	}
	idx := len(c.header)
	c.header = append(c.header, name)
	c.index[key] = idx
	return idx
}

func (c *combiner) add(t *adv.RawTable, sourceFile, filingPeriod string) {
	// Map source columns once per file.
	srcIdx := make([]int, len(t.Header))
	for i, col := range t.Header {
		srcIdx[i] = c.colIdx(col)
	}
	sourceIdx := c.colIdx(provenanceCols[0])
	periodIdx := c.colIdx(provenanceCols[1])

	for _, row := range t.Rows {
		out := make([]string, len(c.header))
		for i, v := range row {
			if i < len(srcIdx) {
				out[srcIdx[i]] = adv.SanitizeUTF8(v)
			}
		}
		out[sourceIdx] = sourceFile
		out[periodIdx] = filingPeriod
		c.rows = append(c.rows, out)
	}
}

func (c *combiner) table() *adv.RawTable {
	t := adv.NewTable(c.header)
	// Earlier rows can be shorter than the final header; pad for writing.
	for _, row := range c.rows {
		if len(row) < len(c.header) {
			padded := make([]string, len(c.header))
			copy(padded, row)
			row = padded
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// dedupByFilingID keeps, for each FilingID, the row from the
// lexicographically-latest source file. No-op when the column is absent.
func dedupByFilingID(t *adv.RawTable) {
	if !t.HasColumn("FilingID") {
		return
	}

	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Get(t.Rows[i], "source_file") < t.Get(t.Rows[j], "source_file")
	})

	last := make(map[string]int, len(t.Rows))
	for i, row := range t.Rows {
		last[t.Get(row, "FilingID")] = i
	}

	kept := t.Rows[:0]
	for i, row := range t.Rows {
		if last[t.Get(row, "FilingID")] == i {
			kept = append(kept, row)
		}
	}
	t.Rows = kept
}
