package extract

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ria-hunter/internal/adv"
)

// NarrativesFileName is the output file for schedule narrative extracts.
const NarrativesFileName = "schedule_d_narratives.json"

// schedulePatterns are the Schedule D files that carry free-text content.
var schedulePatterns = []string{
	"IA_Schedule_D_Miscellaneous_*.csv",
	"IA_Schedule_D_2A_*.csv",
}

// ScheduleNarrative is one free-text segment pulled from a schedule file.
type ScheduleNarrative struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// ReadScheduleNarratives loads a schedule narratives JSON file.
func ReadScheduleNarratives(path string) ([]ScheduleNarrative, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read %s", path)
	}
	var narratives []ScheduleNarrative
	if err := json.Unmarshal(data, &narratives); err != nil {
		return nil, eris.Wrapf(err, "extract: decode %s", path)
	}
	return narratives, nil
}

// extractScheduleNarratives scans schedule files across all period dirs for
// narrative-bearing columns and writes the collected segments as JSON.
// Returns the number of segments written.
func (e *Extractor) extractScheduleNarratives(ctx context.Context, dirs []string) (int, error) {
	log := zap.L().With(zap.String("component", "extract.schedules"))

	// Non-nil so an empty result serializes as [] rather than null.
	narratives := []ScheduleNarrative{}

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		for _, pattern := range schedulePatterns {
			matches, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				return 0, eris.Wrapf(err, "extract: glob %s in %s", pattern, dir)
			}
			for _, file := range matches {
				segs, err := e.narrativesFromFile(file)
				if err != nil {
					log.Warn("skipping schedule file",
						zap.String("file", filepath.Base(file)), zap.Error(err))
					continue
				}
				narratives = append(narratives, segs...)
			}
		}
	}

	outPath := filepath.Join(e.OutDir, NarrativesFileName)
	data, err := json.MarshalIndent(narratives, "", "  ")
	if err != nil {
		return 0, eris.Wrap(err, "extract: marshal schedule narratives")
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return 0, eris.Wrapf(err, "extract: write %s", outPath)
	}

	log.Info("wrote schedule narratives",
		zap.String("file", outPath), zap.Int("segments", len(narratives)))
	return len(narratives), nil
}

// narrativesFromFile pulls free-text column values out of one schedule file.
// Only Miscellaneous files carry brochure-style descriptions.
func (e *Extractor) narrativesFromFile(path string) ([]ScheduleNarrative, error) {
	base := filepath.Base(path)
	if !strings.Contains(base, "Miscellaneous") {
		return nil, nil
	}

	table, _, err := adv.ReadCSVFile(path)
	if err != nil {
		return nil, err
	}

	var textCols []string
	for _, col := range table.Header {
		lower := strings.ToLower(col)
		if strings.Contains(lower, "description") || strings.Contains(lower, "narrative") {
			textCols = append(textCols, col)
		}
	}
	if len(textCols) == 0 {
		return nil, nil
	}

	var out []ScheduleNarrative
	for i, row := range table.Rows {
		if e.MaxSampleRows > 0 && i >= e.MaxSampleRows {
			break
		}
		for _, col := range textCols {
			v := strings.TrimSpace(table.Get(row, col))
			if v == "" {
				continue
			}
			out = append(out, ScheduleNarrative{
				Source: base,
				Text:   adv.SanitizeUTF8(v),
			})
		}
	}
	return out, nil
}
