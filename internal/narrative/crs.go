package narrative

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ria-hunter/internal/adv"
	"github.com/sells-group/ria-hunter/internal/model"
)

// crsTextKeywords identify free-text columns in Form CRS files.
var crsTextKeywords = []string{"summary", "description", "text", "narrative"}

// ExtractCRS pulls relationship-summary text from FIRM_CRS_*.csv files in
// the raw directory. Unreadable files are skipped with a warning.
func ExtractCRS(rawDir string) ([]model.Narrative, error) {
	log := zap.L().With(zap.String("component", "narrative.crs"))

	matches, err := filepath.Glob(filepath.Join(rawDir, "FIRM_CRS_*.csv"))
	if err != nil {
		return nil, eris.Wrapf(err, "narrative: glob CRS files in %s", rawDir)
	}

	var out []model.Narrative
	for _, file := range matches {
		table, _, err := adv.ReadCSVFile(file)
		if err != nil {
			log.Warn("skipping CRS file", zap.String("file", filepath.Base(file)), zap.Error(err))
			continue
		}

		var textCols []string
		for _, col := range table.Header {
			lower := strings.ToLower(col)
			for _, kw := range crsTextKeywords {
				if strings.Contains(lower, kw) {
					textCols = append(textCols, col)
					break
				}
			}
		}
		if len(textCols) == 0 {
			continue
		}

		base := filepath.Base(file)
		for _, row := range table.Rows {
			for _, col := range textCols {
				v := strings.TrimSpace(table.Get(row, col))
				if v == "" {
					continue
				}
				out = append(out, model.Narrative{
					Narrative: adv.SanitizeUTF8(v),
					Source:    base,
				})
			}
		}
		log.Info("extracted CRS narratives", zap.String("file", base))
	}
	return out, nil
}
