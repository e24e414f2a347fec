package extract

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ria-hunter/internal/adv"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRun_CombinesPeriodsAndDedups(t *testing.T) {
	raw := t.TempDir()
	out := t.TempDir()

	// January: two filings, one of which reappears in February.
	writeFile(t, filepath.Join(raw, "ADV_Filing_Data_2024_01", "IA_ADV_Base_A_20240101_20240131.csv"),
		"FilingID,1A,1O,5F(2)(F)\n100,Acme Advisors,110101,1000\n101,Brook Capital,220202,2000\n")
	// February: updated AUM for filing 100, plus an extra column.
	writeFile(t, filepath.Join(raw, "adv-filing-data-2024-02", "IA_ADV_Base_A_20240201_20240228.csv"),
		"FilingID,1A,1O,5F(2)(F),5B1A\n100,Acme Advisors,110101,1500,12\n")
	// A directory that should be ignored.
	writeFile(t, filepath.Join(raw, "unrelated_dir", "IA_ADV_Base_A_x.csv"), "FilingID\n9\n")

	e := &Extractor{RawDir: raw, OutDir: out}
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Periods)
	assert.Equal(t, 2, res.BaseFiles)
	assert.Equal(t, 2, res.Rows)

	table, _, err := adv.ReadCSVFile(filepath.Join(out, CombinedFileName))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	byID := map[string][]string{}
	for _, row := range table.Rows {
		byID[table.Get(row, "FilingID")] = row
	}

	// Filing 100 kept the February row (latest source file wins).
	row100 := byID["100"]
	require.NotNil(t, row100)
	assert.Equal(t, "1500", table.Get(row100, "5f2f"))
	assert.Equal(t, "12", table.Get(row100, "5b1a"))
	assert.Equal(t, "IA_ADV_Base_A_20240201_20240228.csv", table.Get(row100, "source_file"))
	assert.Equal(t, "adv-filing-data-2024-02", table.Get(row100, "filing_period"))

	// Filing 101 only existed in January; extra column is empty.
	row101 := byID["101"]
	require.NotNil(t, row101)
	assert.Equal(t, "2000", table.Get(row101, "5f2f"))
	assert.Equal(t, "", table.Get(row101, "5b1a"))
	assert.Equal(t, "ADV_Filing_Data_2024_01", table.Get(row101, "filing_period"))
}

func TestRun_NoDirectories(t *testing.T) {
	e := &Extractor{RawDir: t.TempDir(), OutDir: t.TempDir()}
	_, err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ADV filing directories")
}

func TestRun_SkipsPeriodWithoutBaseFile(t *testing.T) {
	raw := t.TempDir()
	out := t.TempDir()

	writeFile(t, filepath.Join(raw, "ADV_Filing_Data_2024_01", "IA_ADV_Base_A_1.csv"),
		"FilingID,1A\n100,Acme Advisors\n")
	require.NoError(t, os.MkdirAll(filepath.Join(raw, "ADV_Filing_Data_2024_02"), 0o755))

	e := &Extractor{RawDir: raw, OutDir: out}
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Periods)
	assert.Equal(t, 1, res.BaseFiles)
	assert.Equal(t, 1, res.Rows)
}

func TestRun_ScheduleNarratives(t *testing.T) {
	raw := t.TempDir()
	out := t.TempDir()

	writeFile(t, filepath.Join(raw, "ADV_Filing_Data_2024_01", "IA_ADV_Base_A_1.csv"),
		"FilingID,1A\n100,Acme Advisors\n")
	writeFile(t, filepath.Join(raw, "ADV_Filing_Data_2024_01", "IA_Schedule_D_Miscellaneous_1.csv"),
		"FilingID,Description,Other\n100,Provides advisory brochures,x\n101,,y\n")
	// 2A files have no narrative columns and contribute nothing.
	writeFile(t, filepath.Join(raw, "ADV_Filing_Data_2024_01", "IA_Schedule_D_2A_1.csv"),
		"FilingID,State\n100,MO\n")

	e := &Extractor{RawDir: raw, OutDir: out}
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Narratives)

	data, err := os.ReadFile(filepath.Join(out, NarrativesFileName))
	require.NoError(t, err)

	var segs []ScheduleNarrative
	require.NoError(t, json.Unmarshal(data, &segs))
	require.Len(t, segs, 1)
	assert.Equal(t, "IA_Schedule_D_Miscellaneous_1.csv", segs[0].Source)
	assert.Equal(t, "Provides advisory brochures", segs[0].Text)
}

func TestRun_MaxSampleRowsCapsNarratives(t *testing.T) {
	raw := t.TempDir()
	out := t.TempDir()

	writeFile(t, filepath.Join(raw, "ADV_Filing_Data_2024_01", "IA_ADV_Base_A_1.csv"),
		"FilingID,1A\n100,Acme Advisors\n")
	writeFile(t, filepath.Join(raw, "ADV_Filing_Data_2024_01", "IA_Schedule_D_Miscellaneous_1.csv"),
		"FilingID,Description\n1,first\n2,second\n3,third\n")

	e := &Extractor{RawDir: raw, OutDir: out, MaxSampleRows: 2}
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Narratives)
}

func TestDedupByFilingID_NoColumn(t *testing.T) {
	table := adv.NewTable([]string{"1A", "source_file"})
	table.Rows = [][]string{{"Acme", "a.csv"}, {"Brook", "b.csv"}}
	dedupByFilingID(table)
	assert.Len(t, table.Rows, 2)
}
