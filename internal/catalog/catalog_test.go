package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/examsrs/pkg/models"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet(sheet)
	require.NoError(t, err)
	for i, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, ref, &row))
	}

	path := filepath.Join(t.TempDir(), "questions.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadExcel(t *testing.T) {
	path := writeWorkbook(t, "Questions", [][]interface{}{
		{"id", "category", "text", "explanation"},
		{1, "Geschichte", "Wann fiel die Berliner Mauer?", "1989"},
		{2, "Politik", "Wer wählt den Bundeskanzler?"},
		{},
		{"x", "Politik", "kaputt"},
		{3, "Alltag", ""},
		{1, "Geschichte", "doppelt"},
	})

	cfg := DefaultLoadConfig()
	cfg.FilePath = path
	c, res, err := Load(cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 5, res.TotalProcessed)
	assert.Equal(t, 2, res.Loaded)
	assert.Equal(t, 3, res.Skipped)
	assert.Len(t, res.Errors, 3)

	q, err := c.GetQuestion(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.Question{ID: 1, Category: "Geschichte", Text: "Wann fiel die Berliner Mauer?", Explanation: "1989"}, q)

	q, err = c.GetQuestion(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, q.Explanation)

	assert.Equal(t, []string{"Geschichte", "Politik"}, c.Categories())
}

func TestLoadExcelMissingSheet(t *testing.T) {
	path := writeWorkbook(t, "Questions", [][]interface{}{{"id"}})
	cfg := DefaultLoadConfig()
	cfg.FilePath = path
	cfg.SheetName = "Fragen"
	_, _, err := Load(cfg)
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.csv")
	data := "id,category,text\n" +
		"7,Politik,\"Was ist \"\"Gewaltenteilung\"\"?\"\n" +
		"8,,Wo liegt Berlin?\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg := DefaultLoadConfig()
	cfg.FilePath = path
	c, res, err := Load(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Loaded)
	assert.Empty(t, res.Errors)

	q, err := c.GetQuestion(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, `Was ist "Gewaltenteilung"?`, q.Text)
	assert.Equal(t, []string{"Politik"}, c.Categories())
}

func TestLoadMissingFile(t *testing.T) {
	for _, name := range []string{"nope.csv", "nope.xlsx"} {
		cfg := DefaultLoadConfig()
		cfg.FilePath = filepath.Join(t.TempDir(), name)
		_, _, err := Load(cfg)
		assert.Error(t, err, name)
	}
}

func TestGetQuestionNotFound(t *testing.T) {
	c := New(models.Question{ID: 1, Text: "a"})
	_, err := c.GetQuestion(context.Background(), 2)
	assert.ErrorIs(t, err, models.ErrQuestionNotFound)
}

func TestColumnToIndex(t *testing.T) {
	assert.Equal(t, 0, columnToIndex("A"))
	assert.Equal(t, 3, columnToIndex("d"))
	assert.Equal(t, 26, columnToIndex("AA"))
}
