package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/examsrs/pkg/models"
)

// LoadConfig defines where questions are read from
type LoadConfig struct {
	FilePath          string // Path to the Excel or CSV file
	IDColumn          string // Column with the numeric question id
	CategoryColumn    string // Column with the question category
	TextColumn        string // Column with the question text
	ExplanationColumn string // Column with the optional explanation
	SheetName         string // Name of the sheet to read (Excel only)
	StartRow          int    // The row to start reading from (1-based index)
}

// DefaultLoadConfig returns the default column layout
func DefaultLoadConfig() LoadConfig {
	return LoadConfig{
		IDColumn:          "A",
		CategoryColumn:    "B",
		TextColumn:        "C",
		ExplanationColumn: "D",
		SheetName:         "Questions",
		StartRow:          2, // skip header
	}
}

// LoadResult holds the outcome of a load
type LoadResult struct {
	TotalProcessed int
	Loaded         int
	Skipped        int
	Errors         []string
}

// Catalog is an in-memory, read-only question catalog
type Catalog struct {
	questions map[int64]models.Question
}

// New creates a catalog holding the given questions
func New(questions ...models.Question) *Catalog {
	c := &Catalog{questions: make(map[int64]models.Question, len(questions))}
	for _, q := range questions {
		c.questions[q.ID] = q
	}
	return c
}

// Load reads the catalog from an Excel or CSV file. Rows that cannot be
// parsed are skipped and reported in the result.
func Load(config LoadConfig) (*Catalog, *LoadResult, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		rows, err = readCSV(config.FilePath)
	} else {
		rows, err = readExcel(config.FilePath, config.SheetName)
	}
	if err != nil {
		return nil, nil, err
	}

	c := New()
	result := &LoadResult{Errors: make([]string, 0)}
	for i, row := range rows {
		if i < config.StartRow-1 || isBlank(row) {
			continue
		}
		result.TotalProcessed++

		q, err := parseRow(row, config)
		if err == nil {
			if _, dup := c.questions[q.ID]; dup {
				err = fmt.Errorf("duplicate question id %d", q.ID)
			}
		}
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}
		c.questions[q.ID] = q
		result.Loaded++
	}
	return c, result, nil
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
}

func parseRow(row []string, config LoadConfig) (models.Question, error) {
	rawID := cell(row, config.IDColumn)
	if rawID == "" {
		return models.Question{}, errors.New("question id cannot be empty")
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return models.Question{}, fmt.Errorf("invalid question id %q", rawID)
	}

	q := models.Question{
		ID:          id,
		Category:    cell(row, config.CategoryColumn),
		Text:        cell(row, config.TextColumn),
		Explanation: cell(row, config.ExplanationColumn),
	}
	if q.Text == "" {
		return models.Question{}, errors.New("question text cannot be empty")
	}
	return q, nil
}

func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// columnToIndex converts an Excel column letter to a zero-based index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}

// GetQuestion returns the question with the given id or ErrQuestionNotFound
func (c *Catalog) GetQuestion(_ context.Context, id int64) (models.Question, error) {
	q, ok := c.questions[id]
	if !ok {
		return models.Question{}, fmt.Errorf("question %d: %w", id, models.ErrQuestionNotFound)
	}
	return q, nil
}

// Len returns the number of questions
func (c *Catalog) Len() int { return len(c.questions) }

// Categories returns the distinct non-empty categories in sorted order
func (c *Catalog) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, q := range c.questions {
		if q.Category != "" && !seen[q.Category] {
			seen[q.Category] = true
			out = append(out, q.Category)
		}
	}
	sort.Strings(out)
	return out
}
