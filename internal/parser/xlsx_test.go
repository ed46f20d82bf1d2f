package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		assert.NoError(t, err)
		assert.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	path := filepath.Join(t.TempDir(), "input.xlsx")
	assert.NoError(t, f.SaveAs(path))
	return path
}

func TestXLSXParser_Parse(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"id", "name", "amount"},
		{"1", "alice", "10.5"},
		{"2", "bob", "20"},
	})

	p := NewXLSXParser(SheetSelector{}, nil)
	rows, err := p.Parse(path)

	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0]["name"])
	assert.Equal(t, "20", rows[1]["amount"])
}

func TestXLSXParser_SheetByName(t *testing.T) {
	f := excelize.NewFile()
	_, err := f.NewSheet("Data")
	assert.NoError(t, err)
	assert.NoError(t, f.SetSheetRow("Data", "A1", &[]any{"id"}))
	assert.NoError(t, f.SetSheetRow("Data", "A2", &[]any{"7"}))

	path := filepath.Join(t.TempDir(), "multi.xlsx")
	assert.NoError(t, f.SaveAs(path))
	f.Close()

	p := NewXLSXParser(SheetSelector{Name: "Data"}, nil)
	rows, err := p.Parse(path)

	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "7", rows[0]["id"])
}

func TestXLSXParser_SheetNotFound(t *testing.T) {
	path := writeWorkbook(t, [][]any{{"id"}})

	p := NewXLSXParser(SheetSelector{Name: "Missing"}, nil)
	_, err := p.Parse(path)

	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestXLSXParser_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.xlsx")
	assert.NoError(t, os.WriteFile(path, []byte("this is not a zip archive"), 0o644))

	p := NewXLSXParser(SheetSelector{}, nil)
	_, err := p.Parse(path)

	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestXLSXParser_HeaderOnly(t *testing.T) {
	path := writeWorkbook(t, [][]any{{"id", "name"}})

	p := NewXLSXParser(SheetSelector{}, nil)
	rows, err := p.Parse(path)

	assert.NoError(t, err)
	assert.Empty(t, rows)
}
