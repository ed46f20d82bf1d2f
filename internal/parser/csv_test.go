package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVParser_Parse(t *testing.T) {
	path := writeCSV(t, "id,name,amount\n1,alice,10.5\n2,bob,20\n")

	p := NewCSVParser(',', nil)
	rows, err := p.Parse(path)

	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0]["id"])
	assert.Equal(t, "alice", rows[0]["name"])
	assert.Equal(t, "20", rows[1]["amount"])
}

func TestCSVParser_ShortRowLeavesColumnsAbsent(t *testing.T) {
	path := writeCSV(t, "id,name,amount\n1,alice\n")

	p := NewCSVParser(',', nil)
	rows, err := p.Parse(path)

	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	_, present := rows[0]["amount"]
	assert.False(t, present, "missing trailing column should be absent, not empty")
}

func TestCSVParser_ExtraCellsDropped(t *testing.T) {
	path := writeCSV(t, "id,name\n1,alice,surprise\n")

	p := NewCSVParser(',', nil)
	rows, err := p.Parse(path)

	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Len(t, rows[0], 2)
}

func TestCSVParser_SkipsCorruptedRecords(t *testing.T) {
	path := writeCSV(t, "id,name\n1,alice\nbad\"quote,row\n3,carol\n")

	p := NewCSVParser(',', nil)
	rows, err := p.Parse(path)

	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "3", rows[1]["id"])
}

func TestCSVParser_SemicolonDelimiter(t *testing.T) {
	path := writeCSV(t, "id;name\n1;alice\n")

	p := NewCSVParser(';', nil)
	rows, err := p.Parse(path)

	assert.NoError(t, err)
	assert.Equal(t, "alice", rows[0]["name"])
}

func TestCSVParser_EmptyFile(t *testing.T) {
	path := writeCSV(t, "")

	p := NewCSVParser(',', nil)
	_, err := p.Parse(path)

	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestCSVParser_MissingFile(t *testing.T) {
	p := NewCSVParser(',', nil)
	_, err := p.Parse(filepath.Join(t.TempDir(), "nope.csv"))

	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}
