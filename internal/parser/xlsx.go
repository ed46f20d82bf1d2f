package parser

import (
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/motlabs/mot-ingestion/internal/models"
)

// SheetSelector picks the worksheet to read. Name takes precedence when
// set; otherwise Index selects by position (0-based).
type SheetSelector struct {
	Name  string
	Index int
}

// XLSXParser reads one worksheet of an xlsx workbook, treating every cell
// as a string.
type XLSXParser struct {
	sheet  SheetSelector
	logger *slog.Logger
}

func NewXLSXParser(sheet SheetSelector, logger *slog.Logger) *XLSXParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXParser{sheet: sheet, logger: logger}
}

// Parse implements Parser.
func (p *XLSXParser) Parse(filePath string) ([]models.RawRow, error) {
	workbook, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, &ParseError{Path: filePath, Err: err}
	}
	defer workbook.Close()

	sheetName, err := p.resolveSheet(workbook)
	if err != nil {
		return nil, &ParseError{Path: filePath, Err: err}
	}

	rows, err := workbook.GetRows(sheetName)
	if err != nil {
		return nil, &ParseError{Path: filePath, Err: err}
	}
	if len(rows) == 0 {
		p.logger.Warn("no rows in sheet",
			slog.String("path", filePath),
			slog.String("sheet", sheetName))
		return nil, nil
	}

	raw := rowsToRaw(rows[0], rows[1:])
	p.logger.Info("parsed workbook",
		slog.String("path", filePath),
		slog.String("sheet", sheetName),
		slog.Int("rows", len(raw)),
		slog.Int("columns", len(rows[0])))
	return raw, nil
}

func (p *XLSXParser) resolveSheet(workbook *excelize.File) (string, error) {
	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}

	if p.sheet.Name != "" {
		for _, name := range sheets {
			if name == p.sheet.Name {
				return name, nil
			}
		}
		return "", fmt.Errorf("sheet %q not found", p.sheet.Name)
	}

	if p.sheet.Index < 0 || p.sheet.Index >= len(sheets) {
		return "", fmt.Errorf("sheet index %d out of range (%d sheets)", p.sheet.Index, len(sheets))
	}
	return sheets[p.sheet.Index], nil
}
