package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/spigell/cv-ranker/internal/ranking"
)

const (
	rankingSheet  = "Ranking"
	excludedSheet = "Excluded"
)

var rankingHeaders = []string{
	"Rank", "Name", "Score", "Education", "Experience", "Publications", "Awards", "Coherence", "Source", "Warnings",
}

// RankingXLSX renders a ranking as a workbook with a Ranking sheet and, when some CVs
// could not be scored, an Excluded sheet.
func RankingXLSX(r *ranking.Ranking) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rankingSheet); err != nil {
		return nil, err
	}

	for i, h := range rankingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(rankingSheet, cell, h)
	}

	for idx, c := range r.Candidates {
		row := idx + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(rankingSheet, cell, v)
		}

		write(1, c.Rank)
		write(2, c.Name)
		write(3, c.SysScore)
		write(4, c.Subscores.Education)
		write(5, c.Subscores.Experience)
		write(6, c.Subscores.Publications)
		write(7, c.Subscores.Awards)
		write(8, c.Subscores.Coherence)
		write(9, c.Source)
		write(10, strings.Join(c.Warnings, "; "))
	}

	_ = f.SetColWidth(rankingSheet, "A", "A", 6)
	_ = f.SetColWidth(rankingSheet, "B", "B", 32)
	_ = f.SetColWidth(rankingSheet, "C", "H", 13)
	_ = f.SetColWidth(rankingSheet, "I", "I", 15)
	_ = f.SetColWidth(rankingSheet, "J", "J", 60)

	if len(r.Excluded) > 0 {
		if _, err := f.NewSheet(excludedSheet); err != nil {
			return nil, err
		}
		_ = f.SetCellValue(excludedSheet, "A1", "Name")
		_ = f.SetCellValue(excludedSheet, "B1", "Reason")
		for idx, e := range r.Excluded {
			_ = f.SetCellValue(excludedSheet, fmt.Sprintf("A%d", idx+2), e.Name)
			_ = f.SetCellValue(excludedSheet, fmt.Sprintf("B%d", idx+2), e.Reason)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteXLSX renders r and writes the workbook to path.
func WriteXLSX(path string, r *ranking.Ranking) error {
	data, err := RankingXLSX(r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
