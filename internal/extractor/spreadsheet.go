package extractor

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractSpreadsheet renders every sheet of a workbook as tab-separated
// text labeled with the sheet name. Sheets that fail to read or hold no
// text are skipped; a workbook where no sheet produces text is empty.
func extractSpreadsheet(path string) (string, error) {
	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("error opening workbook: %v", err)
	}
	defer workbook.Close()

	var sheets []string
	for _, name := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(name)
		if err != nil {
			continue
		}

		var b strings.Builder
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if strings.TrimSpace(line) == "" {
				continue
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		if b.Len() == 0 {
			continue
		}
		sheets = append(sheets, fmt.Sprintf("Sheet: %s\n%s", name, b.String()))
	}

	return strings.Join(sheets, "\n---\n"), nil
}
