package training

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const reviewSheet = "Review"

// ExportXLSX writes the dataset to a spreadsheet for human review: one row
// per record with the user inquiry and the assistant's extraction.
func ExportXLSX(path string, records []TrainingRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(reviewSheet)
	if err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"#", "User Inquiry", "Assistant Extraction", "Inquiry Length"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(reviewSheet, cell, header); err != nil {
			return fmt.Errorf("export xlsx: %w", err)
		}
	}

	for row, record := range records {
		userText := record.UserText()
		values := []any{row + 1, userText, record.AssistantText(), len(userText)}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(reviewSheet, cell, value); err != nil {
				return fmt.Errorf("export xlsx: %w", err)
			}
		}
	}

	if err := f.SetColWidth(reviewSheet, "B", "C", 80); err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}
	return nil
}
