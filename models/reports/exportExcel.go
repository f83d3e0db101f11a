package reports

import (
	"context"
	"fmt"
	"io"

	"github.com/mmdatafocus/beergame_backend/models"
	"github.com/xuri/excelize/v2"
)

var historyHeadings = []string{
	"Week",
	"CustomerDemand",
	"RetailerInventory", "RetailerBacklog", "RetailerOrder", "RetailerShipment",
	"WholesalerInventory", "WholesalerBacklog", "WholesalerOrder", "WholesalerShipment",
	"DistributorInventory", "DistributorBacklog", "DistributorOrder", "DistributorShipment",
	"ManufacturerInventory", "ManufacturerBacklog", "ManufacturerOrder", "ManufacturerShipment",
}

// ExportGameHistoryXlsx streams the week-by-week snapshots of a game as an
// xlsx workbook, one row per settled week. This is the download facilitators
// use for post-game bullwhip debriefs.
func ExportGameHistoryXlsx(ctx context.Context, gameId string, w io.Writer) error {
	weeks, err := models.GetGameHistory(ctx, gameId)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheetName := "History"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}
	f.DeleteSheet("Sheet1")

	for i, h := range historyHeadings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheetName, cell, h)
	}

	for rowIdx, week := range weeks {
		values := []interface{}{
			week.WeekNumber,
			week.CustomerDemand,
			week.RetailerInventory, week.RetailerBacklog, week.RetailerOrder, week.RetailerShipment,
			week.WholesalerInventory, week.WholesalerBacklog, week.WholesalerOrder, week.WholesalerShipment,
			week.DistributorInventory, week.DistributorBacklog, week.DistributorOrder, week.DistributorShipment,
			week.ManufacturerInventory, week.ManufacturerBacklog, week.ManufacturerOrder, week.ManufacturerShipment,
		}
		for colIdx, value := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			f.SetCellValue(sheetName, cell, value)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}
