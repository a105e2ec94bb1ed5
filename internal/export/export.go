// Package export формирует xlsx-выгрузки лотов.
package export

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"tenderfinder/internal/scoring"
	"tenderfinder/models"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Лоты TenderFinder"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxColumnWidth = 50
)

var lotHeaders = []string{
	"№", "Номер лота", "Оригинальное название", "Упрощённое название",
	"Китайское название", "Цена за единицу", "Количество", "Единица",
	"Заказчик", "Услуга", "Статус", "Дата создания",
}

var statsHeaders = []string{
	"Общие затраты", "Выручка", "Прибыль", "ROI %", "Наценка %",
}

// FileName - имя файла выгрузки с отметкой времени
func FileName(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, now.Format("20060102_150405"))
}

// Lots пишет таблицу выбранных лотов
func Lots(w io.Writer, lots []models.Lot) error {
	rows := make([][]interface{}, 0, len(lots))
	for i, lot := range lots {
		rows = append(rows, lotRow(i+1, lot))
	}
	return write(w, lotHeaders, rows)
}

// Favorites - те же колонки плюс прогноз по каждому лоту
func Favorites(w io.Writer, lots []scoring.ScoredLot) error {
	headers := append(append([]string{}, lotHeaders...), statsHeaders...)
	rows := make([][]interface{}, 0, len(lots))
	for i, lot := range lots {
		s := lot.Stats
		row := append(lotRow(i+1, lot.Lot),
			s.TotalExpense.InexactFloat64(),
			s.Revenue.InexactFloat64(),
			s.Profit.InexactFloat64(),
			s.ROI.InexactFloat64(),
			s.MarginPercent.InexactFloat64(),
		)
		rows = append(rows, row)
	}
	return write(w, headers, rows)
}

func lotRow(n int, lot models.Lot) []interface{} {
	service := "Нет"
	if lot.IsService {
		service = "Да"
	}
	return []interface{}{
		n,
		lot.LotNumber,
		deref(lot.OriginalName),
		deref(lot.SimplifiedName),
		deref(lot.ChineseName),
		lot.TenderPrice.InexactFloat64(),
		lot.Quantity,
		lot.Unit,
		lot.Customer,
		service,
		lot.Status,
		lot.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func write(w io.Writer, headers []string, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	header := make([]interface{}, len(headers))
	widths := make([]int, len(headers))
	for i, h := range headers {
		header[i] = h
		widths[i] = utf8.RuneCountInString(h)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return err
		}
		for col, v := range row {
			if col < len(widths) {
				if n := utf8.RuneCountInString(fmt.Sprint(v)); n > widths[col] {
					widths[col] = n
				}
			}
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastHeader, style); err != nil {
		return err
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, float64(min(width+2, maxColumnWidth))); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
