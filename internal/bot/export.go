package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"proviant/internal/expiry"
	"proviant/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// handleExport выгружает запасы в xlsx и отправляет файл документом в чат.
func (b *Bot) handleExport(ctx context.Context, chatID, userID int64) {
	user, ok := b.requireUser(ctx, chatID, userID)
	if !ok {
		return
	}

	items, err := b.itemService.List(ctx, user.ID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if len(items) == 0 {
		b.sendMessage(chatID, "Запасы пусты, экспортировать нечего.")
		return
	}

	filePath, err := b.exportInventoryToExcel(items, time.Now())
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Inventory export failed")
		b.sendMessage(chatID, "Ошибка при создании файла экспорта.")
		return
	}

	file, err := os.Open(filePath)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("file_path", filePath).Msg("Error opening export file")
		b.sendMessage(chatID, "Ошибка при открытии файла экспорта.")
		return
	}
	defer file.Close()

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{
		Name:   filepath.Base(filePath),
		Reader: file,
	})
	doc.Caption = fmt.Sprintf("📦 Запасы на %s", time.Now().Format("02.01.2006"))

	if _, err := b.tgService.Send(doc); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Error sending export document")
		b.sendMessage(chatID, "Ошибка при отправке файла.")
		return
	}

	if b.metrics != nil {
		b.metrics.ExportsGenerated.Inc()
	}
}

// exportInventoryToExcel создает Excel файл с запасами: ближайшие
// сроки сверху, строки подкрашены по срочности.
func (b *Bot) exportInventoryToExcel(items []models.Item, now time.Time) (string, error) {
	// Создаем папку для экспорта, если не существует
	if err := os.MkdirAll(b.config.Exports.Path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	sortByUrgency(items, now)

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Запасы"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Запасы на %s", now.Format("02.01.2006")))
	_ = f.MergeCell(sheetName, "A1", "G1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headers := []string{"№", "Название", "Категория", "Количество", "Ед.", "Годен до", "Осталось дней"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, item := range items {
		row := i + 3
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), i+1)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), item.Name)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), item.Category)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), item.Quantity)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), item.Unit)

		days, hasExpiry := expiry.ItemDaysUntil(&item, now)
		if hasExpiry {
			_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), item.ExpiresAt.Format("02.01.2006"))
			_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), days)
		} else {
			_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), "без срока")
		}

		if styleID, styleErr := urgencyRowStyle(f, days, hasExpiry); styleErr == nil {
			_ = f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("G%d", row), styleID)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 5)
	_ = f.SetColWidth(sheetName, "B", "B", 30)
	_ = f.SetColWidth(sheetName, "C", "C", 18)
	_ = f.SetColWidth(sheetName, "D", "D", 12)
	_ = f.SetColWidth(sheetName, "E", "E", 8)
	_ = f.SetColWidth(sheetName, "F", "F", 14)
	_ = f.SetColWidth(sheetName, "G", "G", 14)

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("inventory_%s.xlsx", now.Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(b.config.Exports.Path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	b.logger.Info().Str("file_path", filePath).Int("items", len(items)).Msg("Excel file created")
	return filePath, nil
}

// urgencyRowStyle заливка строки: красный для просроченного, желтый
// для истекающего в пределах горизонта, зеленый для дальнего срока.
// Позиции без срока остаются без заливки.
func urgencyRowStyle(f *excelize.File, days int, hasExpiry bool) (int, error) {
	alignment := &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true}

	if !hasExpiry {
		return f.NewStyle(&excelize.Style{Alignment: alignment})
	}

	switch expiry.Classify(days, models.AlertHorizonDays) {
	case expiry.UrgencyExpired:
		return f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
			Alignment: alignment,
		})
	case expiry.UrgencyToday, expiry.UrgencyTomorrow, expiry.UrgencySoon:
		return f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FFEB9C"}, Pattern: 1},
			Alignment: alignment,
		})
	default:
		return f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#C6EFCE"}, Pattern: 1},
			Alignment: alignment,
		})
	}
}
