package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"proviant/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Лист с позициями в семейной таблице.
const itemsSheetName = "Items"

var errRowNotFound = errors.New("item row not found")

// SheetsService зеркалит инвентарь в Google-таблицу, чтобы домашние без
// телеграма видели, что лежит в кладовой. Кэш строк держит соответствие
// item.ID -> номер строки и спасает от полного скана колонки на каждый апдейт.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
}

func NewSheetsService(credentialsFile, spreadsheetID string) (*SheetsService, error) {
	ctx := context.Background()

	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client := config.Client(ctx)

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	service := &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[int64]int),
	}

	// Warm up cache in background
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		service.WarmUpCache(ctx)
	}()

	// Таблицу правят и руками, раз в час сверяем кэш с реальностью.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			service.WarmUpCache(ctx)
			cancel()
		}
	}()

	return service, nil
}

// TestConnection проверяет подключение к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, itemsSheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// GetServiceAccountEmail возвращает email сервисного аккаунта, чтобы было
// что показать при настройке доступа к таблице.
func (s *SheetsService) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}

	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}

	return creds.ClientEmail, nil
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, itemsSheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		var id int64
		switch v := row[0].(type) {
		case float64:
			id = int64(v)
		case string:
			fmt.Sscanf(v, "%d", &id)
		}
		if id > 0 {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

// UpsertItemRow updates the existing row of an item or appends a new one.
func (s *SheetsService) UpsertItemRow(ctx context.Context, item *models.Item) error {
	if item == nil {
		return fmt.Errorf("item is nil")
	}

	rowIdx, err := s.FindItemRow(ctx, item.ID)
	if err != nil {
		if errors.Is(err, errRowNotFound) {
			return s.appendItem(ctx, item)
		}
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:K%d", itemsSheetName, rowIdx, rowIdx)
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{itemRowValues(item)},
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// DeleteItemRow removes the row that corresponds to itemID. Отсутствующая
// строка не ошибка: зеркалу нечего удалять, а ретраи тут не помогут.
func (s *SheetsService) DeleteItemRow(ctx context.Context, itemID int64) error {
	rowIdx, err := s.FindItemRow(ctx, itemID)
	if errors.Is(err, errRowNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:K%d", itemsSheetName, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Clear(s.spreadsheetID, rangeData, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err == nil {
		s.deleteCacheRow(itemID)
	}
	return err
}

// ReplaceInventorySheet полностью перезаписывает лист инвентаря.
func (s *SheetsService) ReplaceInventorySheet(ctx context.Context, items []models.Item) error {
	clearRange := itemsSheetName + "!A:Z"
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear items sheet: %v", err)
	}

	values := [][]interface{}{itemSheetHeaders()}
	for i := range items {
		values = append(values, itemRowValues(&items[i]))
	}

	valueRange := &sheets.ValueRange{
		Values: values,
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, itemsSheetName+"!A1", valueRange).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update items sheet: %v", err)
	}

	// Re-populate cache
	s.cacheMu.Lock()
	s.rowCache = make(map[int64]int)
	for i := range items {
		s.rowCache[items[i].ID] = i + 2 // +2 because data starts at row 2
	}
	s.cacheMu.Unlock()

	return nil
}

// appendItem добавляет строку в конец листа и запоминает её номер из ответа.
func (s *SheetsService) appendItem(ctx context.Context, item *models.Item) error {
	rangeData := itemsSheetName + "!A:A"
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{itemRowValues(item)},
	}

	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}

	if resp.Updates != nil {
		if row := rowFromRange(resp.Updates.UpdatedRange); row > 0 {
			s.setCachedRow(item.ID, row)
		}
	}
	return nil
}

// FindItemRow locates the 1-based row index for item id in column A with cache.
func (s *SheetsService) FindItemRow(ctx context.Context, itemID int64) (int, error) {
	if itemID == 0 {
		return 0, fmt.Errorf("item id is required")
	}

	if row, ok := s.getCachedRow(itemID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, itemsSheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		switch v := row[0].(type) {
		case float64:
			if int64(v) == itemID {
				rowIdx := i + 1 // Values are zero-based; sheet rows are 1-based
				s.setCachedRow(itemID, rowIdx)
				return rowIdx, nil
			}
		case string:
			// if ID stored as string
			if v == strconv.FormatInt(itemID, 10) {
				rowIdx := i + 1
				s.setCachedRow(itemID, rowIdx)
				return rowIdx, nil
			}
		}
	}

	return 0, errRowNotFound
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsService) deleteCacheRow(id int64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.rowCache, id)
}

// ClearCache clears the row index cache.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
}

func itemSheetHeaders() []interface{} {
	return []interface{}{
		"ID", "Инвентарь", "Название", "Категория", "Количество", "Ед.",
		"Годен до", "Описание", "Версия", "Создано", "Обновлено",
	}
}

func itemRowValues(item *models.Item) []interface{} {
	expires := ""
	if item.ExpiresAt != nil {
		expires = item.ExpiresAt.Format("2006-01-02")
	}
	return []interface{}{
		item.ID,
		item.InventoryID,
		item.Name,
		item.Category,
		item.Quantity,
		item.Unit,
		expires,
		item.Description,
		item.Version,
		item.CreatedAt.Format("2006-01-02 15:04:05"),
		item.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

// rowFromRange вытаскивает номер первой строки из ссылки вида "Items!A10:K10".
func rowFromRange(rangeRef string) int {
	ref := rangeRef
	if i := strings.LastIndex(ref, "!"); i >= 0 {
		ref = ref[i+1:]
	}
	if i := strings.Index(ref, ":"); i >= 0 {
		ref = ref[:i]
	}
	j := 0
	for j < len(ref) && (ref[j] < '0' || ref[j] > '9') {
		j++
	}
	row, err := strconv.Atoi(ref[j:])
	if err != nil {
		return 0
	}
	return row
}
