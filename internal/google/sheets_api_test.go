package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"proviant/internal/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(ctx context.Context) (*http.ServeMux, *httptest.Server, *SheetsService) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	srv, _ := sheets.NewService(ctx, option.WithEndpoint(server.URL), option.WithoutAuthentication())
	s := &SheetsService{
		service:       srv,
		spreadsheetID: "inv_tid",
		rowCache:      make(map[int64]int),
	}
	return mux, server, s
}

func testSheetItem(id int64) *models.Item {
	return &models.Item{
		ID:          id,
		InventoryID: 1,
		Name:        "Молоко",
		Category:    "Молочное",
		Quantity:    1,
		Unit:        "л",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func TestSheetsService_TestConnection(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	mux.HandleFunc("/v4/spreadsheets/inv_tid/values/Items!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	err := s.TestConnection(ctx)
	if err != nil {
		t.Errorf("TestConnection failed: %v", err)
	}
}

func TestSheetsService_WarmUpCache(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	mux.HandleFunc("/v4/spreadsheets/inv_tid/values/Items!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {"123"}, {"456"}},
		})
	})
	err := s.WarmUpCache(ctx)
	if err != nil {
		t.Errorf("WarmUpCache failed: %v", err)
	}
	if row, ok := s.getCachedRow(123); !ok || row != 2 {
		t.Errorf("Expected row 2 for ID 123, got %d", row)
	}
	if row, ok := s.getCachedRow(456); !ok || row != 3 {
		t.Errorf("Expected row 3 for ID 456, got %d", row)
	}
}

func TestSheetsService_UpsertItemRow_Update(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	s.setCachedRow(123, 2)
	mux.HandleFunc("/v4/spreadsheets/inv_tid/values/Items!A2:K2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})
	err := s.UpsertItemRow(ctx, testSheetItem(123))
	if err != nil {
		t.Errorf("UpsertItemRow failed: %v", err)
	}
}

func TestSheetsService_UpsertItemRow_Append(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	// В колонке ID нет позиции 789, upsert уходит в append.
	mux.HandleFunc("/v4/spreadsheets/inv_tid/values/Items!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}, {"1"}}})
	})
	mux.HandleFunc("/v4/spreadsheets/inv_tid/values/Items!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{
			Updates: &sheets.UpdateValuesResponse{
				UpdatedRange: "Items!A10:K10",
			},
		})
	})
	err := s.UpsertItemRow(ctx, testSheetItem(789))
	if err != nil {
		t.Errorf("UpsertItemRow failed: %v", err)
	}
	if row, _ := s.getCachedRow(789); row != 10 {
		t.Errorf("Expected cached row 10, got %d", row)
	}
}

func TestSheetsService_DeleteItemRow(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	s.setCachedRow(456, 3)
	mux.HandleFunc("/v4/spreadsheets/inv_tid/values/Items!A3:K3:clear", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})
	err := s.DeleteItemRow(ctx, 456)
	if err != nil {
		t.Errorf("DeleteItemRow failed: %v", err)
	}
	if _, ok := s.getCachedRow(456); ok {
		t.Error("Expected 456 to be removed from cache")
	}
}

func TestSheetsService_DeleteItemRow_Missing(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	mux.HandleFunc("/v4/spreadsheets/inv_tid/values/Items!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	// clear не зарегистрирован: если бы удаление пошло дальше, тест бы упал.
	err := s.DeleteItemRow(ctx, 999)
	if err != nil {
		t.Errorf("Expected nil for missing row, got %v", err)
	}
}

func TestSheetsService_ReplaceInventorySheet(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	mux.HandleFunc("/v4/spreadsheets/inv_tid/values/Items!A:Z:clear", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})
	mux.HandleFunc("/v4/spreadsheets/inv_tid/values/Items!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})
	items := []models.Item{*testSheetItem(1), *testSheetItem(2)}
	err := s.ReplaceInventorySheet(ctx, items)
	if err != nil {
		t.Errorf("ReplaceInventorySheet failed: %v", err)
	}
	if row, _ := s.getCachedRow(1); row != 2 {
		t.Errorf("Expected cached row 2, got %d", row)
	}
	if row, _ := s.getCachedRow(2); row != 3 {
		t.Errorf("Expected cached row 3, got %d", row)
	}
}

func TestSheetsService_FindItemRow_FullScan(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	mux.HandleFunc("/v4/spreadsheets/inv_tid/values/Items!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {"999"}},
		})
	})
	row, err := s.FindItemRow(ctx, 999)
	if err != nil {
		t.Errorf("FindItemRow failed: %v", err)
	}
	if row != 2 {
		t.Errorf("Expected row 2, got %d", row)
	}
	// Повторный поиск идёт из кэша
	if cached, ok := s.getCachedRow(999); !ok || cached != 2 {
		t.Errorf("Expected cached row 2, got %d", cached)
	}
}
