package bot

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"proviant/internal/database"
	"proviant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text untouched",
			input:    "Молоко",
			expected: "Молоко",
		},
		{
			name:     "newlines collapse to spaces",
			input:    "Молоко\nдомашнее\r\nсвежее",
			expected: "Молоко домашнее  свежее",
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "  Кефир  ",
			expected: "Кефир",
		},
		{
			name:     "long input capped at 200 runes",
			input:    strings.Repeat("я", 250),
			expected: strings.Repeat("я", 200),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeInput(tt.input))
		})
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		expectedQty  float64
		expectedUnit string
		wantErr      bool
	}{
		{
			name:         "integer with unit",
			input:        "2 л",
			expectedQty:  2,
			expectedUnit: "л",
		},
		{
			name:         "comma decimal",
			input:        "0,5 кг",
			expectedQty:  0.5,
			expectedUnit: "кг",
		},
		{
			name:         "dot decimal",
			input:        "1.25 л",
			expectedQty:  1.25,
			expectedUnit: "л",
		},
		{
			name:         "multiword unit joined",
			input:        "3 шт в упаковке",
			expectedQty:  3,
			expectedUnit: "шт в упаковке",
		},
		{
			name:    "missing unit",
			input:   "2",
			wantErr: true,
		},
		{
			name:    "not a number",
			input:   "два литра",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qty, unit, err := parseQuantity(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedQty, qty)
			assert.Equal(t, tt.expectedUnit, unit)
		})
	}
}

func TestParseUserDate(t *testing.T) {
	want := time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "russian format", input: "25.12.2026"},
		{name: "iso format", input: "2026-12-25"},
		{name: "padded input", input: "  25.12.2026  "},
		{name: "unsupported separator", input: "25/12/2026", wantErr: true},
		{name: "garbage", input: "завтра", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseUserDate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		quantity float64
		unit     string
		expected string
	}{
		{quantity: 2, unit: "шт", expected: "2 шт"},
		{quantity: 0.5, unit: "кг", expected: "0.5 кг"},
		{quantity: 1.25, unit: "л", expected: "1.25 л"},
		{quantity: 100, unit: "г", expected: "100 г"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatQuantity(tt.quantity, tt.unit))
		})
	}
}

func TestFormatItemLine(t *testing.T) {
	ref := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	expiresOn := func(y int, m time.Month, d int) *time.Time {
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}

	tests := []struct {
		name     string
		item     models.Item
		expected string
	}{
		{
			name:     "no expiry",
			item:     models.Item{Name: "Соль", Quantity: 1, Unit: "упак"},
			expected: "⚪️ Соль — 1 упак, без срока",
		},
		{
			name:     "expired",
			item:     models.Item{Name: "Кефир", Quantity: 1, Unit: "л", ExpiresAt: expiresOn(2026, 3, 8)},
			expected: "🔴 Кефир — 1 л, просрочено с 08.03.2026",
		},
		{
			name:     "expires today",
			item:     models.Item{Name: "Молоко", Quantity: 1, Unit: "л", ExpiresAt: expiresOn(2026, 3, 10)},
			expected: "🟠 Молоко — 1 л, истекает сегодня",
		},
		{
			name:     "expires tomorrow",
			item:     models.Item{Name: "Творог", Quantity: 0.5, Unit: "кг", ExpiresAt: expiresOn(2026, 3, 11)},
			expected: "🟡 Творог — 0.5 кг, истекает завтра",
		},
		{
			name:     "expires within horizon",
			item:     models.Item{Name: "Сметана", Quantity: 1, Unit: "упак", ExpiresAt: expiresOn(2026, 3, 13)},
			expected: "🟡 Сметана — 1 упак, осталось 3 дн.",
		},
		{
			name:     "far away",
			item:     models.Item{Name: "Тушёнка", Quantity: 2, Unit: "шт", ExpiresAt: expiresOn(2026, 4, 9)},
			expected: "🟢 Тушёнка — 2 шт, годен до 09.04.2026",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatItemLine(tt.item, ref))
		})
	}
}

func TestGetErrorMessage(t *testing.T) {
	b := &Bot{}

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "empty name",
			err:      database.ErrEmptyName,
			expected: "Название не может быть пустым",
		},
		{
			name:     "invalid quantity",
			err:      database.ErrInvalidQuantity,
			expected: "Количество должно быть положительным",
		},
		{
			name:     "merge not allowed",
			err:      database.ErrMergeNotAllowed,
			expected: "нельзя объединить",
		},
		{
			name:     "wrapped concurrent modification",
			err:      fmt.Errorf("resolve duplicate: %w", database.ErrConcurrentModification),
			expected: "Позиция изменилась",
		},
		{
			name:     "wrapped not found",
			err:      fmt.Errorf("get item: %w", database.ErrItemNotFound),
			expected: "Позиция не найдена",
		},
		{
			name:     "unknown error",
			err:      fmt.Errorf("boom"),
			expected: "Произошла ошибка",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := b.getErrorMessage(tt.err)
			if tt.expected == "" {
				assert.Empty(t, msg)
				return
			}
			assert.Contains(t, msg, tt.expected)
		})
	}
}

func TestGroupColor(t *testing.T) {
	first := groupColor("Молочка")
	second := groupColor("Молочка")
	assert.Equal(t, first, second, "color must be stable for the same name")

	assert.Contains(t, groupPalette, first)
	assert.Contains(t, groupPalette, groupColor("Заморозка"))
}

func TestSortByUrgency(t *testing.T) {
	ref := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	at := func(d int) *time.Time {
		t := ref.AddDate(0, 0, d)
		return &t
	}

	items := []models.Item{
		{Name: "Соль", Quantity: 1, Unit: "упак"},
		{Name: "Мука", Quantity: 1, Unit: "кг", ExpiresAt: at(14)},
		{Name: "Кефир", Quantity: 1, Unit: "л", ExpiresAt: at(1)},
		{Name: "Сыр", Quantity: 1, Unit: "кг", ExpiresAt: at(-2)},
	}

	sortByUrgency(items, ref)

	var names []string
	for _, it := range items {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"Сыр", "Кефир", "Мука", "Соль"}, names)
}
