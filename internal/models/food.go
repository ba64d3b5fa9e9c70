package models

// FoodSuggestion одна позиция из внешнего каталога продуктов, предлагается
// как подсказка имени при вводе.
type FoodSuggestion struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Brand       string `json:"brand,omitempty"`
	Description string `json:"description,omitempty"`
}
