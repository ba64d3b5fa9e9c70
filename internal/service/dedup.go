package service

import (
	"strings"

	"proviant/internal/expiry"
	"proviant/internal/models"
)

// Поиск дубликатов: нормализованное имя в том же инвентаре. Никакого
// нечёткого сравнения, иначе сольются разные продукты.

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// findDuplicateIn возвращает позицию с тем же нормализованным именем в
// том же инвентаре, nil если совпадений нет.
func findDuplicateIn(name string, inventoryID int64, existing []models.Item) *models.Item {
	norm := normalizeName(name)
	for i := range existing {
		if existing[i].InventoryID != inventoryID {
			continue
		}
		if normalizeName(existing[i].Name) == norm {
			return &existing[i]
		}
	}
	return nil
}

// canMerge разрешает слияние при совпадающих единицах измерения и
// неотрицательных количествах. Таблицы пересчёта единиц нет.
func canMerge(existing *models.Item, incoming models.ItemInput) (bool, string) {
	if !strings.EqualFold(strings.TrimSpace(existing.Unit), strings.TrimSpace(incoming.Unit)) {
		return false, "единицы измерения не совпадают"
	}
	if existing.Quantity < 0 || incoming.Quantity < 0 {
		return false, "количество отрицательное"
	}
	return true, ""
}

// mergePatch строит патч слияния: количества суммируются, описание
// замещается только непустым и отличающимся, срок годности двигается
// только на более ранний. Позднее входящее не меняет срок: у слитой
// позиции остаётся ближайшая дата порчи.
func mergePatch(existing *models.Item, incoming models.ItemInput) models.ItemPatch {
	patch := models.ItemPatch{}

	qty := existing.Quantity + incoming.Quantity
	patch.Quantity = &qty

	if desc := strings.TrimSpace(incoming.Description); desc != "" && desc != existing.Description {
		patch.Description = &desc
	}

	if incoming.ExpiresAt != nil {
		if existing.ExpiresAt == nil || expiry.DaysUntil(*incoming.ExpiresAt, *existing.ExpiresAt) < 0 {
			at := *incoming.ExpiresAt
			patch.ExpiresAt = &at
		}
	}

	return patch
}

// applyPatch накладывает патч слияния на копию существующей позиции.
func applyPatch(existing *models.Item, patch models.ItemPatch) models.Item {
	merged := *existing
	if patch.Quantity != nil {
		merged.Quantity = *patch.Quantity
	}
	if patch.Description != nil {
		merged.Description = *patch.Description
	}
	if patch.ExpiresAt != nil {
		merged.ExpiresAt = patch.ExpiresAt
	}
	return merged
}
