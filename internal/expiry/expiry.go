// Package expiry contains the date math for spoilage tracking. All
// calculations work on civil dates: the time-of-day component of both
// the expiration and the reference moment is ignored.
package expiry

import (
	"time"

	"proviant/internal/models"
)

// Urgency classifies how close an item is to spoiling.
type Urgency int

const (
	UrgencyNone Urgency = iota
	UrgencyExpired
	UrgencyToday
	UrgencyTomorrow
	UrgencySoon
)

func (u Urgency) String() string {
	switch u {
	case UrgencyExpired:
		return "expired"
	case UrgencyToday:
		return "today"
	case UrgencyTomorrow:
		return "tomorrow"
	case UrgencySoon:
		return "soon"
	default:
		return "none"
	}
}

// DaysUntil returns the number of calendar days from ref to expiration.
// Same day gives 0, a past date gives a negative count. The civil dates
// are rebuilt in UTC before subtracting so DST transitions in the local
// zone cannot skew the count.
func DaysUntil(expiration, ref time.Time) int {
	return int(civilDate(expiration).Sub(civilDate(ref)).Hours() / 24)
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ItemDaysUntil resolves DaysUntil for an item. The second return is
// false when the item has no expiration date.
func ItemDaysUntil(item *models.Item, ref time.Time) (int, bool) {
	if item == nil || item.ExpiresAt == nil {
		return 0, false
	}
	return DaysUntil(*item.ExpiresAt, ref), true
}

// Classify maps a day offset onto an urgency bucket given the alert
// horizon (inclusive upper bound in days).
func Classify(days, horizon int) Urgency {
	switch {
	case days < 0:
		return UrgencyExpired
	case days == 0:
		return UrgencyToday
	case days == 1:
		return UrgencyTomorrow
	case days <= horizon:
		return UrgencySoon
	default:
		return UrgencyNone
	}
}

// WithinHorizon reports whether an offset falls into the alert window
// [0, horizon].
func WithinHorizon(days, horizon int) bool {
	return days >= 0 && days <= horizon
}
