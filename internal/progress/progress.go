// Package progress holds the pure rules for progress items: percentage
// derivation, the item edit commands and boundary validation.
package progress

import (
	"math"

	"github.com/abem93/progress-widgets/internal/models"
)

// Field names the item value a user edited last.
type Field string

const (
	FieldCurrent    Field = "current"
	FieldGoal       Field = "goal"
	FieldPercentage Field = "percentage"
)

// Clamp bounds v to [lo, hi]. NaN clamps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DerivePercentage returns current/goal as a percentage in [0,100].
// A non-positive goal yields 0.
func DerivePercentage(current, goal float64) float64 {
	if goal <= 0 {
		return 0
	}
	return Clamp(current/goal*100, 0, 100)
}

// Edit applies a single value edit to item. Editing current or goal
// recomputes the percentage; editing the percentage takes it verbatim
// (clamped) and leaves current/goal as they were.
func Edit(item models.ProgressItem, field Field, value float64) models.ProgressItem {
	switch field {
	case FieldCurrent:
		item.Current = value
		item.Percentage = DerivePercentage(item.Current, item.Goal)
	case FieldGoal:
		item.Goal = value
		item.Percentage = DerivePercentage(item.Current, item.Goal)
	case FieldPercentage:
		item.Percentage = Clamp(value, 0, 100)
	}
	return item
}

// NewItem returns the default item added by the widget editor.
func NewItem(id string) models.ProgressItem {
	return models.ProgressItem{
		ID:         id,
		Label:      "New Skill",
		Current:    50,
		Goal:       100,
		Percentage: 50,
		Color:      DefaultColor,
	}
}
