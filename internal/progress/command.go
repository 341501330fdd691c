package progress

import (
	"encoding/json"
	"strings"

	"github.com/abem93/progress-widgets/internal/apperr"
	"github.com/abem93/progress-widgets/internal/models"
)

// Command is one edit to a single progress item. The concrete types below
// are the only implementations.
type Command interface {
	commandType() string
}

type SetLabel struct {
	Label string `json:"label"`
}

// SetCurrentGoal replaces current and goal and re-derives the percentage.
type SetCurrentGoal struct {
	Current float64 `json:"current"`
	Goal    float64 `json:"goal"`
}

// SetPercentage sets the percentage directly, as a slider does.
type SetPercentage struct {
	Percentage float64 `json:"percentage"`
}

type SetColor struct {
	Color string `json:"color"`
}

// SetImage replaces the inline image; an empty Image clears it.
type SetImage struct {
	Image string `json:"image"`
}

func (SetLabel) commandType() string       { return "set_label" }
func (SetCurrentGoal) commandType() string { return "set_current_goal" }
func (SetPercentage) commandType() string  { return "set_percentage" }
func (SetColor) commandType() string       { return "set_color" }
func (SetImage) commandType() string       { return "set_image" }

// Apply runs cmd against item and returns the edited copy.
func Apply(item models.ProgressItem, cmd Command) (models.ProgressItem, error) {
	switch c := cmd.(type) {
	case SetLabel:
		label := strings.TrimSpace(c.Label)
		if label == "" {
			return item, apperr.Validation("label is required")
		}
		item.Label = label
	case SetCurrentGoal:
		if c.Goal <= 0 {
			return item, apperr.Validation("goal must be greater than zero")
		}
		item.Current = c.Current
		item = Edit(item, FieldGoal, c.Goal)
	case SetPercentage:
		item = Edit(item, FieldPercentage, c.Percentage)
	case SetColor:
		if !ValidColor(c.Color) {
			return item, apperr.Validation("unknown color %q", c.Color)
		}
		item.Color = c.Color
	case SetImage:
		if c.Image == "" {
			item.Image = nil
			return item, nil
		}
		if err := ValidateImage(c.Image); err != nil {
			return item, err
		}
		img := c.Image
		item.Image = &img
	default:
		return item, apperr.Validation("unsupported item command")
	}
	return item, nil
}

// DecodeCommand parses a JSON command of the form {"type": "...", ...}.
func DecodeCommand(data []byte) (Command, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, apperr.Validation("invalid command body")
	}

	var cmd Command
	var err error
	switch head.Type {
	case "set_label":
		var c SetLabel
		err = json.Unmarshal(data, &c)
		cmd = c
	case "set_current_goal":
		var c SetCurrentGoal
		err = json.Unmarshal(data, &c)
		cmd = c
	case "set_percentage":
		var c SetPercentage
		err = json.Unmarshal(data, &c)
		cmd = c
	case "set_color":
		var c SetColor
		err = json.Unmarshal(data, &c)
		cmd = c
	case "set_image":
		var c SetImage
		err = json.Unmarshal(data, &c)
		cmd = c
	default:
		return nil, apperr.Validation("unknown command type %q", head.Type)
	}
	if err != nil {
		return nil, apperr.Validation("invalid %s command", head.Type)
	}
	return cmd, nil
}
