package progress

import (
	"encoding/base64"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/abem93/progress-widgets/internal/apperr"
	"github.com/abem93/progress-widgets/internal/models"
)

func TestDerivePercentage(t *testing.T) {
	tests := []struct {
		name          string
		current, goal float64
		want          float64
	}{
		{name: "partial", current: 70, goal: 100, want: 70},
		{name: "fraction", current: 1, goal: 3, want: 100.0 / 3},
		{name: "over goal clamps", current: 250, goal: 100, want: 100},
		{name: "negative current clamps", current: -5, goal: 100, want: 0},
		{name: "zero goal", current: 10, goal: 0, want: 0},
		{name: "negative goal", current: 10, goal: -4, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DerivePercentage(tt.current, tt.goal)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("DerivePercentage(%v, %v) = %v, want %v", tt.current, tt.goal, got, tt.want)
			}
		})
	}
}

func TestDerivePercentageMatchesClampFormula(t *testing.T) {
	for current := -50.0; current <= 300; current += 12.5 {
		for goal := 1.0; goal <= 200; goal += 33 {
			want := Clamp(current/goal*100, 0, 100)
			if got := DerivePercentage(current, goal); got != want {
				t.Fatalf("DerivePercentage(%v, %v) = %v, want %v", current, goal, got, want)
			}
		}
	}
}

func TestClampNaN(t *testing.T) {
	if got := Clamp(math.NaN(), 0, 100); got != 0 {
		t.Fatalf("Clamp(NaN) = %v, want 0", got)
	}
}

func TestEditKeepsSourceOfTruthPerUpdate(t *testing.T) {
	item := models.ProgressItem{ID: "1", Current: 70, Goal: 100, Percentage: 70}

	item = Edit(item, FieldPercentage, 90)
	if item.Percentage != 90 || item.Current != 70 || item.Goal != 100 {
		t.Fatalf("direct percentage should leave current/goal stale, got %+v", item)
	}

	item = Edit(item, FieldGoal, 200)
	if item.Percentage != 35 {
		t.Fatalf("goal edit should re-derive from stale current, got %v", item.Percentage)
	}

	item = Edit(item, FieldCurrent, 20)
	if item.Percentage != 10 {
		t.Fatalf("current edit should re-derive, got %v", item.Percentage)
	}

	item = Edit(item, FieldGoal, 0)
	if item.Percentage != 0 {
		t.Fatalf("zero goal should force 0, got %v", item.Percentage)
	}

	item = Edit(item, FieldPercentage, 140)
	if item.Percentage != 100 {
		t.Fatalf("direct percentage should clamp, got %v", item.Percentage)
	}
}

func TestApplyCommands(t *testing.T) {
	base := models.ProgressItem{ID: "1", Label: "Photography", Current: 70, Goal: 100, Percentage: 70, Color: "blue"}
	img := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png"))

	tests := []struct {
		name    string
		cmd     Command
		check   func(t *testing.T, got models.ProgressItem)
		wantErr bool
	}{
		{
			name: "label",
			cmd:  SetLabel{Label: "  Cooking "},
			check: func(t *testing.T, got models.ProgressItem) {
				if got.Label != "Cooking" {
					t.Fatalf("label = %q", got.Label)
				}
			},
		},
		{name: "empty label", cmd: SetLabel{Label: " "}, wantErr: true},
		{
			name: "current and goal",
			cmd:  SetCurrentGoal{Current: 30, Goal: 60},
			check: func(t *testing.T, got models.ProgressItem) {
				if got.Current != 30 || got.Goal != 60 || got.Percentage != 50 {
					t.Fatalf("got %+v", got)
				}
			},
		},
		{name: "non-positive goal", cmd: SetCurrentGoal{Current: 30, Goal: 0}, wantErr: true},
		{
			name: "percentage",
			cmd:  SetPercentage{Percentage: 12},
			check: func(t *testing.T, got models.ProgressItem) {
				if got.Percentage != 12 || got.Current != 70 {
					t.Fatalf("got %+v", got)
				}
			},
		},
		{
			name: "color",
			cmd:  SetColor{Color: "emerald"},
			check: func(t *testing.T, got models.ProgressItem) {
				if got.Color != "emerald" {
					t.Fatalf("color = %q", got.Color)
				}
			},
		},
		{name: "unknown color", cmd: SetColor{Color: "mauve"}, wantErr: true},
		{
			name: "image",
			cmd:  SetImage{Image: img},
			check: func(t *testing.T, got models.ProgressItem) {
				if got.Image == nil || *got.Image != img {
					t.Fatalf("image not set")
				}
			},
		},
		{name: "bad image", cmd: SetImage{Image: "data:text/plain;base64,aGk="}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(base, tt.cmd)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			tt.check(t, got)
		})
	}
}

func TestApplyClearImage(t *testing.T) {
	img := "data:image/png;base64,aGk="
	item := models.ProgressItem{ID: "1", Image: &img}
	got, err := Apply(item, SetImage{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Image != nil {
		t.Fatalf("image should be cleared")
	}
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := DecodeCommand([]byte(`{"type":"set_current_goal","current":5,"goal":10}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := cmd.(SetCurrentGoal)
	if !ok || got.Current != 5 || got.Goal != 10 {
		t.Fatalf("decoded %#v", cmd)
	}

	if _, err := DecodeCommand([]byte(`{"type":"set_everything"}`)); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
	if _, err := DecodeCommand([]byte(`not json`)); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for bad json, got %v", err)
	}
}

func TestValidateImageSizeLimit(t *testing.T) {
	big := make([]byte, MaxImageBytes+1)
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(big)
	if err := ValidateImage(dataURL); err == nil || !strings.Contains(err.Error(), "1MB") {
		t.Fatalf("expected size error, got %v", err)
	}

	ok := make([]byte, MaxImageBytes)
	if err := ValidateImage("data:image/png;base64," + base64.StdEncoding.EncodeToString(ok)); err != nil {
		t.Fatalf("image at the limit should pass: %v", err)
	}
}

func TestValidateItems(t *testing.T) {
	good := models.ProgressItem{ID: "1", Label: "Photography", Current: 70, Goal: 100, Percentage: 70, Color: "blue"}
	if err := ValidateItems([]models.ProgressItem{good}); err != nil {
		t.Fatalf("valid items rejected: %v", err)
	}
	if err := ValidateItems(nil); err == nil {
		t.Fatalf("empty items should fail")
	}
	if err := ValidateItems([]models.ProgressItem{good, good}); err == nil {
		t.Fatalf("duplicate ids should fail")
	}
	noGoal := good
	noGoal.Goal = 0
	if err := ValidateItems([]models.ProgressItem{noGoal}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("non-positive goal should fail validation, got %v", err)
	}
}

func TestNewItemDefaults(t *testing.T) {
	item := NewItem("42")
	if err := ValidateItem(item); err != nil {
		t.Fatalf("default item should be valid: %v", err)
	}
	if item.Percentage != DerivePercentage(item.Current, item.Goal) {
		t.Fatalf("default item percentage out of sync")
	}
}
