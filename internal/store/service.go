package store

import (
	"context"
	"strings"

	"github.com/abem93/progress-widgets/internal/apperr"
	"github.com/abem93/progress-widgets/internal/models"
	"github.com/abem93/progress-widgets/internal/progress"
)

// MaxNameLength bounds widget names.
const MaxNameLength = 120

// WidgetService is the owner-facing widget API. It validates input before
// touching the store and hides widgets of other owners behind NotFound.
type WidgetService struct {
	widgets WidgetStore
}

func NewWidgetService(widgets WidgetStore) *WidgetService {
	return &WidgetService{widgets: widgets}
}

func (s *WidgetService) Create(ctx context.Context, ownerID string, req models.CreateWidgetRequest) (models.Widget, error) {
	if ownerID == "" {
		return models.Widget{}, apperr.ErrUnauthenticated
	}
	name, err := validateName(req.Name)
	if err != nil {
		return models.Widget{}, err
	}
	if err := progress.ValidateItems(req.Items); err != nil {
		return models.Widget{}, err
	}

	id, err := s.widgets.Create(ctx, ownerID, name, req.Items)
	if err != nil {
		return models.Widget{}, err
	}
	return s.widgets.GetByID(ctx, id)
}

func (s *WidgetService) List(ctx context.Context, ownerID string) ([]models.Widget, error) {
	return s.widgets.ListByOwner(ctx, ownerID)
}

func (s *WidgetService) Get(ctx context.Context, ownerID, id string) (models.Widget, error) {
	w, err := s.widgets.GetByID(ctx, id)
	if err != nil {
		return models.Widget{}, err
	}
	if w.OwnerID != ownerID {
		return models.Widget{}, apperr.NotFound("widget not found")
	}
	return w, nil
}

func (s *WidgetService) Update(ctx context.Context, ownerID, id string, patch models.WidgetPatch) (models.Widget, error) {
	if patch.Name != nil {
		name, err := validateName(*patch.Name)
		if err != nil {
			return models.Widget{}, err
		}
		patch.Name = &name
	}
	if patch.Items != nil {
		if err := progress.ValidateItems(*patch.Items); err != nil {
			return models.Widget{}, err
		}
	}

	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return models.Widget{}, err
	}
	if err := s.widgets.Update(ctx, id, patch); err != nil {
		return models.Widget{}, err
	}
	return s.widgets.GetByID(ctx, id)
}

func (s *WidgetService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return s.widgets.Delete(ctx, id)
}

// ApplyItemCommand runs one edit command against a single item and writes
// the widget's items back.
func (s *WidgetService) ApplyItemCommand(ctx context.Context, ownerID, widgetID, itemID string, cmd progress.Command) (models.Widget, error) {
	w, err := s.Get(ctx, ownerID, widgetID)
	if err != nil {
		return models.Widget{}, err
	}

	items := make([]models.ProgressItem, len(w.Items))
	copy(items, w.Items)

	found := false
	for i := range items {
		if items[i].ID != itemID {
			continue
		}
		edited, err := progress.Apply(items[i], cmd)
		if err != nil {
			return models.Widget{}, err
		}
		items[i] = edited
		found = true
		break
	}
	if !found {
		return models.Widget{}, apperr.NotFound("item not found")
	}

	if err := s.widgets.Update(ctx, widgetID, models.WidgetPatch{Items: &items}); err != nil {
		return models.Widget{}, err
	}
	return s.widgets.GetByID(ctx, widgetID)
}

// Stats sums the owner's widgets and their embed views.
func (s *WidgetService) Stats(ctx context.Context, ownerID string) (models.WidgetStats, error) {
	widgets, err := s.widgets.ListByOwner(ctx, ownerID)
	if err != nil {
		return models.WidgetStats{}, err
	}
	stats := models.WidgetStats{Widgets: len(widgets)}
	for _, w := range widgets {
		stats.TotalViews += w.EmbedViews
	}
	return stats, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("widget name is required")
	}
	if len(name) > MaxNameLength {
		return "", apperr.Validation("widget name must be at most %d characters", MaxNameLength)
	}
	return name, nil
}
