// Package embed serves widgets to anonymous viewers and counts the views.
package embed

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/abem93/progress-widgets/internal/models"
	"github.com/gofiber/fiber/v2/log"
)

// WidgetReader is the part of the widget store the resolver needs.
type WidgetReader interface {
	GetByID(ctx context.Context, id string) (models.Widget, error)
	IncrementEmbedViews(ctx context.Context, id string) error
}

// Resolver fetches widgets for public embedding. View counting is a
// background best-effort side effect and never affects the returned view.
type Resolver struct {
	widgets WidgetReader
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewResolver(widgets WidgetReader, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{widgets: widgets, timeout: timeout}
}

// Resolve returns the rendering-ready view of widgetID, or a NotFound error.
func (r *Resolver) Resolve(ctx context.Context, widgetID string) (models.EmbedView, error) {
	// The id outlives the request in countView; callers may pass strings
	// backed by a reused request buffer.
	widgetID = strings.Clone(widgetID)
	w, err := r.widgets.GetByID(ctx, widgetID)
	if err != nil {
		return models.EmbedView{}, err
	}

	r.wg.Add(1)
	go r.countView(widgetID)

	return View(w), nil
}

// countView runs detached from the request context so a viewer closing the
// page does not cancel the increment.
func (r *Resolver) countView(widgetID string) {
	defer r.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.widgets.IncrementEmbedViews(ctx, widgetID); err != nil {
		log.Warnf("Embed: failed to count view for widget %s: %v", widgetID, err)
	}
}

// Wait blocks until in-flight view increments finish. Used on shutdown.
func (r *Resolver) Wait() {
	r.wg.Wait()
}

// View projects a widget onto its public fields.
func View(w models.Widget) models.EmbedView {
	items := make([]models.EmbedItem, len(w.Items))
	for i, item := range w.Items {
		items[i] = models.EmbedItem{
			Label:      item.Label,
			Percentage: item.Percentage,
			Color:      item.Color,
			Image:      item.Image,
		}
	}
	return models.EmbedView{ID: w.ID, Name: w.Name, Items: items}
}

// Code returns the iframe snippet owners paste into their sites.
func Code(baseURL, widgetID string) string {
	src := strings.TrimRight(baseURL, "/") + "/embed/" + widgetID
	return fmt.Sprintf(`<iframe src="%s" width="400" height="320"></iframe>`, html.EscapeString(src))
}
