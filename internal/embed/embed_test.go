package embed

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abem93/progress-widgets/internal/apperr"
	"github.com/abem93/progress-widgets/internal/database"
	"github.com/abem93/progress-widgets/internal/models"
	"github.com/abem93/progress-widgets/internal/store"
	"gorm.io/gorm/logger"
)

type fakeReader struct {
	mu           sync.Mutex
	widgets      map[string]models.Widget
	incrementErr error
	increments   int
}

func (f *fakeReader) GetByID(_ context.Context, id string) (models.Widget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.widgets[id]
	if !ok {
		return models.Widget{}, apperr.NotFound("widget not found")
	}
	return w, nil
}

func (f *fakeReader) IncrementEmbedViews(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments++
	if f.incrementErr != nil {
		return f.incrementErr
	}
	w := f.widgets[id]
	w.EmbedViews++
	f.widgets[id] = w
	return nil
}

func skills() models.Widget {
	return models.Widget{
		ID:      "w1",
		Name:    "Skills",
		OwnerID: "u1",
		Items: []models.ProgressItem{
			{ID: "1", Label: "Photography", Current: 70, Goal: 100, Percentage: 70, Color: "blue"},
		},
	}
}

func TestResolveCountsView(t *testing.T) {
	reader := &fakeReader{widgets: map[string]models.Widget{"w1": skills()}}
	r := NewResolver(reader, time.Second)

	view, err := r.Resolve(context.Background(), "w1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	r.Wait()

	if len(view.Items) != 1 || view.Items[0].Label != "Photography" || view.Items[0].Percentage != 70 || view.Items[0].Color != "blue" {
		t.Fatalf("view = %+v", view)
	}
	if reader.widgets["w1"].EmbedViews != 1 {
		t.Fatalf("EmbedViews = %d, want 1", reader.widgets["w1"].EmbedViews)
	}
}

func TestResolveIgnoresIncrementFailure(t *testing.T) {
	reader := &fakeReader{
		widgets:      map[string]models.Widget{"w1": skills()},
		incrementErr: errors.New("store unavailable"),
	}
	r := NewResolver(reader, time.Second)

	view, err := r.Resolve(context.Background(), "w1")
	if err != nil {
		t.Fatalf("increment failure must not surface, got %v", err)
	}
	r.Wait()
	if view.Name != "Skills" {
		t.Fatalf("view = %+v", view)
	}
	if reader.increments != 1 {
		t.Fatalf("increments = %d, want 1", reader.increments)
	}
}

func TestResolveUnknown(t *testing.T) {
	reader := &fakeReader{widgets: map[string]models.Widget{}}
	r := NewResolver(reader, time.Second)

	if _, err := r.Resolve(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	r.Wait()
	if reader.increments != 0 {
		t.Fatalf("unknown widget should not be counted")
	}
}

func TestResolveSurvivesCanceledRequest(t *testing.T) {
	reader := &fakeReader{widgets: map[string]models.Widget{"w1": skills()}}
	r := NewResolver(reader, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := r.Resolve(ctx, "w1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	cancel()
	r.Wait()
	if reader.widgets["w1"].EmbedViews != 1 {
		t.Fatalf("view should be counted after the request ends")
	}
}

func TestSkillsScenarioAgainstSQLStore(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(filepath.Join(t.TempDir(), "embed.db"), logger.Silent)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	widgets := store.NewGormWidgetStore(db)
	if err := database.Migrate(db, widgets.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc := store.NewWidgetService(widgets)

	w, err := svc.Create(ctx, "u1", models.CreateWidgetRequest{Name: "Skills", Items: skills().Items})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	listed, err := svc.List(ctx, "u1")
	if err != nil || len(listed) != 1 || listed[0].ID != w.ID {
		t.Fatalf("list = %+v, %v", listed, err)
	}

	r := NewResolver(widgets, time.Second)
	view, err := r.Resolve(ctx, w.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	r.Wait()
	if len(view.Items) != 1 || view.Items[0].Label != "Photography" {
		t.Fatalf("view = %+v", view)
	}
	after, _ := widgets.GetByID(ctx, w.ID)
	if after.EmbedViews != 1 {
		t.Fatalf("EmbedViews = %d, want 1", after.EmbedViews)
	}

	if _, err := r.Resolve(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRenderHTML(t *testing.T) {
	img := "data:image/png;base64,aGk="
	w := skills()
	w.Items = append(w.Items, models.ProgressItem{ID: "2", Label: "A label that is definitely longer than twenty five", Percentage: 33.4, Color: "teal", Image: &img})

	out, err := RenderHTML(View(w))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	page := string(out)
	for _, want := range []string{
		"Photography",
		"width: 70%",
		"bg-teal-500",
		"A label that is definitel...",
		`src="data:image/png;base64,aGk="`,
		"2 items",
	} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q:\n%s", want, page)
		}
	}

	missing, err := RenderNotFound()
	if err != nil {
		t.Fatalf("render not found: %v", err)
	}
	if !strings.Contains(string(missing), "Widget Not Found") {
		t.Fatalf("not found page = %s", missing)
	}
}

func TestCode(t *testing.T) {
	got := Code("https://widgets.example.com/", "w1")
	want := `<iframe src="https://widgets.example.com/embed/w1" width="400" height="320"></iframe>`
	if got != want {
		t.Fatalf("Code = %q, want %q", got, want)
	}
}
