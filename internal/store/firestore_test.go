package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/abem93/progress-widgets/internal/apperr"
	"github.com/abem93/progress-widgets/internal/models"
	"github.com/google/uuid"
)

// openTestFirestore connects to the emulator named by FIRESTORE_EMULATOR_HOST
// (e.g. `gcloud emulators firestore start --host-port=localhost:8081`).
func openTestFirestore(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "progress-widgets-test")
	if err != nil {
		t.Fatalf("firestore client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestFirestoreWidgets(t *testing.T) *FirestoreWidgetStore {
	t.Helper()
	s := NewFirestoreWidgetStore(openTestFirestore(t))
	s.now = stepClock()
	return s
}

// Emulator data outlives a test run, so every test works under its own owner.
func testOwner() string {
	return "owner-" + uuid.NewString()
}

func TestFirestoreCreateThenGet(t *testing.T) {
	ctx := context.Background()
	s := newTestFirestoreWidgets(t)

	id, err := s.Create(ctx, testOwner(), "Skills", skillsItems())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatal("expected store-assigned id")
	}

	w, err := s.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w.ID != id || w.Name != "Skills" || w.EmbedViews != 0 {
		t.Fatalf("unexpected widget %+v", w)
	}
	if !w.CreatedAt.Equal(w.UpdatedAt) {
		t.Fatalf("createdAt %v != updatedAt %v", w.CreatedAt, w.UpdatedAt)
	}
	if len(w.Items) != 1 || w.Items[0].Label != "Photography" || w.Items[0].Image != nil {
		t.Fatalf("items = %+v", w.Items)
	}

	for _, missing := range []string{"missing-" + uuid.NewString(), "", "a/b"} {
		if _, err := s.GetByID(ctx, missing); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("GetByID(%q) = %v, want not found", missing, err)
		}
	}
}

func TestFirestoreListByOwnerNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestFirestoreWidgets(t)
	owner := testOwner()

	first, _ := s.Create(ctx, owner, "First", skillsItems())
	second, _ := s.Create(ctx, owner, "Second", skillsItems())
	if _, err := s.Create(ctx, testOwner(), "Other", skillsItems()); err != nil {
		t.Fatalf("create: %v", err)
	}

	widgets, err := s.ListByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(widgets) != 2 {
		t.Fatalf("len = %d, want 2", len(widgets))
	}
	if widgets[0].ID != second || widgets[1].ID != first {
		t.Fatalf("order = [%s %s], want [%s %s]", widgets[0].ID, widgets[1].ID, second, first)
	}

	none, err := s.ListByOwner(ctx, testOwner())
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", none)
	}
}

func TestFirestoreUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestFirestoreWidgets(t)
	id, _ := s.Create(ctx, testOwner(), "Skills", skillsItems())
	before, _ := s.GetByID(ctx, id)

	name := "X"
	if err := s.Update(ctx, id, models.WidgetPatch{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	after, err := s.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.Name != "X" || after.OwnerID != before.OwnerID || !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("widget after update = %+v", after)
	}
	if len(after.Items) != 1 || after.Items[0] != before.Items[0] {
		t.Fatalf("items changed: %+v", after.Items)
	}
	if !after.UpdatedAt.After(after.CreatedAt) {
		t.Fatalf("updatedAt %v should be after createdAt %v", after.UpdatedAt, after.CreatedAt)
	}

	err = s.Update(ctx, "missing-"+uuid.NewString(), models.WidgetPatch{Name: &name})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("update unknown = %v, want not found", err)
	}
}

func TestFirestoreDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestFirestoreWidgets(t)
	id, _ := s.Create(ctx, testOwner(), "Skills", skillsItems())

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetByID(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := s.Delete(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second delete should report not found, got %v", err)
	}
}

func TestFirestoreIncrementEmbedViews(t *testing.T) {
	ctx := context.Background()
	s := newTestFirestoreWidgets(t)
	id, _ := s.Create(ctx, testOwner(), "Skills", skillsItems())
	before, _ := s.GetByID(ctx, id)

	for i := 0; i < 2; i++ {
		if err := s.IncrementEmbedViews(ctx, id); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	w, _ := s.GetByID(ctx, id)
	if w.EmbedViews != 2 {
		t.Fatalf("EmbedViews = %d, want 2", w.EmbedViews)
	}
	if !w.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("view increment should not touch updatedAt")
	}

	if err := s.IncrementEmbedViews(ctx, "missing-"+uuid.NewString()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFirestoreProfileStore(t *testing.T) {
	ctx := context.Background()
	s := NewFirestoreProfileStore(openTestFirestore(t))
	email := uuid.NewString() + "@b.com"
	uid := "uid-" + uuid.NewString()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, err := s.GetSignupProfile(ctx, email); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.PutSignupProfile(ctx, models.SignupProfile{Email: email, Name: "Ann", CreatedAt: now}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutSignupProfile(ctx, models.SignupProfile{Email: email, Name: "Annie", CreatedAt: now}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if p, err := s.GetSignupProfile(ctx, email); err != nil || p.Name != "Annie" {
		t.Fatalf("profile = %+v, %v", p, err)
	}
	if err := s.DeleteSignupProfile(ctx, email); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteSignupProfile(ctx, email); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := s.GetUser(ctx, uid); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	u := models.User{ID: uid, Email: email, Name: "Ann", AuthProvider: models.ProviderEmailLink, CreatedAt: now, UpdatedAt: now}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	dup := u
	dup.Name = "Someone else"
	if err := s.CreateUser(ctx, dup); err != nil {
		t.Fatalf("duplicate create should be ignored: %v", err)
	}
	got, err := s.GetUser(ctx, uid)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.ID != uid || got.Name != "Ann" || got.SessionsValidAfter != nil {
		t.Fatalf("user = %+v", got)
	}

	cutoff := now.Add(time.Minute)
	if err := s.RevokeSessions(ctx, uid, cutoff); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	got, _ = s.GetUser(ctx, uid)
	if got.SessionsValidAfter == nil || !got.SessionsValidAfter.Equal(cutoff) {
		t.Fatalf("cut-off = %v, want %v", got.SessionsValidAfter, cutoff)
	}
	if err := s.RevokeSessions(ctx, "missing-"+uuid.NewString(), cutoff); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
