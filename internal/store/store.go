// Package store persists widgets and auth profiles. Two backends share the
// same interfaces: gorm over SQLite/PostgreSQL and Cloud Firestore.
package store

import (
	"context"
	"time"

	"github.com/abem93/progress-widgets/internal/models"
)

// Collection names shared by both backends.
const (
	CollectionWidgets        = "widgets"
	CollectionSignupProfiles = "signup_profiles"
	CollectionUsers          = "users"
)

// WidgetStore is the keyed widget collection.
//
// GetByID performs no ownership check; it also backs the public embed path.
// Delete of an unknown id reports NotFound. IncrementEmbedViews is an atomic
// server-side increment and leaves UpdatedAt untouched.
type WidgetStore interface {
	Create(ctx context.Context, ownerID, name string, items []models.ProgressItem) (string, error)
	GetByID(ctx context.Context, id string) (models.Widget, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Widget, error)
	Update(ctx context.Context, id string, patch models.WidgetPatch) error
	Delete(ctx context.Context, id string) error
	IncrementEmbedViews(ctx context.Context, id string) error
}

// ProfileStore holds pending sign-up profiles (keyed by email) and permanent
// user profiles (keyed by uid).
type ProfileStore interface {
	PutSignupProfile(ctx context.Context, p models.SignupProfile) error
	GetSignupProfile(ctx context.Context, email string) (models.SignupProfile, error)
	DeleteSignupProfile(ctx context.Context, email string) error
	GetUser(ctx context.Context, uid string) (models.User, error)
	// CreateUser inserts u unless a user with the same id (or, on the SQL
	// backend, the same email) exists already.
	CreateUser(ctx context.Context, u models.User) error
	// RevokeSessions records that credentials of uid issued before at are
	// no longer accepted. Unknown uids report NotFound.
	RevokeSessions(ctx context.Context, uid string, at time.Time) error
}
