package store

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/abem93/progress-widgets/internal/apperr"
	"github.com/abem93/progress-widgets/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreWidgetStore keeps widgets as documents in the widgets collection.
type FirestoreWidgetStore struct {
	client *firestore.Client
	now    func() time.Time
}

func NewFirestoreWidgetStore(client *firestore.Client) *FirestoreWidgetStore {
	return &FirestoreWidgetStore{client: client, now: time.Now}
}

func (s *FirestoreWidgetStore) doc(id string) (*firestore.DocumentRef, error) {
	if id == "" || strings.Contains(id, "/") {
		return nil, apperr.NotFound("widget not found")
	}
	return s.client.Collection(CollectionWidgets).Doc(id), nil
}

func (s *FirestoreWidgetStore) Create(ctx context.Context, ownerID, name string, items []models.ProgressItem) (string, error) {
	now := s.now().UTC()
	ref := s.client.Collection(CollectionWidgets).NewDoc()
	w := models.Widget{
		Name:      name,
		Items:     items,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := ref.Create(ctx, w); err != nil {
		return "", apperr.Persistence("create widget", err)
	}
	return ref.ID, nil
}

func (s *FirestoreWidgetStore) GetByID(ctx context.Context, id string) (models.Widget, error) {
	ref, err := s.doc(id)
	if err != nil {
		return models.Widget{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return models.Widget{}, firestoreError("load widget", "widget not found", err)
	}
	return widgetFromSnapshot(snap)
}

func (s *FirestoreWidgetStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Widget, error) {
	iter := s.client.Collection(CollectionWidgets).
		Where("ownerId", "==", ownerID).
		OrderBy("createdAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	widgets := []models.Widget{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, apperr.Persistence("list widgets", err)
		}
		w, err := widgetFromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		widgets = append(widgets, w)
	}
	return widgets, nil
}

func (s *FirestoreWidgetStore) Update(ctx context.Context, id string, patch models.WidgetPatch) error {
	ref, err := s.doc(id)
	if err != nil {
		return err
	}
	updates := []firestore.Update{{Path: "updatedAt", Value: s.now().UTC()}}
	if patch.Name != nil {
		updates = append(updates, firestore.Update{Path: "name", Value: *patch.Name})
	}
	if patch.Items != nil {
		updates = append(updates, firestore.Update{Path: "items", Value: *patch.Items})
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		return firestoreError("update widget", "widget not found", err)
	}
	return nil
}

func (s *FirestoreWidgetStore) Delete(ctx context.Context, id string) error {
	ref, err := s.doc(id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		return firestoreError("delete widget", "widget not found", err)
	}
	return nil
}

func (s *FirestoreWidgetStore) IncrementEmbedViews(ctx context.Context, id string) error {
	ref, err := s.doc(id)
	if err != nil {
		return err
	}
	_, err = ref.Update(ctx, []firestore.Update{{Path: "embedViews", Value: firestore.Increment(1)}})
	if err != nil {
		return firestoreError("increment embed views", "widget not found", err)
	}
	return nil
}

func widgetFromSnapshot(snap *firestore.DocumentSnapshot) (models.Widget, error) {
	var w models.Widget
	if err := snap.DataTo(&w); err != nil {
		return models.Widget{}, apperr.Persistence("decode widget", err)
	}
	w.ID = snap.Ref.ID
	if w.Items == nil {
		w.Items = []models.ProgressItem{}
	}
	return w, nil
}

// firestoreError maps a missing document (or failed Exists precondition) to
// NotFound and everything else to a persistence failure.
func firestoreError(op, notFound string, err error) error {
	if status.Code(err) == codes.NotFound {
		return apperr.NotFound("%s", notFound)
	}
	return apperr.Persistence(op, err)
}

// FirestoreProfileStore keeps profiles in the users and signup_profiles
// collections.
type FirestoreProfileStore struct {
	client *firestore.Client
}

func NewFirestoreProfileStore(client *firestore.Client) *FirestoreProfileStore {
	return &FirestoreProfileStore{client: client}
}

func (s *FirestoreProfileStore) PutSignupProfile(ctx context.Context, p models.SignupProfile) error {
	if _, err := s.client.Collection(CollectionSignupProfiles).Doc(p.Email).Set(ctx, p); err != nil {
		return apperr.Persistence("store signup profile", err)
	}
	return nil
}

func (s *FirestoreProfileStore) GetSignupProfile(ctx context.Context, email string) (models.SignupProfile, error) {
	var p models.SignupProfile
	if email == "" || strings.Contains(email, "/") {
		return p, apperr.NotFound("signup profile not found")
	}
	snap, err := s.client.Collection(CollectionSignupProfiles).Doc(email).Get(ctx)
	if err != nil {
		return p, firestoreError("load signup profile", "signup profile not found", err)
	}
	if err := snap.DataTo(&p); err != nil {
		return p, apperr.Persistence("decode signup profile", err)
	}
	return p, nil
}

func (s *FirestoreProfileStore) DeleteSignupProfile(ctx context.Context, email string) error {
	if email == "" || strings.Contains(email, "/") {
		return apperr.NotFound("signup profile not found")
	}
	_, err := s.client.Collection(CollectionSignupProfiles).Doc(email).Delete(ctx, firestore.Exists)
	if err != nil {
		return firestoreError("delete signup profile", "signup profile not found", err)
	}
	return nil
}

func (s *FirestoreProfileStore) GetUser(ctx context.Context, uid string) (models.User, error) {
	var u models.User
	if uid == "" || strings.Contains(uid, "/") {
		return u, apperr.NotFound("user not found")
	}
	snap, err := s.client.Collection(CollectionUsers).Doc(uid).Get(ctx)
	if err != nil {
		return u, firestoreError("load user", "user not found", err)
	}
	if err := snap.DataTo(&u); err != nil {
		return u, apperr.Persistence("decode user", err)
	}
	u.ID = snap.Ref.ID
	return u, nil
}

func (s *FirestoreProfileStore) CreateUser(ctx context.Context, u models.User) error {
	_, err := s.client.Collection(CollectionUsers).Doc(u.ID).Create(ctx, u)
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return apperr.Persistence("create user", err)
	}
	return nil
}

func (s *FirestoreProfileStore) RevokeSessions(ctx context.Context, uid string, at time.Time) error {
	if uid == "" || strings.Contains(uid, "/") {
		return apperr.NotFound("user not found")
	}
	_, err := s.client.Collection(CollectionUsers).Doc(uid).Update(ctx, []firestore.Update{
		{Path: "sessionsValidAfter", Value: at.UTC()},
	})
	if err != nil {
		return firestoreError("revoke sessions", "user not found", err)
	}
	return nil
}
