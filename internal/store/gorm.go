package store

import (
	"context"
	"errors"
	"time"

	"github.com/abem93/progress-widgets/internal/apperr"
	"github.com/abem93/progress-widgets/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type widgetRow struct {
	ID         string                                   `gorm:"primaryKey"`
	OwnerID    string                                   `gorm:"index;not null"`
	Name       string                                   `gorm:"not null"`
	Items      datatypes.JSONType[[]models.ProgressItem] `gorm:"not null"`
	EmbedViews int64                                    `gorm:"not null;default:0"`
	CreatedAt  time.Time                                `gorm:"index"`
	UpdatedAt  time.Time
}

func (widgetRow) TableName() string { return CollectionWidgets }

func (r *widgetRow) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

func (r widgetRow) toModel() models.Widget {
	items := r.Items.Data()
	if items == nil {
		items = []models.ProgressItem{}
	}
	return models.Widget{
		ID:         r.ID,
		Name:       r.Name,
		Items:      items,
		OwnerID:    r.OwnerID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		EmbedViews: r.EmbedViews,
	}
}

// GormWidgetStore keeps widgets in a SQL table with items as a JSON column.
type GormWidgetStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormWidgetStore(db *gorm.DB) *GormWidgetStore {
	return &GormWidgetStore{db: db, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *GormWidgetStore) WithClock(now func() time.Time) *GormWidgetStore {
	s.now = now
	return s
}

// Models lists the tables this store needs migrated.
func (s *GormWidgetStore) Models() []interface{} {
	return []interface{}{&widgetRow{}}
}

func (s *GormWidgetStore) Create(ctx context.Context, ownerID, name string, items []models.ProgressItem) (string, error) {
	now := s.now().UTC()
	row := widgetRow{
		OwnerID:   ownerID,
		Name:      name,
		Items:     datatypes.NewJSONType(items),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", apperr.Persistence("create widget", err)
	}
	return row.ID, nil
}

func (s *GormWidgetStore) GetByID(ctx context.Context, id string) (models.Widget, error) {
	var row widgetRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Widget{}, apperr.NotFound("widget not found")
		}
		return models.Widget{}, apperr.Persistence("load widget", err)
	}
	return row.toModel(), nil
}

func (s *GormWidgetStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Widget, error) {
	var rows []widgetRow
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, apperr.Persistence("list widgets", err)
	}

	widgets := make([]models.Widget, len(rows))
	for i, row := range rows {
		widgets[i] = row.toModel()
	}
	return widgets, nil
}

func (s *GormWidgetStore) Update(ctx context.Context, id string, patch models.WidgetPatch) error {
	updates := map[string]interface{}{"updated_at": s.now().UTC()}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Items != nil {
		updates["items"] = datatypes.NewJSONType(*patch.Items)
	}

	result := s.db.WithContext(ctx).Model(&widgetRow{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return apperr.Persistence("update widget", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("widget not found")
	}
	return nil
}

func (s *GormWidgetStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&widgetRow{})
	if result.Error != nil {
		return apperr.Persistence("delete widget", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("widget not found")
	}
	return nil
}

func (s *GormWidgetStore) IncrementEmbedViews(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&widgetRow{}).
		Where("id = ?", id).
		UpdateColumn("embed_views", gorm.Expr("embed_views + ?", 1))
	if result.Error != nil {
		return apperr.Persistence("increment embed views", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("widget not found")
	}
	return nil
}

// GormProfileStore keeps sign-up and user profiles in SQL tables.
type GormProfileStore struct {
	db *gorm.DB
}

func NewGormProfileStore(db *gorm.DB) *GormProfileStore {
	return &GormProfileStore{db: db}
}

func (s *GormProfileStore) Models() []interface{} {
	return []interface{}{&models.User{}, &models.SignupProfile{}}
}

func (s *GormProfileStore) PutSignupProfile(ctx context.Context, p models.SignupProfile) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&p).Error
	if err != nil {
		return apperr.Persistence("store signup profile", err)
	}
	return nil
}

func (s *GormProfileStore) GetSignupProfile(ctx context.Context, email string) (models.SignupProfile, error) {
	var p models.SignupProfile
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return p, apperr.NotFound("signup profile not found")
		}
		return p, apperr.Persistence("load signup profile", err)
	}
	return p, nil
}

func (s *GormProfileStore) DeleteSignupProfile(ctx context.Context, email string) error {
	result := s.db.WithContext(ctx).Where("email = ?", email).Delete(&models.SignupProfile{})
	if result.Error != nil {
		return apperr.Persistence("delete signup profile", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("signup profile not found")
	}
	return nil
}

func (s *GormProfileStore) GetUser(ctx context.Context, uid string) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", uid).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return u, apperr.NotFound("user not found")
		}
		return u, apperr.Persistence("load user", err)
	}
	return u, nil
}

func (s *GormProfileStore) CreateUser(ctx context.Context, u models.User) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&u).Error
	if err != nil {
		return apperr.Persistence("create user", err)
	}
	return nil
}

func (s *GormProfileStore) RevokeSessions(ctx context.Context, uid string, at time.Time) error {
	at = at.UTC()
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", uid).
		UpdateColumn("sessions_valid_after", at)
	if result.Error != nil {
		return apperr.Persistence("revoke sessions", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}
