package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/abem93/progress-widgets/internal/apperr"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenParam is the query parameter carrying a local magic-link token.
const TokenParam = "token"

// MagicLink is an issued one-time link. Only a bcrypt hash of its secret is
// stored.
type MagicLink struct {
	ID         string     `gorm:"type:varchar(36);primaryKey"`
	Email      string     `gorm:"index;not null"`
	SecretHash string     `gorm:"not null"`
	CreatedAt  time.Time  `gorm:"not null"`
	ExpiresAt  time.Time  `gorm:"not null"`
	UsedAt     *time.Time
}

// LocalIdentity maps a verified address to its stable uid.
type LocalIdentity struct {
	UID       string    `gorm:"type:varchar(36);primaryKey"`
	Email     string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (LocalIdentity) TableName() string {
	return "identities"
}

func (l *LocalIdentity) BeforeCreate(tx *gorm.DB) error {
	if l.UID == "" {
		l.UID = uuid.New().String()
	}
	return nil
}

// LocalProvider issues and verifies magic links itself, keeping links and
// identities in the SQL database and handing delivery to a LinkMailer.
type LocalProvider struct {
	db     *gorm.DB
	mailer LinkMailer
	ttl    time.Duration
	now    func() time.Time
}

func NewLocalProvider(db *gorm.DB, mailer LinkMailer, ttl time.Duration) *LocalProvider {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &LocalProvider{db: db, mailer: mailer, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (p *LocalProvider) WithClock(now func() time.Time) *LocalProvider {
	p.now = now
	return p
}

// Models lists the tables the provider needs migrated.
func (p *LocalProvider) Models() []interface{} {
	return []interface{}{&MagicLink{}, &LocalIdentity{}}
}

func (p *LocalProvider) SendLink(ctx context.Context, email, returnURL string) error {
	secret, err := randomSecret()
	if err != nil {
		return apperr.Wrap(apperr.CodeDelivery, "generate link secret", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Wrap(apperr.CodeDelivery, "hash link secret", err)
	}

	now := p.now().UTC()
	link := MagicLink{
		ID:         uuid.New().String(),
		Email:      email,
		SecretHash: string(hash),
		CreatedAt:  now,
		ExpiresAt:  now.Add(p.ttl),
	}
	target, err := buildLinkURL(returnURL, link.ID+"."+secret, email)
	if err != nil {
		return apperr.Wrap(apperr.CodeDelivery, "build magic link url", err)
	}
	if err := p.db.WithContext(ctx).Create(&link).Error; err != nil {
		return apperr.Persistence("store magic link", err)
	}

	if err := p.mailer.SendLoginLink(ctx, email, target); err != nil {
		return apperr.Wrap(apperr.CodeDelivery, "could not send sign-in link", err)
	}
	return nil
}

func (p *LocalProvider) VerifyLink(ctx context.Context, email, currentURL string) (Identity, error) {
	id, secret, err := tokenFromURL(currentURL)
	if err != nil {
		return Identity{}, err
	}

	var link MagicLink
	if err := p.db.WithContext(ctx).First(&link, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, apperr.Verification("sign-in link is invalid")
		}
		return Identity{}, apperr.Persistence("load magic link", err)
	}

	now := p.now().UTC()
	if bcrypt.CompareHashAndPassword([]byte(link.SecretHash), []byte(secret)) != nil {
		return Identity{}, apperr.Verification("sign-in link is invalid")
	}
	if !strings.EqualFold(link.Email, email) {
		return Identity{}, apperr.Verification("sign-in link was issued for a different email")
	}
	if link.UsedAt != nil {
		return Identity{}, apperr.Verification("sign-in link was already used")
	}
	if now.After(link.ExpiresAt) {
		return Identity{}, apperr.Verification("sign-in link has expired")
	}

	// Conditional update so two concurrent completions cannot both succeed.
	res := p.db.WithContext(ctx).Model(&MagicLink{}).
		Where("id = ? AND used_at IS NULL", link.ID).
		Update("used_at", now)
	if res.Error != nil {
		return Identity{}, apperr.Persistence("mark magic link used", res.Error)
	}
	if res.RowsAffected == 0 {
		return Identity{}, apperr.Verification("sign-in link was already used")
	}

	return p.identityFor(ctx, link.Email, now)
}

func (p *LocalProvider) identityFor(ctx context.Context, email string, now time.Time) (Identity, error) {
	db := p.db.WithContext(ctx)
	candidate := LocalIdentity{Email: email, CreatedAt: now}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate).Error; err != nil {
		return Identity{}, apperr.Persistence("create identity", err)
	}

	var ident LocalIdentity
	if err := db.First(&ident, "email = ?", email).Error; err != nil {
		return Identity{}, apperr.Persistence("load identity", err)
	}
	return Identity{UID: ident.UID, Email: ident.Email}, nil
}

// SignOut has nothing to revoke: local sessions live only in the issued
// credential.
func (p *LocalProvider) SignOut(context.Context, string) error {
	return nil
}

// PurgeExpired removes links that can no longer be used.
func (p *LocalProvider) PurgeExpired(ctx context.Context) (int64, error) {
	res := p.db.WithContext(ctx).
		Where("expires_at < ? OR used_at IS NOT NULL", p.now().UTC()).
		Delete(&MagicLink{})
	if res.Error != nil {
		return 0, apperr.Persistence("purge magic links", res.Error)
	}
	return res.RowsAffected, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func buildLinkURL(base, token, email string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.New("return url must be absolute")
	}
	query := parsed.Query()
	query.Set(TokenParam, token)
	query.Set("email", email)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func tokenFromURL(currentURL string) (id, secret string, err error) {
	parsed, perr := url.Parse(strings.TrimSpace(currentURL))
	if perr != nil {
		return "", "", apperr.Verification("sign-in link is invalid")
	}
	token := parsed.Query().Get(TokenParam)
	id, secret, ok := strings.Cut(token, ".")
	if !ok || id == "" || secret == "" {
		return "", "", apperr.Verification("sign-in link is invalid")
	}
	return id, secret, nil
}
