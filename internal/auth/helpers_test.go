package auth

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/abem93/progress-widgets/internal/database"
	"github.com/abem93/progress-widgets/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "auth.db"), logger.Silent)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestProfiles(t *testing.T, db *gorm.DB) *store.GormProfileStore {
	t.Helper()
	profiles := store.NewGormProfileStore(db)
	if err := database.Migrate(db, profiles.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return profiles
}

// captureMailer records every link instead of sending it.
type captureMailer struct {
	mu    sync.Mutex
	links map[string]string
	err   error
}

func (m *captureMailer) SendLoginLink(_ context.Context, email, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.links == nil {
		m.links = make(map[string]string)
	}
	m.links[email] = link
	return nil
}

func (m *captureMailer) last(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[email]
	if !ok {
		t.Fatalf("no link was sent to %s", email)
	}
	return link
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errMailDown = errors.New("smtp: connection refused")
