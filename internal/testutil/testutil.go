// Package testutil opens throwaway databases and records notifications for
// package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"family-fund-backend/internal/models"
	"family-fund-backend/internal/notify"
)

// NewDB returns a migrated SQLite database in a temp dir with foreign keys
// on. One connection only, so code inside a transaction must use the tx.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// CreateUser inserts a user with an email derived from name.
func CreateUser(t testing.TB, db *gorm.DB, name string) models.User {
	t.Helper()

	u := models.User{
		ID:    uuid.New(),
		Name:  name,
		Email: fmt.Sprintf("%s.%s@family.test", strings.ToLower(name), uuid.NewString()[:8]),
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

// Count returns the number of rows of model matching the optional condition.
func Count(t testing.TB, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()

	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// Recorder is a Notifier that keeps everything it receives.
type Recorder struct {
	mu    sync.Mutex
	items []notify.Notification
	Err   error
}

func (r *Recorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return r.Err
}

func (r *Recorder) All() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Notification, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Recorder) For(recipient uuid.UUID) []notify.Notification {
	var out []notify.Notification
	for _, n := range r.All() {
		if n.RecipientID == recipient {
			out = append(out, n)
		}
	}
	return out
}
