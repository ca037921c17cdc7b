// Package testutil builds migrated sqlite databases and fixtures for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"newsletter-api/internal/core/database"
	"newsletter-api/internal/domain"
	"newsletter-api/pkg/utils"
)

// NewDB opens a fresh sqlite file with foreign keys on and every migration applied.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on"
	db, err := database.NewGorm(database.Opts{Driver: "sqlite", DSN: dsn, LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, "sqlite"))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SeedUser inserts a user whose password is the plain text given.
func SeedUser(t *testing.T, db *gorm.DB, password string, roles ...string) *domain.User {
	t.Helper()
	u := domain.NewUser(time.Now().UTC().Truncate(time.Second))
	u.UUID = uuid.NewString()
	u.Password = utils.HashPassword(password)
	u.FirstName = "Ada"
	u.LastName = "Lovelace"
	if roles != nil {
		u.Roles = roles
	}
	require.NoError(t, db.WithContext(context.Background()).Create(u).Error)
	return u
}

func SeedNewsletter(t *testing.T, db *gorm.DB, name string) *domain.Newsletter {
	t.Helper()
	n := domain.NewNewsletter(time.Now().UTC().Truncate(time.Second))
	n.Name = name
	n.Subject = name + " subject"
	n.HTMLContent = "<p>" + name + "</p>"
	n.Type = "weekly"
	require.NoError(t, db.WithContext(context.Background()).Create(n).Error)
	return n
}
