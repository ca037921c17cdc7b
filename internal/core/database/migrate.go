package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"newsletter-api/migrations"
)

// Migrate 执行 migrations/<driver> 下所有未应用的 up 迁移；已是最新版本时返回 nil。
// mysql 的 DSN 需要 multiStatements=true（normalizeMySQLDSN 会补上）。
func Migrate(db *gorm.DB, driver string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	var target migratedb.Driver
	switch driver {
	case "mysql":
		target, err = mysql.WithInstance(sqlDB, &mysql.Config{})
	case "postgres":
		target, err = postgres.WithInstance(sqlDB, &postgres.Config{})
	case "sqlite":
		target, err = sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	if err != nil {
		return fmt.Errorf("migrate: open %s driver: %w", driver, err)
	}

	src, err := iofs.New(migrations.FS, driver)
	if err != nil {
		return fmt.Errorf("migrate: open source: %w", err)
	}

	// 不调用 m.Close()：它会连带关闭共享的 *sql.DB
	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		return fmt.Errorf("migrate: init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: up: %w", err)
	}
	return nil
}
