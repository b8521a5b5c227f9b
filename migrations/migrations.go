// Package migrations embeds the schema for every supported SQL driver and
// applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

//go:embed postgres/*.sql sqlite3/*.sql
var files embed.FS

// Up applies pending migrations over an already open connection. Used for
// SQLite, where an in-memory database only exists on its own connection.
func Up(db *sql.DB, driverName string) error {
	src, err := iofs.New(files, driverName)
	if err != nil {
		return errors.Wrapf(err, "load %s migrations", driverName)
	}

	var drv database.Driver
	switch driverName {
	case "postgres":
		drv, err = postgres.WithInstance(db, &postgres.Config{})
	case "sqlite3":
		drv, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	default:
		return errors.Errorf("no migrations for driver %q", driverName)
	}
	if err != nil {
		return errors.Wrap(err, "init migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, drv)
	if err != nil {
		return errors.Wrap(err, "init migrations")
	}
	return up(m)
}

// UpURL applies pending migrations on a fresh connection to databaseURL and
// closes it afterwards.
func UpURL(driverName, databaseURL string) error {
	src, err := iofs.New(files, driverName)
	if err != nil {
		return errors.Wrapf(err, "load %s migrations", driverName)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, MigrateURL(driverName, databaseURL))
	if err != nil {
		return errors.Wrap(err, "init migrations")
	}
	defer m.Close()
	return up(m)
}

// MigrateURL turns a driver DSN into the URL form golang-migrate expects.
func MigrateURL(driverName, dsn string) string {
	if driverName == "sqlite3" && !strings.HasPrefix(dsn, "sqlite3://") {
		return "sqlite3://" + dsn
	}
	return dsn
}

func up(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}
