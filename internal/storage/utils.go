package storage

import (
	"github.com/SanjayB2005/TaskManagement/pkg/storage"
	"github.com/pkg/errors"
)

// InitStore opens the store for driverName. The "memory" driver needs no DSN
// and loses everything on exit; SQL drivers are migrated when migrate is set.
func InitStore(driverName, dsn string, migrate bool) (storage.Store, error) {
	if driverName == "memory" {
		return storage.NewMemoryStore(), nil
	}
	store, err := NewSQLStore(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, errors.Wrap(err, "migrate")
		}
	}
	return store, nil
}
