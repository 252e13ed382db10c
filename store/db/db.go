package db

import (
	"github.com/pkg/errors"

	"github.com/dwellify/dwellify/internal/profile"
	"github.com/dwellify/dwellify/store"
	"github.com/dwellify/dwellify/store/db/postgres"
	"github.com/dwellify/dwellify/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// PostgreSQL is the production driver with real vector search via pgvector.
// SQLite is for development and demo: embeddings are stored as JSON and
// similarity is computed in-process, which is fine at realtor-notebook scale.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
