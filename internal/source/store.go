package source

import (
	"context"
	"fmt"

	"github.com/banshee-data/nanocall/internal/db"
)

// Store reads uncalibrated reads from a sqlite read store and calibrates
// them on the way out.
type Store struct {
	db     *db.DB
	cursor *db.ReadCursor
}

// OpenStore opens an existing read store without migrating it.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	database, err := db.OpenDB(path)
	if err != nil {
		return nil, err
	}
	cur, err := database.OpenReads(ctx)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Store{db: database, cursor: cur}, nil
}

// Next returns the next calibrated read.
func (s *Store) Next() (Read, error) {
	raw, err := s.cursor.Next()
	if err != nil {
		return Read{}, err
	}
	return Read{ID: raw.ID, Samples: raw.Calibrated()}, nil
}

// Close releases the cursor and the database.
func (s *Store) Close() error {
	cerr := s.cursor.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return cerr
}
