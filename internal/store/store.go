package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nicolovejoy/housing-data-v1/internal/models"
)

// Store persists areas and their rents in SQLite. The database runs in WAL
// mode, so readers keep seeing the last committed state while a load is
// writing.
type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// Open opens the SQLite database at path, creating the file and its parent
// directory when missing.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &OpenError{Path: path, Err: err}
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	return &Store{db: db, logger: logger}, nil
}

// NewTestStore opens an isolated in-memory store with the schema applied.
func NewTestStore() (*Store, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), gormConfig())
	if err != nil {
		return nil, &OpenError{Path: ":memory:", Err: err}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, &OpenError{Path: ":memory:", Err: err}
	}
	// An in-memory SQLite database exists per connection.
	sqlDB.SetMaxOpenConns(1)
	db.Exec("PRAGMA foreign_keys = ON")

	s := &Store{db: db, logger: logrus.New()}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&models.Area{}, &models.Rent{}); err != nil {
		return wrap("migrate", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB exposes the underlying gorm handle.
func (s *Store) GetDB() *gorm.DB {
	return s.db
}

// Reset removes every area; rent rows go with them through the cascade.
func (s *Store) Reset() error {
	if err := s.db.Exec("DELETE FROM areas").Error; err != nil {
		return wrap("reset", err)
	}
	return nil
}

// UpsertBatch writes one batch of normalized pairs in a single transaction.
// Areas are matched on their (name, state_code, kind) identity: existing rows
// keep their surrogate id and get state_name and all five rent figures
// replaced, new rows are inserted together with their rent row. The returned
// counts classify every pair as an insert or an update.
func (s *Store) UpsertBatch(pairs []models.AreaRent) (inserted, updated int, err error) {
	if len(pairs) == 0 {
		return 0, 0, nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := identityIDs(tx, pairs)
		if err != nil {
			return err
		}

		areas := make([]models.Area, len(pairs))
		for i, p := range pairs {
			areas[i] = p.Area
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}, {Name: "state_code"}, {Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"state_name"}),
		}).Create(&areas).Error; err != nil {
			return fmt.Errorf("failed to upsert areas: %w", err)
		}

		// Conflicting rows keep their original id, so ids are re-read
		// instead of trusting what Create assigned.
		ids, err := identityIDs(tx, pairs)
		if err != nil {
			return err
		}

		rents := make([]models.Rent, len(pairs))
		for i, p := range pairs {
			id, ok := ids[p.Key()]
			if !ok {
				return fmt.Errorf("area %q not found after upsert", p.Area.Name)
			}
			rent := p.Rent
			rent.AreaID = id
			rents[i] = rent
			if _, ok := existing[p.Key()]; ok {
				updated++
			} else {
				inserted++
			}
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "area_id"}},
			DoUpdates: clause.AssignmentColumns(rentColumns),
		}).Create(&rents).Error; err != nil {
			return fmt.Errorf("failed to upsert rents: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, wrap("upsert batch", err)
	}
	return inserted, updated, nil
}

// identityIDs resolves the stored area id of every pair whose identity tuple
// already exists.
func identityIDs(tx *gorm.DB, pairs []models.AreaRent) (map[string]int64, error) {
	names := lo.Uniq(lo.Map(pairs, func(p models.AreaRent, _ int) string {
		return p.Area.Name
	}))
	var rows []models.Area
	if err := tx.Where("name IN ?", names).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve area ids: %w", err)
	}
	return lo.Associate(rows, func(a models.Area) (string, int64) {
		return models.AreaKey(a.Name, a.StateCode, a.Kind), a.ID
	}), nil
}
