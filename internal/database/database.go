package database

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/juju/loggo"
	"github.com/juju/pubsub/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vetrecords/vetsync/internal/entities"
)

// Options tune how the store is opened.
type Options struct {
	// Debug logs every SQL statement.
	Debug bool
}

// Database owns the SQLite connection and the change hub shared by all tables.
type Database struct {
	DB  *gorm.DB
	hub *pubsub.SimpleHub
}

// Models lists every table migrated on open.
func Models() []any {
	return []any{
		&entities.Animal{},
		&entities.Exam{},
		&entities.Vaccine{},
		&entities.Consultation{},
		&entities.Clinic{},
		&entities.Veterinarian{},
		&entities.User{},
		&entities.ScopeSync{},
		&entities.SessionToken{},
	}
}

func NewDatabase(dbPath string, opts Options) (*Database, error) {
	logMode := logger.Silent
	if opts.Debug {
		logMode = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(dsn(dbPath)), &gorm.Config{
		// Follows log.SetOutput so SQL lands in the rotated log file too.
		Logger: logger.New(log.New(log.Writer(), "", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logMode,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// A single connection serialises writers; readers wait for a commit
	// instead of seeing a half-applied replace.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(Models()...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	hub := pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{
		Logger: loggo.GetLogger("vetsync.database.hub"),
	})

	log.Printf("Database initialized successfully at %s", dbPath)

	return &Database{DB: db, hub: hub}, nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_busy_timeout=5000&_journal_mode=WAL"
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
