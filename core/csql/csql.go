package csql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq" // load database driver for postgres
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/relabs-tech/galaxy/core/logger"
)

// Dialects supported by Open
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// DB encapsulates a gorm database together with the dialect it was opened with
type DB struct {
	*gorm.DB
	Dialect string
}

// Dialect returns the dialect and the driver specific data source name for dataSourceName.
//
// postgres:// and postgresql:// URLs as well as key=value connection strings select postgres.
// sqlite:///relative.db, sqlite:////absolute.db, file: URIs and plain paths select
// sqlite. SQLite data sources get foreign keys and a busy timeout enabled.
func Dialect(dataSourceName string) (dialect string, dsn string) {
	s := strings.TrimSpace(dataSourceName)
	switch {
	case strings.HasPrefix(s, "postgres://"), strings.HasPrefix(s, "postgresql://"):
		return DialectPostgres, s
	case strings.Contains(s, "host=") || strings.Contains(s, "dbname="):
		return DialectPostgres, s
	case strings.HasPrefix(s, "sqlite:///"):
		s = strings.TrimPrefix(s, "sqlite:///")
	case strings.HasPrefix(s, "sqlite://"):
		s = strings.TrimPrefix(s, "sqlite://")
	}
	separator := "?"
	if strings.Contains(s, "?") {
		separator = "&"
	}
	return DialectSQLite, s + separator + "_foreign_keys=on&_busy_timeout=5000"
}

// Open opens a galaxy database. The dialect is derived from dataSourceName, see Dialect().
// Postgres connections go through lib/pq and are pinged before use.
func Open(dataSourceName string) (*DB, error) {
	dialect, dsn := Dialect(dataSourceName)
	rlog := logger.Default().WithField("dialect", dialect)
	rlog.Infoln("connecting to database")

	config := &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logrus.StandardLogger(), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var dialector gorm.Dialector
	switch dialect {
	case DialectPostgres:
		sqlDB, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("cannot open postgres: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("cannot ping postgres: %w", err)
		}
		dialector = postgres.New(postgres.Config{Conn: sqlDB})
	default:
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// sqlite has a single writer, more connections only produce busy errors
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return &DB{DB: db, Dialect: dialect}, nil
}

// MustOpen is Open but panics on errors
func MustOpen(dataSourceName string) *DB {
	db, err := Open(dataSourceName)
	if err != nil {
		panic(err)
	}
	return db
}

// Ping verifies the database connection is still alive
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ClearSchema drops the tables of the passed models and recreates them.
// Only meant for tests.
func (db *DB) ClearSchema(models ...interface{}) error {
	if err := db.Migrator().DropTable(models...); err != nil {
		return fmt.Errorf("cannot drop tables: %w", err)
	}
	return db.AutoMigrate(models...)
}

// Kind classifies storage errors
type Kind int

// the error kinds returned by Classify
const (
	// KindUnknown is any unexpected storage failure
	KindUnknown Kind = iota
	// KindNotFound means that the requested record does not exist
	KindNotFound
	// KindConflict means that a unique constraint was violated
	KindConflict
	// KindMissingReference means that a foreign key points nowhere
	KindMissingReference
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindMissingReference:
		return "missing reference"
	default:
		return "unknown"
	}
}

// postgres error codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pqUniqueViolation     pq.ErrorCode = "23505"
	pqForeignKeyViolation pq.ErrorCode = "23503"
)

// Classify maps a storage error to its Kind. A nil error is KindUnknown.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return KindNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return KindConflict
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return KindMissingReference
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return KindConflict
		case pqForeignKeyViolation:
			return KindMissingReference
		}
	}
	return KindUnknown
}
