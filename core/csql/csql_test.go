package csql

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDialect(t *testing.T) {
	tests := []struct {
		source  string
		dialect string
		dsn     string
	}{
		{"postgres://u:p@localhost:5432/galaxy", DialectPostgres, "postgres://u:p@localhost:5432/galaxy"},
		{"postgresql://localhost/galaxy?sslmode=disable", DialectPostgres, "postgresql://localhost/galaxy?sslmode=disable"},
		{"host=localhost port=5432 user=postgres dbname=postgres sslmode=disable", DialectPostgres, "host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"},
		{"sqlite:////tmp/test.db", DialectSQLite, "/tmp/test.db?_foreign_keys=on&_busy_timeout=5000"},
		{"sqlite:///test.db", DialectSQLite, "test.db?_foreign_keys=on&_busy_timeout=5000"},
		{"file:galaxy.db?cache=shared", DialectSQLite, "file:galaxy.db?cache=shared&_foreign_keys=on&_busy_timeout=5000"},
		{"/var/lib/galaxy.db", DialectSQLite, "/var/lib/galaxy.db?_foreign_keys=on&_busy_timeout=5000"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			dialect, dsn := Dialect(tt.source)
			assert.Equal(t, tt.dialect, dialect)
			assert.Equal(t, tt.dsn, dsn)
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindUnknown, Classify(nil))
	assert.Equal(t, KindUnknown, Classify(errors.New("disk on fire")))
	assert.Equal(t, KindNotFound, Classify(gorm.ErrRecordNotFound))
	assert.Equal(t, KindNotFound, Classify(fmt.Errorf("read: %w", gorm.ErrRecordNotFound)))
	assert.Equal(t, KindConflict, Classify(gorm.ErrDuplicatedKey))
	assert.Equal(t, KindMissingReference, Classify(gorm.ErrForeignKeyViolated))
	assert.Equal(t, KindConflict, Classify(&pq.Error{Code: "23505"}))
	assert.Equal(t, KindMissingReference, Classify(fmt.Errorf("insert: %w", &pq.Error{Code: "23503"})))
	assert.Equal(t, KindUnknown, Classify(&pq.Error{Code: "42P01"}))
}

type sample struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

type sampleChild struct {
	ID       uint   `gorm:"primaryKey"`
	SampleID uint   `gorm:"not null"`
	Sample   sample `gorm:"constraint:OnDelete:CASCADE"`
}

func TestOpenSQLite(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "csql.db"))
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DialectSQLite, db.Dialect)
	require.NoError(t, db.Ping(context.Background()))

	require.NoError(t, db.ClearSchema(&sample{}, &sampleChild{}))

	require.NoError(t, db.Create(&sample{Name: "tatooine"}).Error)
	err = db.Create(&sample{Name: "tatooine"}).Error
	assert.Equal(t, KindConflict, Classify(err), "unique index must be translated: %v", err)

	err = db.Omit("Sample").Create(&sampleChild{SampleID: 4711}).Error
	assert.Equal(t, KindMissingReference, Classify(err), "foreign keys must be enforced: %v", err)

	err = db.First(&sample{}, 4711).Error
	assert.Equal(t, KindNotFound, Classify(err))

	// tables are empty after clearing
	require.NoError(t, db.ClearSchema(&sample{}, &sampleChild{}))
	var count int64
	require.NoError(t, db.Model(&sample{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "conflict", KindConflict.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
