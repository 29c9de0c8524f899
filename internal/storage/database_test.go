package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestOpenMigrateDropSQLite(t *testing.T) {
	url := "sqlite://" + filepath.Join(t.TempDir(), "test.db")

	db, err := Open(url, "silent")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db, &widget{}))
	assert.True(t, db.Migrator().HasTable(&widget{}))

	require.NoError(t, db.Create(&widget{Name: "a"}).Error)
	var count int64
	require.NoError(t, db.Model(&widget{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	require.NoError(t, Drop(db, &widget{}))
	assert.False(t, db.Migrator().HasTable(&widget{}))
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open("mysql://localhost/todos", "silent")
	assert.Error(t, err)

	_, err = Open("sqlite://", "silent")
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, parseLogLevel("silent"))
	assert.Equal(t, logger.Info, parseLogLevel(" INFO "))
	assert.Equal(t, logger.Warn, parseLogLevel(""))
}

func TestMigrateNilDB(t *testing.T) {
	assert.Error(t, Migrate(nil))
	assert.Error(t, Drop(nil))
}
