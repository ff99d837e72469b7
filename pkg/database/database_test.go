package database

import (
	"testing"

	"attendance-bridge/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLite(t *testing.T) {
	db, err := NewConnection(&config.Config{DatabaseDriver: "sqlite", DatabaseDSN: ":memory:"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	assert.NoError(t, sqlDB.Ping())
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "root@/attendance")
	assert.ErrorContains(t, err, `unsupported database driver "mysql"`)
}
