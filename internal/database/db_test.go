package database

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN("app", "p@ss", "db.local", "3307", "dining")

	c, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", c.User)
	assert.Equal(t, "p@ss", c.Passwd)
	assert.Equal(t, "tcp", c.Net)
	assert.Equal(t, "db.local:3307", c.Addr)
	assert.Equal(t, "dining", c.DBName)
	assert.True(t, c.ParseTime)
	assert.Equal(t, time.UTC, c.Loc)
}
