package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDialect(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/rewards": DialectPostgres,
		"host=localhost dbname=rewards":         DialectPostgres,
		"sqlite::memory:":                       DialectSQLite,
		"file:rewards.db?cache=shared":          DialectSQLite,
		"./data/rewards.sqlite":                 DialectSQLite,
	}
	for dsn, want := range cases {
		got, err := DetectDialect(dsn)
		require.NoError(t, err, dsn)
		assert.Equal(t, want, got, dsn)
	}
	_, err := DetectDialect("")
	assert.Error(t, err)
	_, err = DetectDialect("mysql://x")
	assert.Error(t, err)
}

func TestConnectSQLiteMemory(t *testing.T) {
	db, err := Connect(Config{DSN: "sqlite::memory:"})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DialectSQLite, db.DriverName())

	var n int
	require.NoError(t, db.Get(&n, db.Rebind("SELECT ? + 1"), 1))
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestPoolForSQLiteNeverRecycles(t *testing.T) {
	p := poolFor(DialectSQLite, 20)
	assert.Equal(t, 1, p.maxConns)
	assert.Zero(t, p.lifetime, "recycling would drop a :memory: database")

	p = poolFor(DialectPostgres, 20)
	assert.Equal(t, 20, p.maxConns)
	assert.Equal(t, 30*time.Minute, p.lifetime)
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, `'O''Hare'`, quoteLiteral("O'Hare"))
}
