package db

import (
	"testing"

	"jornada/pkg/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestDialectByType(t *testing.T) {
	cfg := &config.Config{}

	cfg.Database.Type = "sqlite"
	cfg.Database.DSN = ":memory:"
	d, err := Dialect(cfg)
	require.NoError(t, err)
	require.Equal(t, "sqlite", d.Name())

	cfg.Database.Type = "mysql"
	cfg.Database.DSN = ""
	cfg.Database.User = "u"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = "3306"
	cfg.Database.DBNAME = "jornada"
	d, err = Dialect(cfg)
	require.NoError(t, err)
	require.Equal(t, "mysql", d.Name())
	require.Equal(t, "jornada", getDBNameFromDialector(d))

	cfg.Database.Type = ""
	d, err = Dialect(cfg)
	require.NoError(t, err)
	require.Equal(t, "postgres", d.Name())
	require.Equal(t, "jornada", getDBNameFromDialector(d))

	cfg.Database.Type = "oracle"
	_, err = Dialect(cfg)
	require.Error(t, err)
}

func TestNewTestOpensMemoryDB(t *testing.T) {
	gdb, err := NewTest()
	require.NoError(t, err)

	var one int
	require.NoError(t, gdb.Raw("SELECT 1").Scan(&one).Error)
	require.Equal(t, 1, one)
}
